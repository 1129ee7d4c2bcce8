package scraper

import (
	"context"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/seekerworks/jobpilot/internal/browser"
	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
	"github.com/seekerworks/jobpilot/internal/scraper/registry"
)

const linkedinBase = "https://www.linkedin.com"

// LinkedIn scrapes the guest job search. The guest listing is served
// without login but is rendered client-side and rate-limited hard, so it
// goes through the managed browser.
type LinkedIn struct {
	browser *browser.Manager
	sel     *registry.Registry
	snap    Snapshotter
	search  Search
	log     *logging.Logger
}

// NewLinkedIn creates the LinkedIn source. snap may be nil.
func NewLinkedIn(b *browser.Manager, sel *registry.Registry, snap Snapshotter, search Search, log *logging.Logger) *LinkedIn {
	return &LinkedIn{
		browser: b,
		sel:     sel,
		snap:    snap,
		search:  search,
		log:     log.Component("scraper.linkedin"),
	}
}

func (s *LinkedIn) Name() string { return "linkedin" }

func (s *LinkedIn) searchURL() string {
	q := url.Values{}
	q.Set("keywords", s.search.Query())
	if s.search.Location != "" {
		q.Set("location", s.search.Location)
	}
	return linkedinBase + "/jobs/search?" + q.Encode()
}

// Scrape loads the guest search page and parses the rendered cards.
func (s *LinkedIn) Scrape(ctx context.Context, limit int) ([]domain.Job, error) {
	var jobs []domain.Job
	target := s.searchURL()

	err := s.browser.WithPage(ctx, func(page playwright.Page) error {
		if _, err := page.Goto(target, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		}); err != nil {
			return faults.Wrap(faults.KindNetwork, "linkedin.fetch", err)
		}

		if err := browser.DetectCaptcha(page); err != nil {
			if err := captchaFallback(s.browser, page, s.Name(), target, err); err != nil {
				return err
			}
		}

		html, err := page.Content()
		if err != nil {
			return faults.Wrap(faults.KindNetwork, "linkedin.fetch", err)
		}

		jobs, err = s.Parse(html, limit)
		if err != nil && s.snap != nil {
			if path, serr := s.snap.Save(s.Name(), []byte(html)); serr == nil {
				s.log.Info("page archived", zap.String("path", path))
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("scraped listing", zap.Int("jobs", len(jobs)), zap.String("url", target))
	return jobs, nil
}

// Parse extracts jobs from rendered guest-search HTML.
func (s *LinkedIn) Parse(htmlStr string, limit int) ([]domain.Job, error) {
	doc, err := LoadHTML(htmlStr)
	if err != nil {
		return nil, faults.Wrap(faults.KindValidation, "linkedin.parse", err)
	}

	cards, _, err := s.sel.FindAll(doc, nil, "linkedin", "job_card")
	if err != nil {
		return nil, err
	}

	var jobs []domain.Job
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		job, ok := s.parseCard(card)
		if ok {
			jobs = append(jobs, job)
		}
		return limit <= 0 || len(jobs) < limit
	})
	return jobs, nil
}

func (s *LinkedIn) parseCard(card *goquery.Selection) (domain.Job, bool) {
	link := s.sel.FindAttr(card, "linkedin", "link", "href")
	if u, err := url.Parse(link); err == nil && u.Host != "" {
		// Guest links carry tracking params that break dedup.
		u.RawQuery = ""
		link = u.String()
	}

	job := domain.Job{
		Title:     CollapseWhitespace(s.sel.FindText(card, "linkedin", "title")),
		Company:   CollapseWhitespace(s.sel.FindText(card, "linkedin", "company")),
		Link:      link,
		Location:  CollapseWhitespace(s.sel.FindText(card, "linkedin", "location")),
		Source:    s.Name(),
		Status:    domain.JobScraped,
		ScrapedAt: time.Now(),
	}

	job.Normalize()
	return job, job.Valid()
}
