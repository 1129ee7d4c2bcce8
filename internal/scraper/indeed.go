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

const indeedBase = "https://www.indeed.com"

// Indeed scrapes indeed.com search results. The site renders cards with
// scripting and sits behind aggressive bot checks, so it goes through the
// managed browser; parsing works on the rendered HTML via the selector
// registry so markup drift degrades gracefully.
type Indeed struct {
	browser *browser.Manager
	sel     *registry.Registry
	snap    Snapshotter
	search  Search
	log     *logging.Logger
}

// NewIndeed creates the Indeed source. snap may be nil.
func NewIndeed(b *browser.Manager, sel *registry.Registry, snap Snapshotter, search Search, log *logging.Logger) *Indeed {
	return &Indeed{
		browser: b,
		sel:     sel,
		snap:    snap,
		search:  search,
		log:     log.Component("scraper.indeed"),
	}
}

func (s *Indeed) Name() string { return "indeed" }

func (s *Indeed) searchURL() string {
	q := url.Values{}
	q.Set("q", s.search.Query())
	if s.search.Location != "" {
		q.Set("l", s.search.Location)
	}
	return indeedBase + "/jobs?" + q.Encode()
}

// Scrape navigates to the search page in a managed browser page and
// parses the rendered card list.
func (s *Indeed) Scrape(ctx context.Context, limit int) ([]domain.Job, error) {
	var jobs []domain.Job
	target := s.searchURL()

	err := s.browser.WithPage(ctx, func(page playwright.Page) error {
		if _, err := page.Goto(target, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		}); err != nil {
			return faults.Wrap(faults.KindNetwork, "indeed.fetch", err)
		}

		if err := browser.DetectCaptcha(page); err != nil {
			s.snapshot(page)
			if err := captchaFallback(s.browser, page, s.Name(), target, err); err != nil {
				return err
			}
		}

		html, err := page.Content()
		if err != nil {
			return faults.Wrap(faults.KindNetwork, "indeed.fetch", err)
		}

		jobs, err = s.Parse(html, limit)
		if err != nil {
			s.archive([]byte(html))
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("scraped listing", zap.Int("jobs", len(jobs)), zap.String("url", target))
	return jobs, nil
}

// Parse extracts jobs from rendered search HTML. Split from Scrape so
// tests can feed captured pages without a browser.
func (s *Indeed) Parse(htmlStr string, limit int) ([]domain.Job, error) {
	doc, err := LoadHTML(htmlStr)
	if err != nil {
		return nil, faults.Wrap(faults.KindValidation, "indeed.parse", err)
	}

	cards, _, err := s.sel.FindAll(doc, nil, "indeed", "job_card")
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

func (s *Indeed) parseCard(card *goquery.Selection) (domain.Job, bool) {
	link := s.sel.FindAttr(card, "indeed", "link", "href")
	if link != "" && link[0] == '/' {
		link = indeedBase + link
	}

	job := domain.Job{
		Title:       CollapseWhitespace(s.sel.FindText(card, "indeed", "title")),
		Company:     CollapseWhitespace(s.sel.FindText(card, "indeed", "company")),
		Link:        link,
		Location:    CollapseWhitespace(s.sel.FindText(card, "indeed", "location")),
		Salary:      CollapseWhitespace(s.sel.FindText(card, "indeed", "salary")),
		Description: SanitizeText(s.sel.FindText(card, "indeed", "description")),
		Source:      s.Name(),
		Status:      domain.JobScraped,
		ScrapedAt:   time.Now(),
	}

	job.Normalize()
	return job, job.Valid()
}

func (s *Indeed) snapshot(page playwright.Page) {
	html, err := page.Content()
	if err != nil {
		return
	}
	s.archive([]byte(html))
}

func (s *Indeed) archive(html []byte) {
	if s.snap == nil {
		return
	}
	if path, err := s.snap.Save(s.Name(), html); err == nil {
		s.log.Info("page archived", zap.String("path", path))
	}
}
