package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
	"go.uber.org/zap"
)

const remoteOKBase = "https://remoteok.com"

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// RemoteOK scrapes remoteok.com listing pages. The board serves complete
// HTML, so no browser session is needed.
type RemoteOK struct {
	resty  *resty.Client
	search Search
	log    *logging.Logger
}

// NewRemoteOK creates the RemoteOK source.
func NewRemoteOK(search Search, log *logging.Logger) *RemoteOK {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.Logger = nil

	rc := resty.New().
		SetBaseURL(remoteOKBase).
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", browserUserAgent).
		SetTransport(retryClient.HTTPClient.Transport)

	return &RemoteOK{resty: rc, search: search, log: log.Component("scraper.remoteok")}
}

func (r *RemoteOK) Name() string { return "remoteok" }

// Scrape fetches the search listing and parses the job rows.
func (r *RemoteOK) Scrape(ctx context.Context, limit int) ([]domain.Job, error) {
	path := "/remote-" + strings.ReplaceAll(strings.ToLower(r.search.Query()), " ", "-") + "-jobs"

	resp, err := r.resty.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, faults.Wrap(faults.Classify(err), "remoteok.fetch", err)
	}
	if resp.IsError() {
		return nil, faults.Newf(faults.ClassifyHTTPStatus(resp.StatusCode()),
			"remoteok.fetch", "listing fetch failed with status %d", resp.StatusCode())
	}

	jobs, err := r.Parse(string(resp.Body()), limit)
	if err != nil {
		return nil, err
	}

	r.log.Info("scraped listing", zap.Int("jobs", len(jobs)), zap.String("path", path))
	return jobs, nil
}

// Parse extracts jobs from a listing page. Split from Scrape so tests can
// feed captured HTML without the network.
func (r *RemoteOK) Parse(htmlStr string, limit int) ([]domain.Job, error) {
	doc, err := LoadHTML(htmlStr)
	if err != nil {
		return nil, faults.Wrap(faults.KindValidation, "remoteok.parse", err)
	}

	var jobs []domain.Job
	doc.Find("tr.job").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		job, ok := r.parseRow(row)
		if ok {
			jobs = append(jobs, job)
		}
		return limit <= 0 || len(jobs) < limit
	})
	return jobs, nil
}

func (r *RemoteOK) parseRow(row *goquery.Selection) (domain.Job, bool) {
	title := CollapseWhitespace(row.Find("h2[itemprop=title], .title h2, .title").First().Text())
	company := CollapseWhitespace(row.Find("h3[itemprop=name], .company h3, .companyLink h3").First().Text())

	link, _ := row.Find("a.preventLink, a[itemprop=url]").First().Attr("href")
	if link == "" {
		link, _ = row.Find("a").First().Attr("href")
	}
	if link != "" && !strings.HasPrefix(link, "http") {
		link = remoteOKBase + link
	}

	var tags []string
	row.Find(".tag, .tags .tag h3").Each(func(_ int, tag *goquery.Selection) {
		if t := CollapseWhitespace(tag.Text()); t != "" {
			tags = append(tags, t)
		}
	})

	job := domain.Job{
		Title:       title,
		Company:     company,
		Link:        link,
		Location:    CollapseWhitespace(row.Find(".location").First().Text()),
		Salary:      CollapseWhitespace(row.Find(".salary").First().Text()),
		Tags:        tags,
		Source:      r.Name(),
		Description: SanitizeText(row.Find(".description").Text()),
		Status:      domain.JobScraped,
		ScrapedAt:   time.Now(),
	}
	if job.Location == "" {
		job.Location = "Remote"
	}

	job.Normalize()
	return job, job.Valid()
}
