// Package scraper collects job postings from the configured boards.
//
// Each board implements Source; static boards fetch HTML directly while
// login-walled or script-heavy boards go through the managed headless
// browser. Sources are independent: one failing contributes zero jobs and
// the run continues.
package scraper

import (
	"context"

	"github.com/playwright-community/playwright-go"

	"github.com/seekerworks/jobpilot/internal/browser"
	"github.com/seekerworks/jobpilot/internal/domain"
)

// Source scrapes one job board.
type Source interface {
	// Name identifies the board ("remoteok", "indeed", "linkedin").
	Name() string
	// Scrape returns up to limit normalized jobs.
	Scrape(ctx context.Context, limit int) ([]domain.Job, error)
}

// Search carries the query shared by all sources.
type Search struct {
	Keywords []string
	Location string
}

// Query returns the primary keyword for boards that take a single query.
func (s Search) Query() string {
	if len(s.Keywords) == 0 {
		return "software engineer"
	}
	return s.Keywords[0]
}

// Snapshotter archives raw page HTML for post-mortem debugging. Sources
// call it on parse failures and CAPTCHA walls; a nil Snapshotter disables
// archiving.
type Snapshotter interface {
	Save(source string, html []byte) (string, error)
}

// captchaFallback handles a detected CAPTCHA: automated solve first, then
// a manual escalation slot. Returns nil when solved (the caller continues
// scraping), the escalation error when the budget is spent, or detected
// when a human was flagged and the source should skip this pass.
func captchaFallback(b *browser.Manager, page playwright.Page, source, target string, detected error) error {
	if err := b.SolveCaptcha(page); err == nil {
		return nil
	}
	if err := b.Escalate(source, target); err != nil {
		return err
	}
	return detected
}
