package browser

import (
	"strings"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/seekerworks/jobpilot/internal/faults"
)

// captchaSelectors are probed after navigation; any match means the page
// is gated.
var captchaSelectors = []string{
	".captcha",
	".g-recaptcha",
	".h-captcha",
	"[data-captcha]",
	"iframe[src*='captcha']",
	"iframe[src*='recaptcha']",
	"#challenge-form",
	"#px-captcha",
}

// challengeTitles mark interstitial block pages that never render job
// content.
var challengeTitles = []string{
	"just a moment",
	"attention required",
	"access denied",
	"verify you are human",
}

// DetectCaptcha probes the page for CAPTCHA markers and challenge
// interstitials. It returns a KindCaptchaRequired fault when gated, nil
// otherwise.
func DetectCaptcha(page playwright.Page) error {
	if title, err := page.Title(); err == nil {
		lower := strings.ToLower(title)
		for _, marker := range challengeTitles {
			if strings.Contains(lower, marker) {
				return faults.Newf(faults.KindCaptchaRequired, "browser.captcha", "challenge page %q", title)
			}
		}
	}
	for _, sel := range captchaSelectors {
		count, err := page.Locator(sel).Count()
		if err != nil {
			continue
		}
		if count > 0 {
			return faults.New(faults.KindCaptchaRequired, "browser.captcha", "captcha element "+sel)
		}
	}
	return nil
}

// SolveCaptcha is the automated solver hook. No solver backend is wired;
// callers fall through to Escalate.
func (m *Manager) SolveCaptcha(playwright.Page) error {
	return faults.NotImplemented("browser.solve")
}

// Escalate consumes one manual-intervention slot for a gated page. The
// budget bounds how many times a run can stall waiting on a human; once
// spent, further CAPTCHAs are terminal for their source.
func (m *Manager) Escalate(source, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.escalations >= m.cfg.Escalations {
		return faults.New(faults.KindCaptchaRequired, "browser.escalate", "manual escalation budget exhausted")
	}
	m.escalations++
	m.log.Warn("captcha requires manual intervention",
		zap.String("source", source),
		zap.String("url", url),
		zap.Int("escalation", m.escalations),
		zap.Int("budget", m.cfg.Escalations))
	return nil
}

// ResetEscalations restores the manual-intervention budget. The pipeline
// calls it at run start; the budget is per run, not per process.
func (m *Manager) ResetEscalations() {
	m.mu.Lock()
	m.escalations = 0
	m.mu.Unlock()
}
