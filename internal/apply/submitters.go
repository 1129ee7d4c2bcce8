package apply

import (
	"context"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/seekerworks/jobpilot/internal/browser"
	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
)

// Profile holds the applicant fields pushed into forms.
type Profile struct {
	Name       string
	Email      string
	Phone      string
	ResumePath string
}

// formFields maps common application form inputs to profile values. Most
// boards funnel to Greenhouse or Lever style forms, which share these
// names.
var formFields = []struct {
	selectors []string
	value     func(Profile) string
}{
	{[]string{"input[name='name']", "input[name='full_name']", "#first_name"}, func(p Profile) string { return p.Name }},
	{[]string{"input[name='email']", "input[type='email']", "#email"}, func(p Profile) string { return p.Email }},
	{[]string{"input[name='phone']", "input[type='tel']", "#phone"}, func(p Profile) string { return p.Phone }},
}

var coverSelectors = []string{
	"textarea[name='cover_letter']",
	"textarea[name='comments']",
	"textarea[name='message']",
	"#cover_letter_text",
}

// FormSubmitter drives a browser through a posting's application form.
// It handles the common hosted-form layouts; anything it cannot recognize
// fails soft so the job is recorded rather than half-submitted.
type FormSubmitter struct {
	source  string
	browser *browser.Manager
	profile Profile
	log     *logging.Logger
}

// NewFormSubmitter creates a submitter for one source.
func NewFormSubmitter(source string, b *browser.Manager, profile Profile, log *logging.Logger) *FormSubmitter {
	return &FormSubmitter{
		source:  source,
		browser: b,
		profile: profile,
		log:     log.Component("apply." + source),
	}
}

func (s *FormSubmitter) Source() string { return s.source }

// Submit opens the posting and fills the application form.
func (s *FormSubmitter) Submit(ctx context.Context, job domain.Job, message string) error {
	return s.browser.WithPage(ctx, func(page playwright.Page) error {
		if _, err := page.Goto(job.Link, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		}); err != nil {
			return faults.Wrap(faults.KindNetwork, "apply.submit", err)
		}
		if err := browser.DetectCaptcha(page); err != nil {
			return err
		}

		filled := 0
		for _, field := range formFields {
			val := field.value(s.profile)
			if val == "" {
				continue
			}
			if s.fill(page, field.selectors, val) {
				filled++
			}
		}
		if message != "" && s.fill(page, coverSelectors, message) {
			filled++
		}
		if s.profile.ResumePath != "" {
			if upload := page.Locator("input[type='file']").First(); upload != nil {
				if err := upload.SetInputFiles(s.profile.ResumePath); err == nil {
					filled++
				}
			}
		}

		if filled == 0 {
			return faults.New(faults.KindValidation, "apply.submit", "no recognizable application form on page")
		}

		submit := page.Locator("button[type='submit'], input[type='submit']").First()
		if visible, _ := submit.IsVisible(); !visible {
			return faults.New(faults.KindValidation, "apply.submit", "no submit control on page")
		}
		if err := submit.Click(); err != nil {
			return faults.Wrap(faults.KindNetwork, "apply.submit", err)
		}

		// A CAPTCHA surfacing after submit means the attempt did not land.
		if err := browser.DetectCaptcha(page); err != nil {
			return err
		}
		s.log.Info("form submitted", zap.String("job", job.Title), zap.Int("fields", filled))
		return nil
	})
}

func (s *FormSubmitter) fill(page playwright.Page, selectors []string, value string) bool {
	for _, sel := range selectors {
		loc := page.Locator(sel).First()
		if visible, _ := loc.IsVisible(); !visible {
			continue
		}
		if err := loc.Fill(value); err == nil {
			return true
		}
	}
	return false
}

// LinkedInSubmitter is declared but not supported: Easy Apply requires an
// authenticated session and violates the guest-access terms this tool
// operates under.
type LinkedInSubmitter struct{}

func (LinkedInSubmitter) Source() string { return "linkedin" }

func (LinkedInSubmitter) Submit(context.Context, domain.Job, string) error {
	return faults.NotImplemented("apply.linkedin")
}
