package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekerworks/jobpilot/internal/browser"
	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
	"github.com/seekerworks/jobpilot/internal/scraper/registry"
)

const remoteOKListing = `<!DOCTYPE html>
<html><body><table>
<tr class="job" data-id="100">
  <td class="company position">
    <a class="preventLink" href="/remote-jobs/100-senior-go-engineer"></a>
    <h2 itemprop="title">Senior Go Engineer</h2>
    <h3 itemprop="name">Acme Remote</h3>
    <div class="location">Worldwide</div>
    <div class="salary">&#128176; $120k - $160k</div>
  </td>
  <td class="tags">
    <a class="tag"><h3>golang</h3></a>
    <a class="tag"><h3>kubernetes</h3></a>
  </td>
  <td><div class="description">Build &amp; run <b>distributed</b> systems.</div></td>
</tr>
<tr class="job" data-id="101">
  <td class="company position">
    <a class="preventLink" href="https://remoteok.com/remote-jobs/101-platform-engineer"></a>
    <h2 itemprop="title">Platform Engineer</h2>
    <h3 itemprop="name">Globex</h3>
  </td>
</tr>
<tr class="job" data-id="102">
  <td class="company position">
    <h2 itemprop="title"></h2>
    <h3 itemprop="name">NoTitle Inc</h3>
  </td>
</tr>
</table></body></html>`

func TestRemoteOKParse(t *testing.T) {
	src := NewRemoteOK(Search{Keywords: []string{"golang"}}, logging.NewNop())

	jobs, err := src.Parse(remoteOKListing, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2, "row without a title must be dropped")

	first := jobs[0]
	assert.Equal(t, "Senior Go Engineer", first.Title)
	assert.Equal(t, "Acme Remote", first.Company)
	assert.Equal(t, "https://remoteok.com/remote-jobs/100-senior-go-engineer", first.Link)
	assert.Equal(t, "Worldwide", first.Location)
	assert.Contains(t, first.Salary, "$120k")
	assert.Equal(t, []string{"golang", "kubernetes"}, first.Tags)
	assert.Equal(t, "remoteok", first.Source)
	assert.Contains(t, first.Description, "distributed")
	assert.NotContains(t, first.Description, "<b>")

	// Sparse row still valid, absolute link kept as-is, location defaulted.
	second := jobs[1]
	assert.Equal(t, "https://remoteok.com/remote-jobs/101-platform-engineer", second.Link)
	assert.Equal(t, "Remote", second.Location)
}

func TestRemoteOKParseLimit(t *testing.T) {
	src := NewRemoteOK(Search{}, logging.NewNop())

	jobs, err := src.Parse(remoteOKListing, 1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

const indeedListing = `<!DOCTYPE html>
<html><body>
<div data-jk="abc123" class="result">
  <h2 class="jobTitle"><a href="/viewjob?jk=abc123"><span>Backend Engineer</span></a></h2>
  <span data-testid="company-name">Initech</span>
  <div data-testid="text-location">Austin, TX</div>
  <div class="salary-snippet-container">$140,000 a year</div>
  <div class="job-snippet">Own the billing pipeline.</div>
</div>
<div data-jk="def456" class="result">
  <h2 class="jobTitle"><a href="/viewjob?jk=def456"><span>SRE</span></a></h2>
  <span data-testid="company-name">Hooli</span>
</div>
</body></html>`

func TestIndeedParse(t *testing.T) {
	reg, err := registry.Load("", logging.NewNop())
	require.NoError(t, err)
	src := NewIndeed(nil, reg, nil, Search{Keywords: []string{"golang"}, Location: "Austin"}, logging.NewNop())

	jobs, err := src.Parse(indeedListing, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	first := jobs[0]
	assert.Equal(t, "Backend Engineer", first.Title)
	assert.Equal(t, "Initech", first.Company)
	assert.Equal(t, "https://www.indeed.com/viewjob?jk=abc123", first.Link)
	assert.Equal(t, "Austin, TX", first.Location)
	assert.Equal(t, "$140,000 a year", first.Salary)
	assert.Equal(t, "indeed", first.Source)
}

func TestIndeedParseNoCards(t *testing.T) {
	reg, err := registry.Load("", logging.NewNop())
	require.NoError(t, err)
	src := NewIndeed(nil, reg, nil, Search{}, logging.NewNop())

	_, err = src.Parse(`<html><body><p>no jobs here</p></body></html>`, 0)
	assert.Error(t, err)
}

const linkedinListing = `<!DOCTYPE html>
<html><body><ul>
<li>
  <div class="job-search-card">
    <h3 class="job-search-card__title">Staff Engineer</h3>
    <h4 class="job-search-card__subtitle">Umbrella Corp</h4>
    <span class="job-search-card__location">Remote, US</span>
    <a class="base-card__full-link" href="https://www.linkedin.com/jobs/view/987?refId=track&amp;trk=guest"></a>
  </div>
</li>
</ul></body></html>`

func TestLinkedInParseStripsTracking(t *testing.T) {
	reg, err := registry.Load("", logging.NewNop())
	require.NoError(t, err)
	src := NewLinkedIn(nil, reg, nil, Search{Keywords: []string{"golang"}}, logging.NewNop())

	jobs, err := src.Parse(linkedinListing, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	job := jobs[0]
	assert.Equal(t, "Staff Engineer", job.Title)
	assert.Equal(t, "Umbrella Corp", job.Company)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/987", job.Link,
		"tracking query params must be stripped for dedup")
	assert.Equal(t, "Remote, US", job.Location)
	assert.Equal(t, "linkedin", job.Source)
}

func TestSearchQuery(t *testing.T) {
	assert.Equal(t, "software engineer", Search{}.Query())
	assert.Equal(t, "golang", Search{Keywords: []string{"golang", "backend"}}.Query())
}

func TestCaptchaFallbackEscalatesUntilBudgetSpent(t *testing.T) {
	cfg := browser.DefaultConfig()
	cfg.Escalations = 1
	m := browser.NewManager(cfg, logging.NewNop())
	detected := faults.New(faults.KindCaptchaRequired, "indeed.fetch", "gated")

	// No automated solver is wired, so the first gate consumes the manual
	// slot and the source skips this pass.
	err := captchaFallback(m, nil, "indeed", "https://example.com/jobs", detected)
	require.Error(t, err)
	assert.EqualError(t, err, detected.Error())
	assert.Equal(t, 1, m.Stats().Escalations)

	// Budget spent: the escalation refusal surfaces instead.
	err = captchaFallback(m, nil, "indeed", "https://example.com/jobs", detected)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget exhausted")
	assert.Equal(t, faults.KindCaptchaRequired, faults.KindOf(err))
}
