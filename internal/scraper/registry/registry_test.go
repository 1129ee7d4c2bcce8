package registry

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekerworks/jobpilot/internal/logging"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Load("", logging.NewNop())
	require.NoError(t, err)
	return r
}

func TestLoadEmbedded(t *testing.T) {
	r := newTestRegistry(t)

	list := r.Selectors("indeed", "job_card")
	require.NotEmpty(t, list)
	assert.Equal(t, "[data-jk]", list[0].Query)

	for _, em := range r.Health() {
		assert.Equal(t, StatusUnknown, em.Status)
	}
}

func TestStatusThresholds(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		hits     int
		consec   int
		want     Status
	}{
		{"no history", 0, 0, 0, StatusUnknown},
		{"all hits", 10, 10, 0, StatusHealthy},
		{"light misses", 10, 9, 1, StatusHealthy},
		{"miss rate above degraded", 10, 7, 1, StatusDegraded},
		{"three consecutive misses", 10, 8, 3, StatusDegraded},
		{"miss rate above broken", 10, 4, 2, StatusBroken},
		{"ten consecutive misses", 30, 20, 10, StatusBroken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Metrics{Attempts: tt.attempts, Hits: tt.hits, Consecutive: tt.consec}
			assert.Equal(t, tt.want, m.Status())
		})
	}
}

func TestBrokenSelectorDemoted(t *testing.T) {
	r := newTestRegistry(t)

	list := r.Selectors("indeed", "job_card")
	require.True(t, len(list) >= 2)
	first := list[0]

	for i := 0; i < brokenConsecutive; i++ {
		r.Report(first, false)
	}

	reordered := r.Selectors("indeed", "job_card")
	assert.NotEqual(t, first.Query, reordered[0].Query)
	assert.Equal(t, first.Query, reordered[len(reordered)-1].Query)
}

func TestFindAllFallsThrough(t *testing.T) {
	r := newTestRegistry(t)

	// Markup matching only the second indeed job_card selector.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><div class="job_seen_beacon">x</div></body></html>`))
	require.NoError(t, err)

	sel, _, err := r.FindAll(doc, nil, "indeed", "job_card")
	require.NoError(t, err)
	assert.Equal(t, 1, sel.Length())

	var firstMiss, secondHit bool
	for _, em := range r.Health() {
		if em.Site != "indeed" || em.Element != "job_card" {
			continue
		}
		switch em.Query {
		case "[data-jk]":
			firstMiss = em.Metrics.Attempts == 1 && em.Metrics.Hits == 0
		case ".job_seen_beacon":
			secondHit = em.Metrics.Hits == 1
		}
	}
	assert.True(t, firstMiss, "first selector should record a miss")
	assert.True(t, secondHit, "matching selector should record a hit")
}

func TestFindAllNoMatch(t *testing.T) {
	r := newTestRegistry(t)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body></body></html>`))
	require.NoError(t, err)

	_, _, err = r.FindAll(doc, nil, "indeed", "job_card")
	assert.Error(t, err)
}

func TestFindTextAndAttr(t *testing.T) {
	r := newTestRegistry(t)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<div class="card">
			<h2 class="jobTitle"><a href="/viewjob?jk=1"><span>Go Engineer</span></a></h2>
			<span class="companyName">Acme</span>
		</div>`))
	require.NoError(t, err)
	card := doc.Find(".card")

	assert.Equal(t, "Go Engineer", r.FindText(card, "indeed", "title"))
	assert.Equal(t, "Acme", r.FindText(card, "indeed", "company"))
	assert.Equal(t, "/viewjob?jk=1", r.FindAttr(card, "indeed", "link", "href"))
	assert.Equal(t, "", r.FindText(card, "indeed", "salary"))
}
