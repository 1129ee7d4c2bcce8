// Package registry maintains ordered fallback selectors per site with
// health tracking. Job boards change their markup without notice; rather
// than hard-coding a single selector per element, each element carries a
// preference-ordered list, and match outcomes feed per-selector health so
// broken selectors fall to the back of the line.
package registry

import (
	_ "embed"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
)

//go:embed selectors.toml
var embeddedSelectors []byte

// Status describes selector health derived from match history.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusBroken   Status = "broken"
)

const (
	degradedMissRate    = 0.2
	brokenMissRate      = 0.5
	degradedConsecutive = 3
	brokenConsecutive   = 10
)

// Selector is one candidate query for a site element. Queries prefixed
// with "xpath:" are evaluated with htmlquery; everything else is CSS.
type Selector struct {
	Site    string
	Element string
	Query   string
}

// IsXPath reports whether the query should be evaluated as XPath.
func (s Selector) IsXPath() bool {
	return strings.HasPrefix(s.Query, "xpath:")
}

func (s Selector) key() string {
	return s.Site + "/" + s.Element + "/" + s.Query
}

// Metrics is the running match history for one selector.
type Metrics struct {
	Attempts    int       `json:"attempts"`
	Hits        int       `json:"hits"`
	Consecutive int       `json:"consecutive_misses"`
	LastHit     time.Time `json:"last_hit,omitempty"`
	LastMiss    time.Time `json:"last_miss,omitempty"`
}

// Status derives health from the recorded history.
func (m Metrics) Status() Status {
	if m.Attempts == 0 {
		return StatusUnknown
	}
	missRate := float64(m.Attempts-m.Hits) / float64(m.Attempts)
	if missRate > brokenMissRate || m.Consecutive >= brokenConsecutive {
		return StatusBroken
	}
	if missRate > degradedMissRate || m.Consecutive >= degradedConsecutive {
		return StatusDegraded
	}
	return StatusHealthy
}

// Registry holds the selector tables and their health metrics.
type Registry struct {
	log *logging.Logger
	now func() time.Time

	mu        sync.Mutex
	selectors map[string]map[string][]Selector
	metrics   map[string]*Metrics
}

// Load reads selector tables from path, falling back to the embedded
// defaults when path is empty.
func Load(path string, log *logging.Logger) (*Registry, error) {
	data := embeddedSelectors
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, faults.Wrap(faults.KindValidation, "registry.load", err)
		}
		data = b
	}

	var raw map[string]map[string][]string
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, faults.Wrap(faults.KindValidation, "registry.load", err)
	}

	r := &Registry{
		log:       log.Component("registry"),
		now:       time.Now,
		selectors: make(map[string]map[string][]Selector, len(raw)),
		metrics:   make(map[string]*Metrics),
	}
	for site, elements := range raw {
		r.selectors[site] = make(map[string][]Selector, len(elements))
		for element, queries := range elements {
			list := make([]Selector, 0, len(queries))
			for _, q := range queries {
				s := Selector{Site: site, Element: element, Query: q}
				list = append(list, s)
				r.metrics[s.key()] = &Metrics{}
			}
			r.selectors[site][element] = list
		}
	}
	return r, nil
}

// Selectors returns the candidates for a site element, non-broken first.
// Within each health band the configured order is preserved.
func (r *Registry) Selectors(site, element string) []Selector {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.selectors[site][element]
	out := make([]Selector, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		bi := r.metrics[out[i].key()].Status() == StatusBroken
		bj := r.metrics[out[j].key()].Status() == StatusBroken
		return !bi && bj
	})
	return out
}

// Report records the outcome of applying a selector.
func (r *Registry) Report(s Selector, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.metrics[s.key()]
	if !ok {
		m = &Metrics{}
		r.metrics[s.key()] = m
	}
	before := m.Status()
	m.Attempts++
	if hit {
		m.Hits++
		m.Consecutive = 0
		m.LastHit = r.now()
	} else {
		m.Consecutive++
		m.LastMiss = r.now()
	}
	after := m.Status()
	if after != before && (after == StatusDegraded || after == StatusBroken) {
		r.log.Warn("selector health declined",
			zap.String("site", s.Site),
			zap.String("element", s.Element),
			zap.String("query", s.Query),
			zap.String("status", string(after)))
	}
}

// ElementMetrics is one selector's health as exposed by Health().
type ElementMetrics struct {
	Site    string  `json:"site"`
	Element string  `json:"element"`
	Query   string  `json:"query"`
	Status  Status  `json:"status"`
	Metrics Metrics `json:"metrics"`
}

// Health returns a snapshot of all selector metrics, sorted for stable
// output.
func (r *Registry) Health() []ElementMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ElementMetrics, 0, len(r.metrics))
	for site, elements := range r.selectors {
		for element, list := range elements {
			for _, s := range list {
				m := r.metrics[s.key()]
				out = append(out, ElementMetrics{
					Site:    site,
					Element: element,
					Query:   s.Query,
					Status:  m.Status(),
					Metrics: *m,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Site != out[j].Site {
			return out[i].Site < out[j].Site
		}
		if out[i].Element != out[j].Element {
			return out[i].Element < out[j].Element
		}
		return out[i].Query < out[j].Query
	})
	return out
}

// FindAll applies the element's selectors against a parsed document,
// returning matches from the first selector that yields any. Every
// attempted selector's outcome is reported.
func (r *Registry) FindAll(doc *goquery.Document, root *html.Node, site, element string) (*goquery.Selection, []*html.Node, error) {
	for _, s := range r.Selectors(site, element) {
		if s.IsXPath() {
			if root == nil {
				continue
			}
			nodes, err := htmlquery.QueryAll(root, strings.TrimPrefix(s.Query, "xpath:"))
			hit := err == nil && len(nodes) > 0
			r.Report(s, hit)
			if hit {
				return nil, nodes, nil
			}
			continue
		}
		sel := doc.Find(s.Query)
		hit := sel.Length() > 0
		r.Report(s, hit)
		if hit {
			return sel, nil, nil
		}
	}
	return nil, nil, faults.Newf(faults.KindValidation, "registry.find",
		"no selector matched %s/%s", site, element)
}

// FindText walks the element's CSS selectors within a selection and
// returns the first non-empty text match.
func (r *Registry) FindText(within *goquery.Selection, site, element string) string {
	for _, s := range r.Selectors(site, element) {
		if s.IsXPath() {
			continue
		}
		text := strings.TrimSpace(within.Find(s.Query).First().Text())
		r.Report(s, text != "")
		if text != "" {
			return text
		}
	}
	return ""
}

// FindAttr walks the element's CSS selectors within a selection and
// returns the first non-empty attribute value.
func (r *Registry) FindAttr(within *goquery.Selection, site, element, attr string) string {
	for _, s := range r.Selectors(site, element) {
		if s.IsXPath() {
			continue
		}
		val, ok := within.Find(s.Query).First().Attr(attr)
		val = strings.TrimSpace(val)
		r.Report(s, ok && val != "")
		if ok && val != "" {
			return val
		}
	}
	return ""
}
