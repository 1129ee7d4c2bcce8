// Package browser manages a shared headless browser for the sources that
// cannot be scraped with plain HTTP. The browser is a leaky long-lived
// process, so the manager recycles it on age, operation count, or error
// streak, and gates page access through a fixed pool of slots.
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
)

// Config controls browser lifecycle and recycling.
type Config struct {
	Headless    bool
	UserAgent   string
	NavTimeout  time.Duration
	MaxAge      time.Duration // restart after this much uptime
	MaxOps      int           // restart after this many page operations
	MaxErrors   int           // restart after this many consecutive failures
	PageSlots   int           // concurrent pages
	Escalations int           // manual CAPTCHA escalations per run
}

// DefaultConfig matches the recycling thresholds the sources were tuned
// against.
func DefaultConfig() Config {
	return Config{
		Headless:    true,
		NavTimeout:  30 * time.Second,
		MaxAge:      30 * time.Minute,
		MaxOps:      100,
		MaxErrors:   5,
		PageSlots:   3,
		Escalations: 5,
	}
}

// restartPolicy decides when the browser process should be recycled.
type restartPolicy struct {
	maxAge    time.Duration
	maxOps    int
	maxErrors int
}

func (p restartPolicy) due(age time.Duration, ops, consecutive int) bool {
	if p.maxAge > 0 && age >= p.maxAge {
		return true
	}
	if p.maxOps > 0 && ops >= p.maxOps {
		return true
	}
	if p.maxErrors > 0 && consecutive >= p.maxErrors {
		return true
	}
	return false
}

// Stats is a point-in-time view of the manager for the stats endpoint.
type Stats struct {
	Running     bool          `json:"running"`
	Uptime      time.Duration `json:"uptime"`
	Ops         int           `json:"ops"`
	Consecutive int           `json:"consecutive_errors"`
	Restarts    int           `json:"restarts"`
	Escalations int           `json:"captcha_escalations"`
}

// Manager owns the playwright runtime and a single browser process.
type Manager struct {
	cfg    Config
	policy restartPolicy
	log    *logging.Logger
	now    func() time.Time

	slots chan struct{}

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	launchedAt  time.Time
	ops         int
	consecutive int
	restarts    int
	escalations int
	closed      bool
}

// NewManager builds a manager; the browser launches lazily on first use.
func NewManager(cfg Config, log *logging.Logger) *Manager {
	if cfg.PageSlots <= 0 {
		cfg.PageSlots = 1
	}
	return &Manager{
		cfg:    cfg,
		policy: restartPolicy{maxAge: cfg.MaxAge, maxOps: cfg.MaxOps, maxErrors: cfg.MaxErrors},
		log:    log.Component("browser"),
		now:    time.Now,
		slots:  make(chan struct{}, cfg.PageSlots),
	}
}

func (m *Manager) launchLocked() error {
	pw, err := playwright.Run()
	if err != nil {
		return faults.Wrap(faults.KindNetwork, "browser.start", err)
	}
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return faults.Wrap(faults.KindNetwork, "browser.launch", err)
	}
	m.pw = pw
	m.browser = b
	m.launchedAt = m.now()
	m.ops = 0
	m.consecutive = 0
	return nil
}

func (m *Manager) stopLocked() {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.log.Warn("browser close failed", zap.Error(err))
		}
		m.browser = nil
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			m.log.Warn("playwright stop failed", zap.Error(err))
		}
		m.pw = nil
	}
}

// ensureLocked launches or recycles the browser as needed.
func (m *Manager) ensureLocked() error {
	if m.closed {
		return faults.New(faults.KindValidation, "browser.page", "manager closed")
	}
	if m.browser != nil && m.policy.due(m.now().Sub(m.launchedAt), m.ops, m.consecutive) {
		m.log.Info("recycling browser",
			zap.Duration("uptime", m.now().Sub(m.launchedAt)),
			zap.Int("ops", m.ops),
			zap.Int("consecutive_errors", m.consecutive))
		m.stopLocked()
		m.restarts++
	}
	if m.browser == nil {
		if err := m.launchLocked(); err != nil {
			return err
		}
		m.log.Info("browser launched", zap.Bool("headless", m.cfg.Headless))
	}
	return nil
}

// WithPage runs fn on a fresh page in its own browser context. Page slots
// bound concurrency; acquisition respects ctx. Each call counts as one
// operation against the recycle thresholds, and fn's error feeds the
// consecutive-error streak.
func (m *Manager) WithPage(ctx context.Context, fn func(playwright.Page) error) error {
	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		return faults.Wrap(faults.KindTimeout, "browser.page", ctx.Err())
	}
	defer func() { <-m.slots }()

	m.mu.Lock()
	if err := m.ensureLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	browser := m.browser
	m.mu.Unlock()

	opts := playwright.BrowserNewContextOptions{}
	if m.cfg.UserAgent != "" {
		opts.UserAgent = playwright.String(m.cfg.UserAgent)
	}
	bctx, err := browser.NewContext(opts)
	if err != nil {
		m.record(err)
		return faults.Wrap(faults.KindNetwork, "browser.page", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		m.record(err)
		return faults.Wrap(faults.KindNetwork, "browser.page", err)
	}
	page.SetDefaultTimeout(float64(m.cfg.NavTimeout.Milliseconds()))

	err = fn(page)
	m.record(err)
	return err
}

func (m *Manager) record(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops++
	if err != nil {
		m.consecutive++
	} else {
		m.consecutive = 0
	}
}

// Stats snapshots lifecycle counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{
		Running:     m.browser != nil,
		Ops:         m.ops,
		Consecutive: m.consecutive,
		Restarts:    m.restarts,
		Escalations: m.escalations,
	}
	if m.browser != nil {
		s.Uptime = m.now().Sub(m.launchedAt)
	}
	return s
}

// Close shuts down the browser and playwright runtime. The manager cannot
// be reused after Close.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopLocked()
	return nil
}
