// Package app assembles the service: it builds every component from one
// Config and owns their lifecycles so both the server and the one-shot CLI
// share identical wiring.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seekerworks/jobpilot/internal/api"
	"github.com/seekerworks/jobpilot/internal/api/middleware"
	"github.com/seekerworks/jobpilot/internal/apply"
	"github.com/seekerworks/jobpilot/internal/browser"
	"github.com/seekerworks/jobpilot/internal/cache"
	"github.com/seekerworks/jobpilot/internal/config"
	"github.com/seekerworks/jobpilot/internal/evaluator"
	"github.com/seekerworks/jobpilot/internal/export"
	"github.com/seekerworks/jobpilot/internal/governor"
	"github.com/seekerworks/jobpilot/internal/llm"
	"github.com/seekerworks/jobpilot/internal/logging"
	"github.com/seekerworks/jobpilot/internal/monitoring"
	"github.com/seekerworks/jobpilot/internal/notify"
	"github.com/seekerworks/jobpilot/internal/pipeline"
	"github.com/seekerworks/jobpilot/internal/resilience"
	"github.com/seekerworks/jobpilot/internal/resume"
	"github.com/seekerworks/jobpilot/internal/scraper"
	"github.com/seekerworks/jobpilot/internal/scraper/registry"
	"github.com/seekerworks/jobpilot/internal/snapshots"
	"github.com/seekerworks/jobpilot/internal/store"
)

const sweepInterval = time.Hour

// App holds the wired service.
type App struct {
	cfg *config.Config
	log *logging.Logger

	store    *store.Store
	cache    cache.Cache
	breakers *resilience.Registry
	browsers *browser.Manager
	snaps    *snapshots.Store
	metrics  *monitoring.Metrics
	runner   *pipeline.Runner
	server   *api.Server
}

// New builds every component from cfg. The context bounds startup work
// (database connect, Redis ping); it does not outlive New.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Scraper.ProfilePath != "" {
		if err := cfg.LoadProfile(cfg.Scraper.ProfilePath); err != nil {
			return nil, err
		}
	}

	st, err := store.Connect(ctx, cfg.Store.URL, log.Component("store"))
	if err != nil {
		return nil, err
	}

	var evalCache cache.Cache
	if cfg.Redis.Addr != "" {
		evalCache, err = cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
	} else {
		evalCache = cache.NewMemory()
	}
	counters := &cache.Counters{}

	tracker := governor.NewTracker(governor.Limits{
		MaxConcurrent:     cfg.Governor.MaxConcurrent,
		RequestsPerMinute: cfg.Governor.RequestsPerMinute,
		RequestsPerHour:   cfg.Governor.RequestsPerHour,
		DailyCostLimit:    cfg.Governor.DailyCostLimit,
		MinInterval:       cfg.Governor.MinInterval,
		Retention:         cfg.Governor.Retention,
		HistoryPath:       cfg.Governor.HistoryPath,
	}, log.Component("governor"))
	breakers := resilience.NewRegistry(resilience.DefaultConfigs(), log.Component("breakers"))

	client := llm.New(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Timeout: cfg.LLM.Timeout,
	})

	doc, err := resume.Load(cfg.Resume.Path)
	if err != nil {
		st.Close()
		return nil, err
	}

	selectors, err := registry.Load(cfg.Scraper.SelectorsPath, log.Component("selectors"))
	if err != nil {
		st.Close()
		return nil, err
	}

	bcfg := browser.DefaultConfig()
	bcfg.Headless = cfg.Browser.Headless
	bcfg.NavTimeout = cfg.Browser.NavTimeout
	bcfg.MaxAge = cfg.Browser.MaxSessionAge
	bcfg.MaxOps = cfg.Browser.MaxOperations
	bcfg.MaxErrors = cfg.Browser.MaxErrors
	bcfg.PageSlots = cfg.Browser.MaxPages
	bcfg.Escalations = cfg.Browser.MaxCaptchaSkips
	browsers := browser.NewManager(bcfg, log.Component("browser"))

	snaps, err := snapshots.New(cfg.Snapshots.Dir, cfg.Snapshots.Retention, log.Component("snapshots"))
	if err != nil {
		st.Close()
		return nil, err
	}

	search := scraper.Search{Keywords: cfg.Scraper.Keywords, Location: cfg.Scraper.Location}
	var sources []scraper.Source
	for _, name := range cfg.Scraper.Sources {
		switch name {
		case "remoteok":
			sources = append(sources, scraper.NewRemoteOK(search, log.Component("scraper")))
		case "indeed":
			sources = append(sources, scraper.NewIndeed(browsers, selectors, snaps, search, log.Component("scraper")))
		case "linkedin":
			sources = append(sources, scraper.NewLinkedIn(browsers, selectors, snaps, search, log.Component("scraper")))
		default:
			log.Warn("unknown scrape source " + name + ", skipping")
		}
	}
	if len(sources) == 0 {
		st.Close()
		return nil, fmt.Errorf("no usable scrape sources configured")
	}

	eval := evaluator.New(evaluator.Config{
		Model:         cfg.LLM.Model,
		FallbackTiers: cfg.LLM.FallbackTiers,
		MaxTokens:     cfg.LLM.MaxTokens,
		Temperature:   cfg.LLM.Temperature,
		CacheTTL:      cfg.Redis.TTL,
	}, client, tracker, breakers, evalCache, counters, log.Component("evaluator"))

	writer := apply.NewMessageWriter(cfg.LLM.Model, doc.Text, client, tracker, breakers, log.Component("apply"))
	var submitters []apply.Submitter
	if cfg.Apply.Enabled {
		profile := apply.Profile{
			Name:       cfg.Apply.Name,
			Email:      cfg.Apply.Email,
			Phone:      cfg.Apply.Phone,
			ResumePath: cfg.Resume.Path,
		}
		submitters = []apply.Submitter{
			apply.NewFormSubmitter("remoteok", browsers, profile, log.Component("apply")),
			apply.NewFormSubmitter("indeed", browsers, profile, log.Component("apply")),
			apply.LinkedInSubmitter{},
		}
	}
	applicator := apply.New(apply.Config{
		MaxPerRun: cfg.Apply.MaxPerRun,
		Delay:     cfg.Apply.Delay,
	}, writer, submitters, log.Component("apply"))

	var sinks []export.Sink
	if cfg.Export.CSVPath != "" {
		sinks = append(sinks, export.NewCSV(cfg.Export.CSVPath))
	}
	if cfg.Export.WebhookURL != "" {
		sinks = append(sinks, export.NewWebhook(cfg.Export.WebhookURL))
	}

	notifier, err := notify.New(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, log.Component("notify"))
	if err != nil {
		st.Close()
		return nil, err
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	runner := pipeline.New(pipeline.Config{
		ScoreThreshold:   cfg.Apply.ScoreThreshold,
		MaxJobsPerSource: cfg.Scraper.MaxJobsPerRun,
	}, sources, st, eval, applicator, sinks, notifier, metrics, tracker, doc.Text, log.Component("pipeline"))
	runner.OnRunStart(browsers.ResetEscalations)

	srvCfg := api.Config{
		Port: cfg.Server.Port,
		CORS: middleware.DefaultCORSConfig(),
	}
	if cfg.RateLimit.Enabled {
		srvCfg.RateLimit.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		srvCfg.RateLimit.Burst = cfg.RateLimit.Burst
		// The global cap assumes a handful of dashboard clients.
		srvCfg.GlobalRateLimit.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond * 4
		srvCfg.GlobalRateLimit.Burst = cfg.RateLimit.Burst * 4
	}
	handlers := api.NewHandlers(st, runner, tracker, breakers, selectors, browsers, counters, metrics)
	server := api.NewServer(srvCfg, handlers, metrics, log)

	return &App{
		cfg:      cfg,
		log:      log,
		store:    st,
		cache:    evalCache,
		breakers: breakers,
		browsers: browsers,
		snaps:    snaps,
		metrics:  metrics,
		runner:   runner,
		server:   server,
	}, nil
}

// Logger exposes the root logger for process-level messages.
func (a *App) Logger() *logging.Logger { return a.log }

// Runner exposes the pipeline for the one-shot CLI.
func (a *App) Runner() *pipeline.Runner { return a.runner }

// Serve runs the HTTP API and the background loops until ctx is canceled
// or the listener fails.
func (a *App) Serve(ctx context.Context) error {
	go a.metrics.StartUptimeLoop()
	go a.sweepLoop(ctx)
	go a.breakerGaugeLoop(ctx)

	if a.cfg.Schedule.Enabled {
		at, err := config.ParseDailyTime(a.cfg.Schedule.At)
		if err != nil {
			return err
		}
		go a.runner.Schedule(ctx, at.Hour(), at.Minute())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.snaps.Sweep(); err != nil {
				a.log.Warn("snapshot sweep failed: " + err.Error())
			}
		}
	}
}

// breakerGaugeLoop mirrors breaker states into the prometheus gauge.
func (a *App) breakerGaugeLoop(ctx context.Context) {
	states := map[string]int{"closed": 0, "half-open": 1, "open": 2}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, b := range a.breakers.Snapshot() {
				a.metrics.SetBreakerState(b.Name, states[b.State])
			}
		}
	}
}

// Close releases every held resource. Safe after a failed Serve.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Warn("server shutdown: " + err.Error())
	}
	if err := a.browsers.Close(); err != nil {
		a.log.Warn("browser close: " + err.Error())
	}
	if err := a.cache.Close(); err != nil {
		a.log.Warn("cache close: " + err.Error())
	}
	a.store.Close()
	_ = a.log.Sync()
}
