// Package api exposes the HTTP surface: run control, browse endpoints for
// jobs, applications, and run history, operational stats, and a WebSocket
// stream of run events.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seekerworks/jobpilot/internal/api/middleware"
	"github.com/seekerworks/jobpilot/internal/logging"
	"github.com/seekerworks/jobpilot/internal/monitoring"
)

// Config tunes the HTTP server.
type Config struct {
	Port      string
	RateLimit middleware.RateLimitConfig
	// GlobalRateLimit caps the whole API regardless of client IP.
	GlobalRateLimit middleware.RateLimitConfig
	CORS            middleware.CORSConfig
}

// Server wraps the router and its dependencies.
type Server struct {
	cfg      Config
	router   *gin.Engine
	handlers *Handlers
	log      *logging.Logger
	srv      *http.Server
}

// NewServer builds the router. Debug noise is gin's default; production
// runs set gin.ReleaseMode before calling this.
func NewServer(cfg Config, h *Handlers, metrics *monitoring.Metrics, log *logging.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logging(log, metrics))
	router.Use(middleware.CORS(cfg.CORS))
	router.Use(middleware.GlobalRateLimit(cfg.GlobalRateLimit))
	router.Use(middleware.RateLimit(cfg.RateLimit))

	router.GET("/health", h.Health)
	router.GET("/jobs", h.ListJobs)
	router.GET("/applications", h.ListApplications)
	router.GET("/runs", h.ListRuns)
	router.GET("/stats", h.Stats)
	router.POST("/run", h.TriggerRun)
	router.GET("/ws/runs", h.StreamRuns)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		cfg:      cfg,
		router:   router,
		handlers: h,
		log:      log.Component("api"),
	}
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start serves until the listener fails; callers run it in a goroutine and
// pair it with Shutdown.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("listening on :" + s.cfg.Port)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
