package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seekerworks/jobpilot/internal/logging"
	"github.com/seekerworks/jobpilot/internal/monitoring"
)

// Logging logs each request with structured fields and feeds the HTTP
// metrics. metrics may be nil.
func Logging(log *logging.Logger, metrics *monitoring.Metrics) gin.HandlerFunc {
	hlog := log.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := c.Writer.Status()
		duration := time.Since(start)
		if metrics != nil {
			metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(status), duration)
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.ClientIP()),
		}
		switch {
		case status >= 500:
			hlog.Error("request", fields...)
		case status >= 400:
			hlog.Warn("request", fields...)
		default:
			hlog.Info("request", fields...)
		}
	}
}
