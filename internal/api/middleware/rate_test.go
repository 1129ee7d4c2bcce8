package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newLimitedRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r *gin.Engine) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitRejectsBeyondBurst(t *testing.T) {
	r := newLimitedRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))

	assert.Equal(t, http.StatusOK, get(r))
	assert.Equal(t, http.StatusOK, get(r))
	assert.Equal(t, http.StatusTooManyRequests, get(r))
}

func TestRateLimitDisabled(t *testing.T) {
	r := newLimitedRouter(RateLimit(RateLimitConfig{}))

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, get(r))
	}
}

func TestGlobalRateLimitRejectsBeyondBurst(t *testing.T) {
	r := newLimitedRouter(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))

	assert.Equal(t, http.StatusOK, get(r))
	assert.Equal(t, http.StatusTooManyRequests, get(r))
}

func TestEvictStaleDropsIdleClients(t *testing.T) {
	now := time.Now()
	clients := map[string]*client{
		"10.0.0.1": {limiter: rate.NewLimiter(1, 1), lastSeen: now},
		"10.0.0.2": {limiter: rate.NewLimiter(1, 1), lastSeen: now.Add(-evictAfter - time.Second)},
	}

	evictStale(clients, now, evictAfter)

	assert.Contains(t, clients, "10.0.0.1")
	assert.NotContains(t, clients, "10.0.0.2")
}

func TestGlobalRateLimitDisabled(t *testing.T) {
	r := newLimitedRouter(GlobalRateLimit(RateLimitConfig{}))

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, get(r))
	}
}
