package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/wyfcoding/onlinemall/pkg/config"
	"github.com/wyfcoding/onlinemall/pkg/ratelimit"
)

type stubLimiter struct {
	lastKey string
	result  *ratelimit.Result
	err     error
}

func (s *stubLimiter) Allow(ctx context.Context, key string, limit ratelimit.Limit) (*ratelimit.Result, error) {
	s.lastKey = key
	return s.result, s.err
}

func newLimitedRouter(limiter ratelimit.RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(limiter, config.RateLimitConfig{Enabled: true, QPS: 10, Burst: 10}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimit_KeyPerUser(t *testing.T) {
	limiter := &stubLimiter{result: &ratelimit.Result{Allowed: true, Remaining: 9}}
	r := newLimitedRouter(limiter)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-User-ID", "42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ratelimit:user:42", limiter.lastKey)
}

func TestRateLimit_KeyFallsBackToIP(t *testing.T) {
	limiter := &stubLimiter{result: &ratelimit.Result{Allowed: true, Remaining: 9}}
	r := newLimitedRouter(limiter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, limiter.lastKey, "ratelimit:ip:")
}

func TestRateLimit_Rejects(t *testing.T) {
	limiter := &stubLimiter{result: &ratelimit.Result{
		Allowed:    false,
		RetryAfter: 3 * time.Second,
	}}
	r := newLimitedRouter(limiter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3", w.Header().Get("Retry-After"))
}

func TestRateLimit_FailOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}
	r := newLimitedRouter(limiter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	limiter := &stubLimiter{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(limiter, config.RateLimitConfig{Enabled: false}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, limiter.lastKey)
}
