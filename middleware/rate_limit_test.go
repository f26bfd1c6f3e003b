package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerClient(t *testing.T) {
	l := NewRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"), "burst spent")
	assert.True(t, l.allow("10.0.0.2"), "other clients have their own bucket")

	now = now.Add(time.Second)
	assert.True(t, l.allow("10.0.0.1"), "refilled")
}

func TestRateLimiterPrune(t *testing.T) {
	l := NewRateLimiter(1, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.allow("10.0.0.1")
	now = now.Add(4 * time.Minute)
	l.allow("10.0.0.2")
	now = now.Add(2 * time.Minute)
	l.Prune()

	assert.NotContains(t, l.buckets, "10.0.0.1")
	assert.Contains(t, l.buckets, "10.0.0.2")
}

func TestRateLimiterMiddleware(t *testing.T) {
	l := NewRateLimiter(0.001, 1)
	r := gin.New()
	assert.NoError(t, r.SetTrustedProxies(nil))
	r.Use(l.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	send := func(remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, send("203.0.113.5:4000", ""))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.5:4001", ""))
	assert.Equal(t, http.StatusOK, send("203.0.113.6:4000", ""))

	// A rotating forwarding header from a direct client neither resets its
	// budget nor adds buckets.
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.5:4002", "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.5:4003", "198.51.100.2"))
	assert.Len(t, l.buckets, 2)
}
