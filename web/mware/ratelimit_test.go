package mware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/log"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 2, IdleTimeout: 60}, log.NewNullLogger())
	defer rl.Close()
	handler := rl.Limit(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})

	call := func(remote string, xff string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/vagas", http.NoBody)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1234", "").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1235", "").Code)
	rec := call("10.0.0.1:1236", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too many requests"}`, rec.Body.String())

	// other clients have their own bucket
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1234", "").Code)
	// an untrusted X-Forwarded-For does not open a new bucket
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1234", "203.0.113.7, 10.0.0.1").Code)
}

func TestRateLimiter_ForwardedFor(t *testing.T) {
	limited := func(trust bool) int {
		rl := NewRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 1, IdleTimeout: 60, TrustForwardedFor: trust}, log.NewNullLogger())
		defer rl.Close()
		handler := rl.Limit(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusOK)
		})
		allowed := 0
		for i := range 50 {
			req := httptest.NewRequest(http.MethodGet, "/api/vagas", http.NoBody)
			req.RemoteAddr = "10.0.0.1:1234"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
			rec := httptest.NewRecorder()
			handler(rec, req)
			if rec.Code == http.StatusOK {
				allowed++
			}
		}
		rl.mu.Lock()
		defer rl.mu.Unlock()
		if trust {
			assert.Len(t, rl.clients, 50)
		} else {
			assert.Len(t, rl.clients, 1)
		}
		return allowed
	}

	assert.Equal(t, 1, limited(false))
	assert.Equal(t, 50, limited(true))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTimeout: 10}, log.NewNullLogger())
	defer rl.Close()

	now := time.Now()
	rl.limiterFor("a", now.Add(-time.Minute))
	rl.limiterFor("b", now)
	rl.cleanup(now)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "b")
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		remote string
		xff    string
		trust  bool
		exp    string
	}{
		{"10.0.0.1:1234", "", true, "10.0.0.1"},
		{"10.0.0.1:1234", "203.0.113.7", true, "203.0.113.7"},
		{"10.0.0.1:1234", " 203.0.113.7 , 10.0.0.9", true, "203.0.113.7"},
		{"10.0.0.1:1234", "203.0.113.7", false, "10.0.0.1"},
		{"[::1]:80", "", false, "::1"},
		{"pipe", "", false, "pipe"},
		{"", "", false, "unknown"},
	}
	for _, test := range tests {
		t.Run(test.remote+"/"+test.xff, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = test.remote
			if test.xff != "" {
				req.Header.Set("X-Forwarded-For", test.xff)
			}
			assert.Equal(t, test.exp, clientKey(req, test.trust))
		})
	}
}

func TestRateLimiter_CloseTwice(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1}, log.NewNullLogger())
	rl.Close()
	rl.Close()
}
