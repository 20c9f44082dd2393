package mware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mottu/patio-proxy/config"
	"github.com/mottu/patio-proxy/log"
	"github.com/mottu/patio-proxy/web/forward"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client address. Buckets of
// clients idle for longer than the idle timeout are dropped by a janitor.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	janitor   *time.Ticker
	stop      chan struct{}
	closeOnce sync.Once
	trustXFF  bool
	log       log.Logger
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(conf *config.RateLimitConfig, log log.Logger) *RateLimiter {
	idle := time.Duration(conf.IdleTimeout) * time.Second
	if idle <= 0 {
		idle = 3 * time.Minute
	}
	rl := &RateLimiter{
		clients:  make(map[string]*client),
		limit:    rate.Limit(conf.RequestsPerSecond),
		burst:    conf.Burst,
		idleTTL:  idle,
		janitor:  time.NewTicker(max(idle/2, time.Second)),
		stop:     make(chan struct{}),
		trustXFF: conf.TrustForwardedFor,
		log:      log,
	}
	go rl.run()
	return rl
}

func (rl *RateLimiter) run() {
	for {
		select {
		case <-rl.janitor.C:
			rl.cleanup(time.Now())
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-rl.idleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for k, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, k)
		}
	}
}

func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if c, ok := rl.clients[key]; ok {
		c.lastSeen = now
		return c.limiter
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients[key] = &client{limiter: l, lastSeen: now}
	return l
}

func (rl *RateLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r, rl.trustXFF)
		now := time.Now()
		res := rl.limiterFor(key, now).ReserveN(now, 1)
		if !res.OK() {
			rl.reject(w, key, time.Second)
			return
		}
		if delay := res.DelayFrom(now); delay > 0 {
			res.CancelAt(now)
			rl.reject(w, key, delay)
			return
		}
		next(w, r)
	}
}

func (rl *RateLimiter) reject(w http.ResponseWriter, key string, retryAfter time.Duration) {
	rl.log.Debugf("rate limit exceeded for %s", key)
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	forward.WriteError(w, http.StatusTooManyRequests, forward.ErrorBody{Error: "too many requests"})
}

func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		rl.janitor.Stop()
		close(rl.stop)
	})
}

func clientKey(r *http.Request, trustXFF bool) string {
	if xff := r.Header.Get("X-Forwarded-For"); trustXFF && xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
