package server

import (
	"context"
	"golang.org/x/time/rate"
	"net"
	"net/http"
	"sync"
	"time"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows each client address rps requests per second with the given burst.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	logger   logger
}

func NewRateLimiter(rps float64, burst int, l logger) *RateLimiter {
	return &RateLimiter{
		limiters: map[string]*limiterEntry{},
		rate:     rate.Limit(rps),
		burst:    burst,
		logger:   l,
	}
}

func (rl *RateLimiter) allow(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Handler passes everything through on a nil RateLimiter.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.allow(key, time.Now()) {
			rl.logger.Infof("RateLimiter: Rate limit exceeded for %s on %s %s, TraceID: %s",
				key, r.Method, r.URL.Path, getTraceContext(r.Context()).traceID)
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup forgets clients idle for longer than idle.
func (rl *RateLimiter) Cleanup(now time.Time, idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for k, e := range rl.limiters {
		if now.Sub(e.lastSeen) > idle {
			delete(rl.limiters, k)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) RunCleanup(ctx context.Context, ticker *time.Ticker, idle time.Duration) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := rl.Cleanup(now, idle); n > 0 {
				rl.logger.Debugf("RunCleanup: Removed %d idle rate limiter(s)", n)
			}
		}
	}
}
