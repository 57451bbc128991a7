// Package middleware holds the HTTP middleware the API server is wrapped in.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter allows a fixed number of requests per client per window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time
}

type window struct {
	start    time.Time
	requests int
}

// RateLimitConfig configures a Limiter.
type RateLimitConfig struct {
	Requests int
	Period   time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Requests: 30, Period: time.Minute}
}

func NewLimiter(cfg RateLimitConfig) *Limiter {
	def := DefaultRateLimitConfig()
	if cfg.Requests <= 0 {
		cfg.Requests = def.Requests
	}
	if cfg.Period <= 0 {
		cfg.Period = def.Period
	}
	return &Limiter{
		clients: make(map[string]*window),
		limit:   cfg.Requests,
		period:  cfg.Period,
		now:     time.Now,
	}
}

// Allow records a request from client and reports whether it is within the
// limit.
func (l *Limiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[client]
	if !ok || now.Sub(w.start) >= l.period {
		l.clients[client] = &window{start: now, requests: 1}
		return true
	}
	w.requests++
	return w.requests <= l.limit
}

// Prune forgets clients whose window ended before now.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for c, w := range l.clients {
		if now.Sub(w.start) >= l.period {
			delete(l.clients, c)
			n++
		}
	}
	return n
}

// CleanExpired lets a cache janitor prune the limiter.
func (l *Limiter) CleanExpired() int { return l.Prune() }

// ActiveClients returns the number of tracked clients.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// RateLimit rejects requests over the limit with onLimit. Safe methods are
// never limited.
func (l *Limiter) RateLimit(clientIP func(*http.Request) string, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.period.Seconds())))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
