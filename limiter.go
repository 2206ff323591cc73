package pagecms

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimiter is a per-IP sliding-window limiter for the public API. Every
// render miss reaches the content database, so bursts from one client are
// capped here.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
	done   chan struct{}
	once   sync.Once
}

// NewRateLimiter allows max requests per window for each IP. Call Stop to end
// the background cleanup.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	l := &RateLimiter{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *RateLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := l.now().Add(-l.window)
			l.mu.Lock()
			for ip, hits := range l.hits {
				if kept := prune(hits, cutoff); len(kept) == 0 {
					delete(l.hits, ip)
				} else {
					l.hits[ip] = kept
				}
			}
			l.mu.Unlock()
		case <-l.done:
			return
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *RateLimiter) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Allow reports whether ip is under the limit and records the request if so.
func (l *RateLimiter) Allow(ip string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := prune(l.hits[ip], now.Add(-l.window))
	if len(kept) >= l.max {
		l.hits[ip] = kept
		return false
	}
	l.hits[ip] = append(kept, now)
	return true
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !l.Allow(c.RealIP()) {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		}
		return next(c)
	}
}
