package parser

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter spaces out requests per host so one busy publisher is never hammered.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewHostLimiter builds a limiter; a non-positive rate disables limiting.
func NewHostLimiter(requestsPerSecond float64, burst int) *HostLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &HostLimiter{
		limiters: map[string]*rate.Limiter{},
		rate:     limit,
		burst:    burst,
	}
}

// Wait blocks until the host of rawURL may be requested again or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	return l.forHost(strings.ToLower(parsed.Host)).Wait(ctx)
}

func (l *HostLimiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[host] = limiter
	}
	return limiter
}
