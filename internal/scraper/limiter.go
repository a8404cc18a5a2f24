package scraper

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"brewbook/internal/config"
)

// DomainLimiter applies an optional token bucket per host on top of the batch pause.
type DomainLimiter struct {
	requests int
	window   time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDomainLimiter returns nil when the configuration disables per-domain limiting.
func NewDomainLimiter(cfg config.RateLimitConfig) *DomainLimiter {
	if !cfg.Enabled() {
		return nil
	}
	return &DomainLimiter{
		requests: cfg.Requests,
		window:   cfg.Window.Duration,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the host has a free token or ctx is done. A nil limiter never blocks.
func (d *DomainLimiter) Wait(ctx context.Context, host string) error {
	if d == nil || host == "" {
		return nil
	}
	host = strings.ToLower(host)

	d.mu.Lock()
	limiter := d.ensureLimiterLocked(host)
	d.mu.Unlock()

	return limiter.Wait(ctx)
}

func (d *DomainLimiter) ensureLimiterLocked(host string) *rate.Limiter {
	limiter, ok := d.limiters[host]
	if ok {
		return limiter
	}
	interval := d.window / time.Duration(d.requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	limiter = rate.NewLimiter(rate.Every(interval), d.requests)
	d.limiters[host] = limiter
	return limiter
}

// sleepContext waits for d unless ctx ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
