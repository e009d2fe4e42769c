// Package ratelimit implements the global crawl-rate delay shared by every fetch.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/critic-review-crawler/internal/metrics"
)

// DefaultDelay is the crawl-rate interval applied before every request.
const DefaultDelay = time.Second

// Limiter blocks callers for a fixed delay before each request. Calls are
// serialized, so concurrent callers share one delay budget.
type Limiter struct {
	mu      sync.Mutex
	delay   time.Duration
	ceiling *rate.Limiter
}

// Config holds rate limiter configuration.
type Config struct {
	// Delay is slept before every request. Zero disables the sleep.
	Delay time.Duration
	// MaxPerMinute caps the request rate on top of Delay. Zero means no cap.
	MaxPerMinute int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	l := &Limiter{delay: cfg.Delay}
	if l.delay < 0 {
		l.delay = 0
	}
	if cfg.MaxPerMinute > 0 {
		l.ceiling = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.MaxPerMinute)), 1)
	}
	return l
}

// Delay returns the fixed interval applied per request.
func (l *Limiter) Delay() time.Duration {
	return l.delay
}

// Wait blocks for the crawl-rate interval, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	if l.ceiling != nil {
		if err := l.ceiling.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if err := sleep(ctx, l.delay); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	metrics.ObserveRateLimitWait(time.Since(start))
	return nil
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
