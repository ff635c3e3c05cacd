package services

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum interval between requests for every caller sharing it.
//
// Only the limiter's reservation bookkeeping is serialized. Callers sleep and perform
// their requests concurrently.
type Throttle struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewThrottle creates a Throttle admitting one request per interval. An interval <= 0 disables it.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(interval), 1), interval: interval}
}

// Wait blocks until the next request may be issued or ctx is done.
//
// A nil Throttle never blocks.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}

// Interval returns the configured minimum interval, zero when disabled.
func (t *Throttle) Interval() time.Duration {
	if t == nil {
		return 0
	}
	return t.interval
}
