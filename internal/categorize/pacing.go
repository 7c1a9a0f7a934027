package categorize

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out consecutive completion calls in a batch.
// Wait blocks until the next call may start or ctx is done.
type Pacer interface {
	Wait(ctx context.Context) error
}

// FixedDelay sleeps for a constant duration between calls.
type FixedDelay time.Duration

// Wait sleeps for d unless ctx is cancelled first.
func (d FixedDelay) Wait(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(d))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RateLimit allows a steady number of calls per minute with no bursts.
type RateLimit struct {
	limiter *rate.Limiter
}

// NewRateLimit returns a pacer admitting perMinute calls per minute.
func NewRateLimit(perMinute int) *RateLimit {
	return &RateLimit{limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)}
}

// Wait blocks until the limiter admits another call.
func (r *RateLimit) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// NoDelay never waits.
type NoDelay struct{}

// Wait returns immediately.
func (NoDelay) Wait(ctx context.Context) error { return ctx.Err() }

// NewPacer picks RateLimit when ratePerMinute is positive and FixedDelay otherwise.
func NewPacer(delay time.Duration, ratePerMinute int) Pacer {
	if ratePerMinute > 0 {
		return NewRateLimit(ratePerMinute)
	}
	if delay <= 0 {
		return NoDelay{}
	}
	return FixedDelay(delay)
}
