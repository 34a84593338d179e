package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// PushLimiter is a token bucket applied to delivery-sink publishes.
// A broadcast fan-out can try to push thousands of events in one job;
// the limiter smooths that into a steady rate the gateway can absorb.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type PushLimiter struct {
	limiter *rate.Limiter
}

// New creates a PushLimiter allowing ratePerSec publishes per second.
func New(ratePerSec int) *PushLimiter {
	return &PushLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

// Wait blocks until the limiter grants a token.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (l *PushLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
