// Package retry provides a cancellable retry policy with exponential
// backoff, shared by the external-engine adapters and the progress-stream
// transport.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/ctxlog"
)

// Policy describes how many times to attempt a fallible operation and how
// long to wait between attempts. The delay before attempt n (1-based) is
// BaseDelay * Multiplier^(n-1).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// Default is the policy used when configuration supplies none.
var Default = Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Multiplier: 2}

// Do runs fn until it succeeds, the attempt budget is exhausted, or the
// context is cancelled. The last error is returned wrapped with the attempt
// count; context cancellation is returned as-is so callers can distinguish
// it from operation failure.
func (p Policy) Do(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	logger := ctxlog.FromContext(ctx).With("op", label)

	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		logger.Warn("Attempt failed, backing off.", "attempt", attempt, "delay", delay, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", label, p.MaxAttempts, lastErr)
}
