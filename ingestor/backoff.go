package ingestor

import (
	"context"
	"math/rand"
	"time"
)

// BackoffPolicy retries an operation a bounded number of times, doubling the
// delay between attempts up to a cap, with a random jitter fraction added so
// parallel workers do not retry in lockstep.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// DefaultBackoff is the policy applied to fetch and store operations when
// none is configured
var DefaultBackoff = BackoffPolicy{
	MaxAttempts: 4,
	BaseDelay:   250 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	Jitter:      0.25,
}

// Delay returns how long to sleep before the given retry attempt
// (attempt 0 is the delay after the first failure)
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}

// Retry runs op, retrying while it fails with a transient error, up to
// MaxAttempts total attempts. Permanent errors and context cancellation end
// the retry loop immediately.
func (p BackoffPolicy) Retry(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if !IsTransient(err) || attempt == attempts-1 {
			return err
		}
		select {
		case <-time.After(p.Delay(attempt)):
		case <-ctx.Done():
			return err
		}
	}
	return err
}
