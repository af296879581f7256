package fetcher

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy describes how transient fetch failures are retried.
// The wait before retry n is BaseDelay*2^n plus a uniform jitter in [JitterMin, JitterMax).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	JitterMin   time.Duration
	JitterMax   time.Duration
}

// DefaultRetryPolicy waits 2^attempt + random(1,3) seconds, five attempts in total
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		JitterMin:   time.Second,
		JitterMax:   3 * time.Second,
	}
}

// withDefaults fills every unset field from DefaultRetryPolicy
func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.JitterMin <= 0 {
		p.JitterMin = d.JitterMin
	}
	if p.JitterMax <= 0 {
		p.JitterMax = d.JitterMax
	}
	if p.JitterMax < p.JitterMin {
		p.JitterMax = p.JitterMin
	}
	return p
}

// Attempts resolves a per-call override against the policy
func (p RetryPolicy) Attempts(override int) int {
	if override > 0 {
		return override
	}
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 1
}

// Backoff returns the wait after the given zero-based attempt
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	wait := p.BaseDelay * time.Duration(int64(1)<<attempt)
	return wait + p.jitter()
}

func (p RetryPolicy) jitter() time.Duration {
	span := p.JitterMax - p.JitterMin
	if span <= 0 {
		return max(p.JitterMin, 0)
	}
	return p.JitterMin + time.Duration(rand.Int64N(int64(span)))
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
