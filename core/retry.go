package core

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy controls re-attempts for retryable failures. Only api_call
// errors flagged retryable and explicit retryable errors are re-attempted.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultRetryPolicy mirrors the documented defaults: 3 attempts, exponential
// backoff starting at 200ms, jitter, capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}
}

// Delay computes the backoff before the given retry attempt (1-based). A
// server-provided hint overrides the schedule.
func (p RetryPolicy) Delay(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		if p.MaxDelay > 0 && hint > p.MaxDelay {
			return p.MaxDelay
		}
		return hint
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if p.Jitter && delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay) / 4))
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return delay
}

// Do runs fn, re-attempting retryable failures per the policy. Context
// cancellation aborts immediately with a canceled error.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return NewCanceled(err)
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) || attempt == attempts {
			return lastErr
		}
		delay := p.Delay(attempt, GetRetryAfter(lastErr))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return NewCanceled(ctx.Err())
		case <-timer.C:
		}
	}
	return lastErr
}
