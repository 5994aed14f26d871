package mediacore

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds the optimistic-concurrency retry loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the production retry settings: three attempts
// with jittered linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
	}
}

// RetryOnConflict runs fn up to policy.MaxAttempts times, retrying only when
// isRetryable reports the error as a conflict. Each wait grows linearly from
// BaseDelay with up to 50% random jitter so concurrent writers desynchronize.
// A non-conflict error, context cancellation, or attempt exhaustion ends the
// loop with the last error.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, isRetryable func(error) bool, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := time.Duration(attempt) * policy.BaseDelay
		delay += time.Duration(rand.Int63n(int64(policy.BaseDelay)/2 + 1))
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
