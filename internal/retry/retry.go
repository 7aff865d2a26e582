// Package retry retries provider calls with exponential backoff based on
// how their errors are classified.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy defines retry behavior for one kind of call.
type Policy struct {
	MaxRetries   int           // retries after the first attempt (0 = no retries)
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // cap for any single delay
	Multiplier   float64       // exponential backoff multiplier
	Jitter       bool          // add 0-20% random jitter to each delay
}

// DefaultPolicy is used for embedding and inference calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// guardedAttempts caps retries of errors classified as ClassMaybe.
const guardedAttempts = 2

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// policy runs out of retries. A nil classify uses Classify. onRetry, if set,
// is called before each wait.
func Do[T any](
	ctx context.Context,
	policy Policy,
	fn func(ctx context.Context) (T, error),
	classify func(error) Class,
	onRetry func(attempt int, delay time.Duration, err error),
) (T, error) {
	var zero T
	if classify == nil {
		classify = Classify
	}

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}

		class := classify(err)
		if class == ClassNonRetryable {
			return zero, err
		}
		if attempt >= policy.MaxRetries {
			return zero, &ExhaustedError{Err: err, Attempts: attempt + 1, MaxRetries: policy.MaxRetries}
		}
		if class == ClassMaybe && attempt >= guardedAttempts {
			return zero, &ExhaustedError{Err: err, Attempts: attempt + 1, MaxRetries: guardedAttempts, Guarded: true}
		}

		delay := backoff(policy, attempt, err)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("cancelled while waiting to retry: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

// backoff computes the wait before retry number attempt+1, preferring a
// Retry-After hint carried by err.
func backoff(policy Policy, attempt int, err error) time.Duration {
	if hint := RetryAfter(err); hint > 0 {
		return min(hint, policy.MaxDelay)
	}

	delay := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt))
	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	if policy.Jitter {
		delay += rand.Float64() * 0.2 * delay
	}
	return time.Duration(delay)
}
