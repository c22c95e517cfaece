package errors

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy defines how transient storage failures are retried.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of retries (0 means no retry).
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the starting backoff duration.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps the backoff duration.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier is the backoff multiplier (default: 2.0).
	Multiplier float64 `yaml:"multiplier"`

	// JitterPercent is the jitter percentage (0.1 for 10%).
	JitterPercent float64 `yaml:"jitter_percent"`
}

// DefaultStoragePolicy returns the policy used for locked database writes.
func DefaultStoragePolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:   5,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      time.Second,
		Multiplier:    2.0,
		JitterPercent: 0.1,
	}
}

// ErrTransient marks a failure worth retrying, such as a busy database.
var ErrTransient = errors.New("transient failure")

// Transient wraps err so that Retry attempts the operation again.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return New(ClassStorage, op, err.Error(), errors.Join(ErrTransient, err))
}

// Retry runs fn until it succeeds, returns a non-transient error, the
// policy is exhausted or ctx is done. The last error is returned.
func Retry(ctx context.Context, policy *RetryPolicy, fn func() error) error {
	if policy == nil || policy.MaxAttempts <= 0 {
		return fn()
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !errors.Is(lastErr, ErrTransient) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}
		delay := AddJitter(CalculateDelay(attempt, policy), policy.JitterPercent)
		if err := waitBeforeRetry(ctx, delay); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func waitBeforeRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
