package services

import (
	"context"
	"errors"
	"time"

	"github.com/plinth-labs/retrieva/internal/core/domain"
)

// backoffMultiplier is the exponential growth factor between retries.
const backoffMultiplier = 2.0

// retryPolicy bounds the exponential backoff applied to transient
// embedding failures.
type retryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func newRetryPolicy(cfg domain.EngineConfig) retryPolicy {
	return retryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
}

// retryTransient executes fn, retrying with exponential backoff while the
// returned error wraps domain.ErrEmbeddingTransient. Permanent errors and
// context cancellation stop the loop immediately. onRetry, if non-nil, is
// invoked once before each re-attempt.
func retryTransient[T any](ctx context.Context, policy retryPolicy, onRetry func(), fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := policy.BaseDelay

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !errors.Is(err, domain.ErrEmbeddingTransient) {
			return zero, err
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}
		if onRetry != nil {
			onRetry()
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * backoffMultiplier)
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return zero, lastErr
}
