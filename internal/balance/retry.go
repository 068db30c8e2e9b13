package balance

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

var (
	// ErrRetryable marks a transient failure.
	ErrRetryable = &scouterr.ScoutError{
		Code:     "RETRYABLE_ERROR",
		Message:  "retryable error",
		ExitCode: scouterr.ExitUnavailable,
	}

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = &scouterr.ScoutError{
		Code:     "RATE_LIMITED",
		Message:  "rate limited",
		ExitCode: scouterr.ExitUnavailable,
	}
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int           // including the first
	BaseDelay   time.Duration // delay before the first retry
	MaxDelay    time.Duration // cap on any single delay
}

// DefaultRetryConfig makes 4 attempts with delays of about 250ms, 500ms and 1s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    time.Second,
	}
}

// Retry runs operation until it succeeds, fails with a non-retryable
// error, or cfg.MaxAttempts is reached.
func Retry[T any](ctx context.Context, cfg RetryConfig, operation func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	attempts := max(cfg.MaxAttempts, 1)

	for attempt := range attempts {
		result, err = operation()
		if err == nil || !IsRetryable(err) {
			return result, err
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(backoff(attempt, cfg.BaseDelay, cfg.MaxDelay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}

	return result, fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

// backoff doubles base per attempt up to maxDelay, with jitter in [d/2, d).
func backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	d := min(base<<attempt, maxDelay)
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half) //nolint:gosec // jitter
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// WrapRetryable marks err as retryable.
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}
