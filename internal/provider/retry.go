package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds retries of transient vendor failures.
type RetryPolicy struct {
	Attempts    int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Retry runs fn up to policy.Attempts times with exponential backoff.
// Permanent vendor signals (ErrNumberBurned) and context cancellation abort
// immediately. After exhausting attempts the last error is wrapped in
// ErrUnavailable so callers can treat it as an expected outcome.
func Retry(ctx context.Context, logger *slog.Logger, policy RetryPolicy, op string, fn func(ctx context.Context) error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrNumberBurned) || errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		delay := ComputeBackoff(attempt, policy.BackoffBase, policy.BackoffCap)
		logger.WarnContext(ctx, "provider call failed, retrying",
			"op", op, "attempt", attempt, "backoff", delay.String(), "error", lastErr)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	logger.WarnContext(ctx, "provider call failed after all attempts", "op", op, "attempts", attempts, "error", lastErr)
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, lastErr)
}
