// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryBaseDelay is the first backoff between attempts; it doubles on each
// retry. Tests override it to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// Retrying re-runs a failed invocation. Timeouts and context cancellation
// are not retried.
type Retrying struct {
	Runner
	retries int
	logger  *slog.Logger
}

// WithRetry wraps rn so that a failing call is attempted up to retries
// more times. A retries value of zero or less returns rn unchanged.
func WithRetry(rn Runner, retries int, logger *slog.Logger) Runner {
	if retries <= 0 {
		return rn
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{Runner: rn, retries: retries, logger: logger}
}

// Run calls the wrapped runner, backing off between failed attempts. The
// last error is returned once the retries are used up.
func (r *Retrying) Run(ctx context.Context, args ...string) (Result, error) {
	for attempt := 0; ; attempt++ {
		res, err := r.Runner.Run(ctx, args...)
		if err == nil || attempt >= r.retries || !retryable(ctx, err) {
			return res, err
		}

		backoff := RetryBaseDelay << attempt
		r.logger.Warn("tool failed, retrying",
			slog.String("tool", r.Name()),
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", r.retries),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, ErrTimeout) && !errors.Is(err, context.Canceled)
}
