// Package retry retries flaky network calls with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"
)

// Config controls retry behavior.
type Config struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	IsRetryable func(error) bool
}

// Once retries a single time after a short pause.
var Once = Config{
	MaxRetries:  1,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    2 * time.Second,
	IsRetryable: IsTransient,
}

// Do runs fn until it succeeds, the error is not retryable, or the retries
// are exhausted.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			d := backoffWithJitter(cfg.BaseDelay, attempt-1, cfg.MaxDelay)
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			}
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if cfg.IsRetryable != nil && !cfg.IsRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// TransientError marks an error worth another attempt, such as an HTTP 5xx.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports timeouts and errors marked with TransientError.
// Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// backoffWithJitter computes exponential backoff with +/-20% jitter, capped at maxDelay.
func backoffWithJitter(base time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	if d > maxDelay {
		d = maxDelay
	}
	jitter := float64(d) * 0.2 * (2*rand.Float64() - 1)
	d = time.Duration(float64(d) + jitter)
	if d < 0 {
		d = base
	}
	return d
}
