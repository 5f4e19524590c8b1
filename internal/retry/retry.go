// Package retry provides exponential backoff for calls to external services.
package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/contractiq/server/internal/apperr"
)

// Config controls the retry behaviour.
type Config struct {
	MaxRetries      int           // retry attempts after the first call
	InitialDelay    time.Duration // delay before the first retry
	MaxDelay        time.Duration // upper bound for any delay
	ExponentialBase float64
	Jitter          bool // add +/-10% random jitter to each delay
}

// DefaultConfig returns the standard retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialDelay:    time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// ApplyDefaults fills zero fields with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.ExponentialBase <= 0 {
		c.ExponentialBase = d.ExponentialBase
	}
}

// Delay returns the backoff delay for the given zero-based attempt.
func (c Config) Delay(attempt int) time.Duration {
	delay := float64(c.InitialDelay) * math.Pow(c.ExponentialBase, float64(attempt))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.Jitter {
		jitter := delay * 0.1
		delay += (rand.Float64()*2 - 1) * jitter
		if delay < 0 {
			delay = 0
		}
	}
	return time.Duration(delay)
}

// Do runs fn with retries. Errors that apperr.IsRetryable rejects are returned
// immediately. When all attempts fail the last error is wrapped in a
// non-retryable external service error named after the operation.
func Do(ctx context.Context, name string, cfg Config, fn func() error) error {
	cfg.ApplyDefaults()

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !apperr.IsRetryable(lastErr) {
			slog.Warn("non-retryable error", "operation", name, "error", lastErr)
			return lastErr
		}

		if attempt >= cfg.MaxRetries {
			slog.Error("operation failed after retries",
				"operation", name,
				"attempts", cfg.MaxRetries+1,
				"error", lastErr)
			return apperr.ExternalService(name, lastErr.Error(), false).WithCause(lastErr)
		}

		delay := cfg.Delay(attempt)
		slog.Warn("operation failed, retrying",
			"operation", name,
			"attempt", attempt+1,
			"max_attempts", cfg.MaxRetries+1,
			"delay", delay,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
