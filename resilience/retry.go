package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

type RetryConfig struct {
	MaxRetries     int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFactor   float64
	RetryableCheck func(error) bool
}

type RetryResult struct {
	Attempts int
	LastErr  error
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
		RetryableCheck: func(err error) bool {
			return err != nil
		},
	}
}

// Retry runs fn up to MaxRetries+1 times. A non-retryable error propagates on
// first occurrence; exhausting retries returns the last error unchanged so the
// caller can still tell a conflict from an unreachable database.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) (*RetryResult, error) {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.RetryableCheck == nil {
		cfg.RetryableCheck = func(err error) bool { return err != nil }
	}

	result := &RetryResult{}
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		select {
		case <-ctx.Done():
			result.LastErr = ctx.Err()
			return result, ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err
		result.LastErr = err

		if !cfg.RetryableCheck(err) {
			return result, err
		}

		if attempt < cfg.MaxRetries {
			delay := backoffDelay(cfg, attempt)
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return result, lastErr
}

// backoffDelay computes min(MaxDelay, BaseDelay * Multiplier^attempt) plus a
// random jitter of up to JitterFactor*delay so concurrent retries from many
// callers do not synchronize.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))

	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.JitterFactor > 0 {
		delay += rand.Float64() * cfg.JitterFactor * delay
	}

	return time.Duration(delay)
}
