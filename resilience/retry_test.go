package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestRetry_Success(t *testing.T) {
	ctx := context.Background()
	attempts := 0

	result, err := Retry(ctx, fastRetryConfig(), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Retry() error = %v, want nil", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if result.Attempts != 1 {
		t.Errorf("result.Attempts = %d, want 1", result.Attempts)
	}
}

func TestRetry_EventualSuccess(t *testing.T) {
	ctx := context.Background()
	attempts := 0

	_, err := Retry(ctx, fastRetryConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Retry() error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_ExhaustionReturnsLastErrorUnchanged(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.MaxRetries = 3
	ctx := context.Background()
	attempts := 0
	persistent := errors.New("persistent error")

	result, err := Retry(ctx, cfg, func() error {
		attempts++
		return persistent
	})

	if !errors.Is(err, persistent) {
		t.Errorf("Retry() error = %v, want the original error", err)
	}
	if attempts != cfg.MaxRetries+1 {
		t.Errorf("attempts = %d, want %d", attempts, cfg.MaxRetries+1)
	}
	if result.Attempts != cfg.MaxRetries+1 {
		t.Errorf("result.Attempts = %d, want %d", result.Attempts, cfg.MaxRetries+1)
	}
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.RetryableCheck = func(err error) bool { return false }
	ctx := context.Background()
	attempts := 0
	final := errors.New("conflict")

	_, err := Retry(ctx, cfg, func() error {
		attempts++
		return final
	})

	if !errors.Is(err, final) {
		t.Errorf("Retry() error = %v, want %v", err, final)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.MaxRetries = 10
	cfg.BaseDelay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Retry(ctx, cfg, func() error {
		return errors.New("error")
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Retry() error = %v, want context deadline exceeded", err)
	}
}

func TestBackoffDelay_CapsAtMaxDelay(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 10.0,
	}

	delay := backoffDelay(cfg, 5)
	if delay > time.Second {
		t.Errorf("delay = %v, want <= 1s", delay)
	}
}

func TestBackoffDelay_JitterStaysWithinFactor(t *testing.T) {
	cfg := RetryConfig{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}

	for i := 0; i < 100; i++ {
		delay := backoffDelay(cfg, 1)
		if delay < 200*time.Millisecond || delay > 300*time.Millisecond {
			t.Fatalf("delay = %v, want within [200ms, 300ms]", delay)
		}
	}
}
