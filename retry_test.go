package pathsync

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryer_SucceedsAfterFailures(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
	})

	calls := 0
	result := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if result.LastErr != nil {
		t.Errorf("expected success, got %v", result.LastErr)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
}

func TestRetryer_ExhaustsAttempts(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	})

	boom := errors.New("boom")
	result := r.Do(context.Background(), func() error { return boom })

	if !errors.Is(result.LastErr, boom) {
		t.Errorf("expected boom, got %v", result.LastErr)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
}

func TestRetryer_RetryIf(t *testing.T) {
	fatal := errors.New("fatal")
	r := NewRetryer(RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		RetryIf:        func(err error) bool { return !errors.Is(err, fatal) },
	})

	calls := 0
	result := r.Do(context.Background(), func() error {
		calls++
		return fatal
	})

	if calls != 1 {
		t.Errorf("expected no retries on fatal error, got %d calls", calls)
	}
	if !errors.Is(result.LastErr, fatal) {
		t.Errorf("expected fatal, got %v", result.LastErr)
	}
}

func TestRetryer_ContextCancellation(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxAttempts:    10,
		InitialBackoff: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := r.Do(ctx, func() error { return errors.New("keep trying") })
	if !errors.Is(result.LastErr, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", result.LastErr)
	}
}

func TestRetry_Convenience(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 2, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("unexpected result: err=%v calls=%d", err, calls)
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		errors.New("connection refused"),
		errors.New("dial tcp: i/o TIMEOUT"),
		errors.New("503 Service Unavailable"),
		errors.New("too many requests"),
	}
	for _, err := range retryable {
		if !IsRetryable(err) {
			t.Errorf("expected retryable: %v", err)
		}
	}

	notRetryable := []error{
		nil,
		context.Canceled,
		context.DeadlineExceeded,
		errors.New("invalid credentials"),
	}
	for _, err := range notRetryable {
		if IsRetryable(err) {
			t.Errorf("expected not retryable: %v", err)
		}
	}
}
