package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &rateLimitError{}, true},
		{"server 500", &serverError{statusCode: 500}, true},
		{"transient network", &transientError{err: errors.New("conn refused")}, true},
		{"wrapped transient", fmt.Errorf("calling API: %w", &transientError{err: errors.New("reset")}), true},
		{"auth", &authError{message: "bad key"}, false},
		{"plain", errors.New("no choices in response"), false},
		{"client error", errors.New("API error (status 400)"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsAuthError(t *testing.T) {
	if !IsAuthError(&authError{message: "expired"}) {
		t.Error("IsAuthError(authError) = false")
	}
	if !IsAuthError(fmt.Errorf("completing: %w", &authError{message: "expired"})) {
		t.Error("IsAuthError(wrapped authError) = false")
	}
	if IsAuthError(errors.New("rate limited")) {
		t.Error("IsAuthError(plain error) = true")
	}
}

func TestRetryWithBackoffSuccessFirstTry(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), 3, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("retryWithBackoff error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoffNonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	wantErr := &authError{message: "bad key"}
	err := retryWithBackoff(context.Background(), 3, func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("retryWithBackoff error = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries for auth errors)", calls)
	}
}

func TestRetryWithBackoffHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retryWithBackoff(ctx, 3, func() error {
		calls++
		return &rateLimitError{}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("retryWithBackoff error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancelled before the first backoff)", calls)
	}
}
