package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"spawn error", SpawnError("fork failed"), true},
		{"process failure", ProcessFailure("network error"), true},
		{"storage error", StorageError("upload failed"), true},
		{"extraction failed", ExtractionFailed("cache not writable"), true},
		{"unsupported platform", UnsupportedPlatform("plan9", "386"), false},
		{"cancelled by user", CancelledByUser(), false},
		{"invalid url", InvalidURL("notaurl"), false},
		{"internal error", InternalError("boom"), false},
		{"database error", DatabaseError("boom"), false},
		{"bad request", BadRequest("boom"), false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	cfg := &RetryConfig{
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     60 * time.Second,
		BackoffFactor:  2.0,
	}

	if got := Backoff(0, cfg); got != 2*time.Second {
		t.Errorf("attempt 0: got %v, want 2s", got)
	}
	if got := Backoff(1, cfg); got != 4*time.Second {
		t.Errorf("attempt 1: got %v, want 4s", got)
	}
	if got := Backoff(2, cfg); got != 8*time.Second {
		t.Errorf("attempt 2: got %v, want 8s", got)
	}
	// Capped at MaxBackoff.
	if got := Backoff(10, cfg); got != 60*time.Second {
		t.Errorf("attempt 10: got %v, want 60s", got)
	}
}

func TestBackoffJitterStaysInBand(t *testing.T) {
	cfg := &RetryConfig{
		InitialBackoff: 8 * time.Second,
		MaxBackoff:     60 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}

	for i := 0; i < 100; i++ {
		got := Backoff(0, cfg)
		if got < 6*time.Second || got > 10*time.Second {
			t.Fatalf("jittered backoff %v outside ±25%% band", got)
		}
	}
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		cfg := &RetryConfig{
			MaxRetries:     3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			BackoffFactor:  2.0,
		}

		attempts := 0
		err := Retry(context.Background(), cfg, func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return ProcessFailure("network error")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		cfg := &RetryConfig{
			MaxRetries:     3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			BackoffFactor:  2.0,
		}

		attempts := 0
		err := Retry(context.Background(), cfg, func(ctx context.Context) error {
			attempts++
			return CancelledByUser()
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Retry(ctx, DefaultRetryConfig(), func(ctx context.Context) error {
			t.Fatal("function should not run after cancellation")
			return nil
		})
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "req-123", JobNotFound())

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") != "req-123" {
		t.Error("missing X-Request-ID header")
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Error.Code != CodeJobNotFound {
		t.Errorf("expected %s, got %s", CodeJobNotFound, resp.Error.Code)
	}
	if resp.Error.RequestID != "req-123" {
		t.Errorf("expected request ID in body, got %s", resp.Error.RequestID)
	}
}

func TestWriteError_WrapsPlainErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "", errors.New("boom"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Error.Code != CodeInternalError {
		t.Errorf("expected %s, got %s", CodeInternalError, resp.Error.Code)
	}
}
