package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.ServerAddr != ":8080" {
		t.Errorf("expected default server addr :8080, got %s", cfg.ServerAddr)
	}
	if cfg.WorkerCount != 3 {
		t.Errorf("expected default worker count 3, got %d", cfg.WorkerCount)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", cfg.MaxRetries)
	}
	if cfg.TerminateGrace != 5*time.Second {
		t.Errorf("expected default terminate grace 5s, got %v", cfg.TerminateGrace)
	}
	if cfg.CacheDir == "" {
		t.Error("cache dir should never be empty")
	}
	if cfg.MediaDir == "" {
		t.Error("media dir should never be empty")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKER_COUNT", "5")
	t.Setenv("MAX_RETRIES", "1")
	t.Setenv("TERMINATE_GRACE", "500ms")
	t.Setenv("CACHE_DIR", "/var/cache/vdl")

	cfg := Load()

	if cfg.WorkerCount != 5 {
		t.Errorf("expected worker count 5, got %d", cfg.WorkerCount)
	}
	if cfg.MaxRetries != 1 {
		t.Errorf("expected max retries 1, got %d", cfg.MaxRetries)
	}
	if cfg.TerminateGrace != 500*time.Millisecond {
		t.Errorf("expected terminate grace 500ms, got %v", cfg.TerminateGrace)
	}
	if cfg.CacheDir != "/var/cache/vdl" {
		t.Errorf("expected cache dir override, got %s", cfg.CacheDir)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("WORKER_COUNT", "-2")
	t.Setenv("RETRY_BACKOFF", "not-a-duration")

	cfg := Load()

	if cfg.WorkerCount != 3 {
		t.Errorf("invalid worker count should fall back to 3, got %d", cfg.WorkerCount)
	}
	if cfg.RetryBackoff != 2*time.Second {
		t.Errorf("invalid backoff should fall back to 2s, got %v", cfg.RetryBackoff)
	}
}
