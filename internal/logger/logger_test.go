package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLogger_BasicLogging(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{
		Output: &buf,
		Level:  LevelDebug,
	})

	ctx := context.Background()
	log.Info(ctx, "test message", map[string]interface{}{
		"key": "value",
	})

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry.Level != "info" {
		t.Errorf("expected level info, got %s", entry.Level)
	}
	if entry.Message != "test message" {
		t.Errorf("expected message 'test message', got %s", entry.Message)
	}
	if entry.Fields["key"] != "value" {
		t.Errorf("expected field key=value, got %v", entry.Fields["key"])
	}
}

func TestLogger_RequestIDPropagation(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{
		Output: &buf,
		Level:  LevelDebug,
	})

	ctx := WithRequestID(context.Background(), "test-request-id")
	log.Info(ctx, "test message", nil)

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry.RequestID != "test-request-id" {
		t.Errorf("expected request_id 'test-request-id', got %s", entry.RequestID)
	}
}

func TestLogger_LogLevels(t *testing.T) {
	tests := []struct {
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{LevelDebug, LevelDebug, true},
		{LevelDebug, LevelError, true},
		{LevelInfo, LevelDebug, false},
		{LevelWarn, LevelInfo, false},
		{LevelError, LevelWarn, false},
		{LevelError, LevelError, true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		log := New(&Config{Output: &buf, Level: tt.minLevel})

		ctx := context.Background()
		switch tt.logLevel {
		case LevelDebug:
			log.Debug(ctx, "message")
		case LevelInfo:
			log.Info(ctx, "message")
		case LevelWarn:
			log.Warn(ctx, "message")
		case LevelError:
			log.Error(ctx, "message", nil)
		}

		logged := buf.Len() > 0
		if logged != tt.shouldLog {
			t.Errorf("min=%v log=%v: logged=%v, want %v", tt.minLevel, tt.logLevel, logged, tt.shouldLog)
		}
	}
}

func TestLogger_ErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Output: &buf, Level: LevelDebug, Component: "test"})

	log.Error(context.Background(), "boom", errors.New("disk full"))

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if entry.Component != "test" {
		t.Errorf("expected component test, got %s", entry.Component)
	}
	if entry.Error == nil || entry.Error.Message != "disk full" {
		t.Errorf("expected error details with message 'disk full', got %+v", entry.Error)
	}
	if entry.Caller == "" {
		t.Error("expected caller to be set for error entries")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Output: &buf, Level: LevelDebug})

	log.WithComponent("scheduler").Info(context.Background(), "started")

	if !strings.Contains(buf.String(), `"component":"scheduler"`) {
		t.Errorf("expected component field in output, got %s", buf.String())
	}
}
