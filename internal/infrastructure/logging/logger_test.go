package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/prodev-core/internal/infrastructure/config"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		t.Run("format "+format, func(t *testing.T) {
			logger := New(config.LoggingConfig{Level: "info", Format: format, Output: "stderr"}, "1.0.0")
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewWithWriter_DefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "2.3.4", &buf)

	logger.Info("query executed", "rows", 4)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log entry: %v", err)
	}
	if entry["service"] != "prodev" {
		t.Errorf("service = %v, want prodev", entry["service"])
	}
	if entry["version"] != "2.3.4" {
		t.Errorf("version = %v, want 2.3.4", entry["version"])
	}
	if entry["msg"] != "query executed" {
		t.Errorf("msg = %v, want %q", entry["msg"], "query executed")
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, "dev", &buf)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output contains filtered entries: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("output missing warn entry: %q", out)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "dev", &buf)

	logger.Component("dbaccess").Info("cache cleared")

	if !strings.Contains(buf.String(), `"component":"dbaccess"`) {
		t.Errorf("output missing component attribute: %q", buf.String())
	}
}

func TestSetLevel_SharedWithDerived(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, "dev", &buf)
	child := logger.Component("mqtt")

	child.Debug("before")
	logger.SetLevel("debug")
	child.Debug("after")

	if got := logger.Level(); got != slog.LevelDebug {
		t.Errorf("Level() = %v, want %v", got, slog.LevelDebug)
	}
	out := buf.String()
	if strings.Contains(out, "before") {
		t.Errorf("debug entry logged at info level: %q", out)
	}
	if !strings.Contains(out, "after") {
		t.Errorf("derived logger ignored SetLevel: %q", out)
	}
}

func TestRedact(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "dev", &buf)

	logger.Info("connecting", "host", "db.local", "Password", "hunter2", "token", "abc")

	out := buf.String()
	if strings.Contains(out, "hunter2") || strings.Contains(out, "abc\"") {
		t.Errorf("secret leaked: %q", out)
	}
	if !strings.Contains(out, `"host":"db.local"`) {
		t.Errorf("non-secret attribute missing: %q", out)
	}
	if strings.Count(out, redacted) != 2 {
		t.Errorf("want 2 redacted values in %q", out)
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("dropped")
	log.SetLevel("debug")
	if got := log.Level(); got != slog.LevelDebug {
		t.Errorf("Level() = %v, want %v", got, slog.LevelDebug)
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}
