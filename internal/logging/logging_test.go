package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"error":   slog.LevelError,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTo(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("run finished", "issues", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["msg"] != "run finished" || rec["issues"] != float64(2) {
		t.Errorf("record = %v", rec)
	}
}

func TestNewToText(t *testing.T) {
	var buf bytes.Buffer
	NewTo(&buf, "debug", "text").Debug("loaded", "rows", 3)
	if !strings.Contains(buf.String(), "rows=3") {
		t.Errorf("text output = %q", buf.String())
	}
}
