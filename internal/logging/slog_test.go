package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSetLevelFromString(t *testing.T) {
	defer SetLevel(slog.LevelInfo)

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
	}
	for _, tt := range tests {
		SetLevelFromString(tt.in)
		if got := logLevel.Level(); got != tt.want {
			t.Errorf("SetLevelFromString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	SetLevel(slog.LevelWarn)
	SetLevelFromString("verbose")
	if logLevel.Level() != slog.LevelWarn {
		t.Error("unknown level should leave the level unchanged")
	}
}

func TestInitStructuredTo_JSON(t *testing.T) {
	defer InitStructured("text", "info")

	var buf bytes.Buffer
	InitStructuredTo(&buf, "json", "info")
	Op().Info("step", "gateway", "orders", "outcome", "created")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if entry["gateway"] != "orders" || entry["outcome"] != "created" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestOpWithTrace_NoSpan(t *testing.T) {
	defer InitStructured("text", "info")

	var buf bytes.Buffer
	SetOutput(&buf)
	OpWithTrace(context.Background()).Info("hello")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("no span in context, got %q", buf.String())
	}
}
