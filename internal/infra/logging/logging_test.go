//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"telegram-weather-bot/internal/config"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(config.LogConfig{Level: "warn", Format: "json"}, false, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if bytes.Contains([]byte(out), []byte("hidden")) {
		t.Errorf("info event leaked at warn level: %s", out)
	}
	if !bytes.Contains([]byte(out), []byte("shown")) {
		t.Errorf("warn event missing: %s", out)
	}
}

func TestWithAttachesContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := newWithWriter(config.LogConfig{Level: "info", Format: "json"}, false, &buf)

	ctx := WithTgID(WithTraceID(context.Background(), "01HTRACE"), 42)
	With(ctx, base).Info().Msg("hello")

	var event map[string]any
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if event["trace_id"] != "01HTRACE" {
		t.Errorf("expected trace_id, got %v", event["trace_id"])
	}
	if event["tg_id"] != float64(42) {
		t.Errorf("expected tg_id 42, got %v", event["tg_id"])
	}
	if TraceID(ctx) != "01HTRACE" {
		t.Errorf("TraceID did not round-trip")
	}
}

func TestSafeURL(t *testing.T) {
	got := SafeURL("https://api.example.com/data/2.5/weather?q=Paris&appid=secret")
	if got != "https://api.example.com/data/2.5/weather" {
		t.Errorf("query not stripped: %s", got)
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("short", false); got != "***" {
		t.Errorf("wanted ***, got %s", got)
	}
	if got := Redact("1234567890abcdef", false); got != "1234...ef" {
		t.Errorf("wanted 1234...ef, got %s", got)
	}
	if got := Redact("visible", true); got != "visible" {
		t.Errorf("dev mode should not redact, got %s", got)
	}
}
