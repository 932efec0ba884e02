//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults on a minimal file", func(t *testing.T) {
		// --- Arrange ---
		path := writeConfig(t, "bot:\n  mode: noop\ndatabase:\n  url: postgres://u:p@localhost/db\n")

		// --- Act ---
		cfg, err := Load(path, false)

		// --- Assert ---
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.Scheduler.DefaultTime != "08:00" {
			t.Errorf("expected default time 08:00, got %q", cfg.Scheduler.DefaultTime)
		}
		if cfg.Weather.CacheTTL != 300*time.Second {
			t.Errorf("expected cache ttl 300s, got %v", cfg.Weather.CacheTTL)
		}
		if cfg.HTTP.MaxRetries != 3 || cfg.HTTP.MaxConnsPerHost != 100 {
			t.Errorf("unexpected http defaults: %+v", cfg.HTTP)
		}
		if cfg.Weather.Units != "metric" {
			t.Errorf("expected metric units, got %q", cfg.Weather.Units)
		}
	})

	t.Run("environment overrides yaml", func(t *testing.T) {
		// --- Arrange ---
		path := writeConfig(t, "bot:\n  mode: noop\ndatabase:\n  url: postgres://u:p@localhost/db\nscheduler:\n  default_time: \"07:00\"\n")
		t.Setenv("DEFAULT_NOTIFICATION_TIME", "06:30")
		t.Setenv("OPENWEATHER_API_KEY", "abc")
		t.Setenv("HTTP_TIMEOUT", "3s")

		// --- Act ---
		cfg, err := Load(path, true)

		// --- Assert ---
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.Scheduler.DefaultTime != "06:30" {
			t.Errorf("expected env default time 06:30, got %q", cfg.Scheduler.DefaultTime)
		}
		if cfg.Weather.APIKey != "abc" {
			t.Errorf("expected api key from env, got %q", cfg.Weather.APIKey)
		}
		if cfg.HTTP.Timeout != 3*time.Second {
			t.Errorf("expected 3s timeout, got %v", cfg.HTTP.Timeout)
		}
		if !cfg.Runtime.Dev {
			t.Error("expected dev flag to be carried")
		}
	})

	t.Run("missing file falls back to env and defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
		t.Setenv("BOT_MODE", "noop")

		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.Database.URL == "" {
			t.Error("expected database url from env")
		}
	})

	t.Run("rejects malformed default time", func(t *testing.T) {
		path := writeConfig(t, "bot:\n  mode: noop\ndatabase:\n  url: postgres://x\nscheduler:\n  default_time: \"25:99\"\n")

		_, err := Load(path, false)
		if err == nil || !strings.Contains(err.Error(), "invalid config") {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("requires bot token in real mode", func(t *testing.T) {
		path := writeConfig(t, "database:\n  url: postgres://x\n")

		if _, err := Load(path, false); err == nil {
			t.Fatal("expected error for missing bot token")
		}
	})

	t.Run("rejects unknown weather language", func(t *testing.T) {
		path := writeConfig(t, "bot:\n  mode: noop\ndatabase:\n  url: postgres://x\nweather:\n  lang: \"not a tag!\"\n")

		if _, err := Load(path, false); err == nil {
			t.Fatal("expected error for invalid language tag")
		}
	})
}
