package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8000" {
		t.Fatalf("Listen = %q, want default", cfg.Listen)
	}
	if cfg.WindowMinutes != 10 || cfg.PollSeconds != 60 || cfg.FetchTimeoutSeconds != 10 {
		t.Fatalf("unexpected defaults: window=%d poll=%d timeout=%d",
			cfg.WindowMinutes, cfg.PollSeconds, cfg.FetchTimeoutSeconds)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("config file perms = %o, want 0600", perm)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	in := &Config{
		Listen: "0.0.0.0:9000",
		Feed: FeedConfig{
			URL: "https://calendar.example.com/basic.ics",
			ID:  "team",
		},
		WindowMinutes:       5,
		PollSeconds:         30,
		FetchTimeoutSeconds: 3,
		Timezone:            "Asia/Seoul",
		AllowedOrigins:      []string{"https://app.example.com"},
		WarmCron:            "@every 5m",
		CacheDir:            "/tmp/remindd-cache",
		LogLevel:            "DEBUG",
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if out.Feed.URL != in.Feed.URL || out.Feed.ID != in.Feed.ID {
		t.Fatalf("feed mismatch: %+v", out.Feed)
	}
	if out.WindowMinutes != 5 || out.PollSeconds != 30 || out.FetchTimeoutSeconds != 3 {
		t.Fatalf("numbers mismatch: %+v", out)
	}
	if out.Timezone != "Asia/Seoul" {
		t.Fatalf("Timezone = %q", out.Timezone)
	}
	if len(out.AllowedOrigins) != 1 || out.AllowedOrigins[0] != "https://app.example.com" {
		t.Fatalf("AllowedOrigins = %v", out.AllowedOrigins)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := &Config{
		Feed: FeedConfig{URL: "https://calendar.example.com/basic.ics"},
	}
	cfg.Normalize()

	if cfg.Listen == "" || cfg.Timezone == "" || cfg.CacheDir == "" || cfg.LogLevel == "" {
		t.Fatalf("Normalize left zero values: %+v", cfg)
	}
	if cfg.WindowMinutes != 10 {
		t.Fatalf("WindowMinutes = %d, want 10", cfg.WindowMinutes)
	}
	if cfg.PollSeconds != 60 {
		t.Fatalf("PollSeconds = %d, want 60", cfg.PollSeconds)
	}
	if cfg.FetchTimeoutSeconds != 10 {
		t.Fatalf("FetchTimeoutSeconds = %d, want 10", cfg.FetchTimeoutSeconds)
	}
	if cfg.Feed.ID != "default" {
		t.Fatalf("Feed.ID = %q, want %q", cfg.Feed.ID, "default")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
