package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FeedConfig describes the ICS subscription the daemon polls.
type FeedConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging.
	ID string `yaml:"id" json:"id"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the reminder stream endpoint.
	Listen string `yaml:"listen" json:"listen"`

	// Feed is the ICS source to poll for upcoming events.
	Feed FeedConfig `yaml:"feed" json:"feed"`

	// WindowMinutes is the reminder lookahead: an event is announced when
	// its start lies within (now, now+window].
	WindowMinutes int `yaml:"window_minutes" json:"window_minutes"`

	// PollSeconds is the delay between poll cycles of one client session.
	PollSeconds int `yaml:"poll_seconds" json:"poll_seconds"`

	// FetchTimeoutSeconds bounds a single feed retrieval.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// Timezone is the IANA timezone used to render reminder start times
	// (e.g. "Asia/Seoul"). Empty means UTC.
	Timezone string `yaml:"timezone" json:"timezone"`

	// AllowedOrigins lists CORS origins permitted to subscribe to the
	// reminder stream.
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`

	// WarmCron is a cron-style schedule string (e.g. "@every 15m") for the
	// background fetch that keeps the feed cache warm. Empty disables it.
	WarmCron string `yaml:"warm_cron" json:"warm_cron"`

	// CacheDir is the directory for the conditional-GET feed cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogLevel is the minimum log level (DEBUG/INFO/WARN/ERROR).
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              "127.0.0.1:8000",
		Feed:                FeedConfig{},
		WindowMinutes:       10,
		PollSeconds:         60,
		FetchTimeoutSeconds: 10,
		Timezone:            "UTC",
		AllowedOrigins:      []string{"http://localhost:5173"},
		WarmCron:            "@every 15m",
		CacheDir:            "/var/lib/remindd/feed-cache",
		LogLevel:            "INFO",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8000"
	}
	if c.WindowMinutes <= 0 {
		c.WindowMinutes = 10
	}
	if c.PollSeconds <= 0 {
		c.PollSeconds = 60
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = 10
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if c.CacheDir == "" {
		c.CacheDir = "/var/lib/remindd/feed-cache"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Feed.ID == "" && c.Feed.URL != "" {
		c.Feed.ID = "default"
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".remindd-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
