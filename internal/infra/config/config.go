// Package config loads and validates the maitred configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WidgetConfig holds the chat surface identity.
type WidgetConfig struct {
	Name     string `yaml:"name"`     // shown in the status bar
	Greeting string `yaml:"greeting"` // first system message, optional
}

// BackendConfig holds the external chat-completion backend settings.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"` // duration string, default "30s"
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32 `yaml:"max_failures"` // consecutive failures before opening
	Timeout     string `yaml:"timeout"`      // open-state duration, default "30s"
	Interval    string `yaml:"interval"`     // closed-state reset period, default "60s"
}

// NewsletterConfig holds the newsletter persistence service settings.
type NewsletterConfig struct {
	URL        string        `yaml:"url"`
	Token      string        `yaml:"token"`
	Timeout    string        `yaml:"timeout"`      // duration string, default "10s"
	RatePerMin int           `yaml:"rate_per_min"` // client-side request budget
	Burst      int           `yaml:"burst"`
	Breaker    BreakerConfig `yaml:"breaker"`
}

// DrawerConfig holds the drawer state machine windows. All are duration
// strings; zero values fall back to the built-in defaults.
type DrawerConfig struct {
	AutoClose      string   `yaml:"auto_close"`      // default "8s"
	ReopenSuppress string   `yaml:"reopen_suppress"` // default "2s"
	SuccessReset   string   `yaml:"success_reset"`   // default "500ms"
	CloseReassert  string   `yaml:"close_reassert"`  // default "50ms"
	PromptCooldown string   `yaml:"prompt_cooldown"` // default "10s"
	ExtraKeywords  []string `yaml:"extra_keywords,omitempty"`
}

// StorageConfig holds the local subscriber store settings.
type StorageConfig struct {
	Path string `yaml:"path"` // sqlite file, default "./data/maitred.db"
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "stdout" or "noop"
}

// Config is the top-level application configuration.
type Config struct {
	Widget     WidgetConfig     `yaml:"widget"`
	Backend    BackendConfig    `yaml:"backend"`
	Newsletter NewsletterConfig `yaml:"newsletter"`
	Drawer     DrawerConfig     `yaml:"drawer"`
	Storage    StorageConfig    `yaml:"storage"`
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
}

// Defaults returns a config populated with production defaults.
func Defaults() *Config {
	return &Config{
		Widget: WidgetConfig{
			Name: "Maitred",
		},
		Backend: BackendConfig{
			Timeout: "30s",
		},
		Newsletter: NewsletterConfig{
			Timeout:    "10s",
			RatePerMin: 30,
			Burst:      5,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     "30s",
				Interval:    "60s",
			},
		},
		Drawer: DrawerConfig{
			AutoClose:      "8s",
			ReopenSuppress: "2s",
			SuccessReset:   "500ms",
			CloseReassert:  "50ms",
			PromptCooldown: "10s",
		},
		Storage: StorageConfig{
			Path: "./data/maitred.db",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads the config file at path, applies environment overrides,
// validates, and returns the result. A missing file is not an error: the
// defaults plus env overrides are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps MAITRED_* env vars to config fields. Secrets are
// expected to come from the environment rather than the file.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAITRED_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("MAITRED_BACKEND_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("MAITRED_NEWSLETTER_URL"); v != "" {
		cfg.Newsletter.URL = v
	}
	if v := os.Getenv("MAITRED_NEWSLETTER_TOKEN"); v != "" {
		cfg.Newsletter.Token = v
	}
	if v := os.Getenv("MAITRED_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("MAITRED_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
		if cfg.Tracer.Exporter == "" || cfg.Tracer.Exporter == "noop" {
			cfg.Tracer.Exporter = "stdout"
		}
	}
	if v := os.Getenv("MAITRED_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
}

// ParseDurationOr parses a duration string, falling back to def when the
// string is empty or invalid. Validate reports invalid strings, so the
// fallback only papers over configs that were never validated.
func ParseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
