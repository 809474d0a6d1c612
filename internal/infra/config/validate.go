package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a
// *ValidationError when one or more problems are found, allowing callers
// to inspect all issues at once.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateWidget(cfg, ve)
	validateBackend(cfg, ve)
	validateNewsletter(cfg, ve)
	validateDrawer(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateWidget(cfg *Config, ve *ValidationError) {
	if cfg.Widget.Name == "" {
		ve.Add("widget.name must not be empty")
	}
}

func validateBackend(cfg *Config, ve *ValidationError) {
	if cfg.Backend.BaseURL != "" {
		if _, err := url.ParseRequestURI(cfg.Backend.BaseURL); err != nil {
			ve.Add("backend.base_url is not a valid URL: %v", err)
		}
	}
	checkDuration(ve, "backend.timeout", cfg.Backend.Timeout)
}

func validateNewsletter(cfg *Config, ve *ValidationError) {
	if cfg.Newsletter.URL != "" {
		if _, err := url.ParseRequestURI(cfg.Newsletter.URL); err != nil {
			ve.Add("newsletter.url is not a valid URL: %v", err)
		}
	}
	if cfg.Newsletter.RatePerMin < 0 {
		ve.Add("newsletter.rate_per_min must be >= 0")
	}
	if cfg.Newsletter.Burst < 0 {
		ve.Add("newsletter.burst must be >= 0")
	}
	checkDuration(ve, "newsletter.timeout", cfg.Newsletter.Timeout)
	checkDuration(ve, "newsletter.breaker.timeout", cfg.Newsletter.Breaker.Timeout)
	checkDuration(ve, "newsletter.breaker.interval", cfg.Newsletter.Breaker.Interval)
}

func validateDrawer(cfg *Config, ve *ValidationError) {
	checkDuration(ve, "drawer.auto_close", cfg.Drawer.AutoClose)
	checkDuration(ve, "drawer.reopen_suppress", cfg.Drawer.ReopenSuppress)
	checkDuration(ve, "drawer.success_reset", cfg.Drawer.SuccessReset)
	checkDuration(ve, "drawer.close_reassert", cfg.Drawer.CloseReassert)
	checkDuration(ve, "drawer.prompt_cooldown", cfg.Drawer.PromptCooldown)

	// The reassert fires while the suppression window is still active;
	// an inverted pair would let a reopen race the re-assert.
	reassert := ParseDurationOr(cfg.Drawer.CloseReassert, 50*time.Millisecond)
	suppress := ParseDurationOr(cfg.Drawer.ReopenSuppress, 2*time.Second)
	if reassert >= suppress {
		ve.Add("drawer.close_reassert (%s) must be shorter than drawer.reopen_suppress (%s)",
			reassert, suppress)
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q is not one of debug/info/warn/error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is not one of text/json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop", "":
	default:
		ve.Add("tracer.exporter %q is not one of stdout/noop", cfg.Tracer.Exporter)
	}
}

func checkDuration(ve *ValidationError, field, value string) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		ve.Add("%s %q is not a valid duration", field, value)
		return
	}
	if d <= 0 {
		ve.Add("%s must be > 0", field)
	}
}
