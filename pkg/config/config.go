package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/corrosion/pkg/source"
)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and compiles patterns.
func Validate(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return errors.New("sources: at least one source is required")
	}

	if err := validateClassification(&cfg.Classification); err != nil {
		return fmt.Errorf("classification: %w", err)
	}

	if err := validateTimestamp(&cfg.Timestamp); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}

	if err := validateEstimator(&cfg.Estimator); err != nil {
		return fmt.Errorf("estimator: %w", err)
	}

	if cfg.Workers < 1 {
		return fmt.Errorf("workers: must be >= 1, got %d", cfg.Workers)
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateClassification(c *ClassificationConfig) error {
	c.compiled = c.compiled[:0]
	for _, kp := range c.patterns() {
		name := strings.ToLower(string(kp.kind))
		if kp.pattern == "" {
			return fmt.Errorf("%s: pattern is required", name)
		}
		re, err := regexp.Compile(kp.pattern)
		if err != nil {
			return fmt.Errorf("%s: invalid pattern: %w", name, err)
		}
		c.compiled = append(c.compiled, source.Rule{Kind: kp.kind, Pattern: re})
	}
	return nil
}

func validateTimestamp(tc *TimestampConfig) error {
	if tc.Layout == "" {
		return errors.New("layout is required")
	}

	tc.location = time.UTC
	if tc.Timezone != "" {
		loc, err := time.LoadLocation(tc.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
		tc.location = loc
	}

	tc.reference = nil
	if tc.Reference != "" {
		ref, err := time.Parse(time.RFC3339, tc.Reference)
		if err != nil {
			ref, err = time.ParseInLocation(tc.Layout, tc.Reference, tc.location)
		}
		if err != nil {
			return fmt.Errorf("invalid reference %q (use RFC 3339 or the configured layout)", tc.Reference)
		}
		tc.reference = &ref
	}

	return nil
}

func validateEstimator(e *EstimatorConfig) error {
	if e.CurrentColumn == "" {
		return errors.New("current_column is required")
	}
	if e.VoltageColumn == "" {
		return errors.New("voltage_column is required")
	}
	if e.MinHalfWidth < 1 {
		return fmt.Errorf("min_half_width must be >= 1, got %d", e.MinHalfWidth)
	}
	if e.MaxHalfWidth < e.MinHalfWidth {
		return fmt.Errorf("max_half_width (%d) must be >= min_half_width (%d)", e.MaxHalfWidth, e.MinHalfWidth)
	}
	return nil
}

func validateLogging(l *LoggingConfig) error {
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("invalid level %q", l.Level)
	}
	switch l.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("invalid format %q (must be console or json)", l.Format)
	}
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	// Expand environment variables in token
	wh.Token = expandEnvVar(wh.Token)

	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnFailures, WebhookTriggerAlways, WebhookTriggerNever:
			// Valid
		default:
			return fmt.Errorf("invalid trigger %q (must be on_failures, always, or never)", wh.Trigger)
		}
	} else {
		wh.Trigger = WebhookTriggerOnFailures
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}

	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		return os.Getenv(s[1:])
	}

	return s
}
