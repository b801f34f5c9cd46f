// Package config provides configuration loading and validation for corrosion.
package config

import (
	"time"

	"github.com/ccollicutt/corrosion/pkg/gamry"
	"github.com/ccollicutt/corrosion/pkg/resistance"
	"github.com/ccollicutt/corrosion/pkg/source"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	// Sources lists measurement files or glob patterns.
	Sources        []string             `yaml:"sources"`
	Classification ClassificationConfig `yaml:"classification"`
	Timestamp      TimestampConfig      `yaml:"timestamp"`
	Estimator      EstimatorConfig      `yaml:"estimator"`

	// Workers is the number of files processed in parallel.
	Workers int `yaml:"workers"`

	Logging  LoggingConfig   `yaml:"logging"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// ClassificationConfig holds the filename patterns that assign a
// measurement kind to each source file.
type ClassificationConfig struct {
	EIS string `yaml:"eis"`
	OCP string `yaml:"ocp"`
	LPR string `yaml:"lpr"`

	compiled []source.Rule
}

// Rules returns the compiled rules in EIS, OCP, LPR order.
func (c *ClassificationConfig) Rules() []source.Rule {
	return c.compiled
}

// Classifier returns a classifier built from the compiled rules.
func (c *ClassificationConfig) Classifier() *source.Classifier {
	return source.NewClassifier(c.compiled...)
}

type kindPattern struct {
	kind    gamry.Kind
	pattern string
}

func (c *ClassificationConfig) patterns() []kindPattern {
	return []kindPattern{
		{gamry.KindEIS, c.EIS},
		{gamry.KindOCP, c.OCP},
		{gamry.KindLPR, c.LPR},
	}
}

// TimestampConfig defines how measurement start times are read from the
// DATE and TIME header fields.
type TimestampConfig struct {
	// Layout is the Go time layout for DATE+" "+TIME.
	// See https://pkg.go.dev/time#pkg-constants for format.
	Layout string `yaml:"layout"`

	// Timezone is an IANA zone name for the instrument clock. Empty means UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Reference is the zero point for elapsed hours, as RFC 3339 or in
	// Layout. Empty means the earliest measurement.
	Reference string `yaml:"reference,omitempty"`

	location  *time.Location
	reference *time.Time
}

// Location returns the parsed timezone (populated during validation).
func (t *TimestampConfig) Location() *time.Location {
	if t.location == nil {
		return time.UTC
	}
	return t.location
}

// ReferenceTime returns the parsed reference time, or nil if none is set.
func (t *TimestampConfig) ReferenceTime() *time.Time {
	return t.reference
}

// Parser returns a timestamp parser for this configuration.
func (t *TimestampConfig) Parser() *source.TimestampParser {
	return source.NewTimestampParser(t.Layout, t.Location())
}

// EstimatorConfig configures the polarization-resistance window search.
type EstimatorConfig struct {
	CurrentColumn string `yaml:"current_column"`
	VoltageColumn string `yaml:"voltage_column"`
	MinHalfWidth  int    `yaml:"min_half_width"`
	MaxHalfWidth  int    `yaml:"max_half_width"`
}

// Options converts the configuration to estimator options.
func (e EstimatorConfig) Options() resistance.Options {
	return resistance.Options{
		CurrentColumn: e.CurrentColumn,
		VoltageColumn: e.VoltageColumn,
		MinHalfWidth:  e.MinHalfWidth,
		MaxHalfWidth:  e.MaxHalfWidth,
	}
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnFailures fires only when some file failed (default).
	WebhookTriggerOnFailures WebhookTrigger = "on_failures"
	// WebhookTriggerAlways fires after every analysis.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending analysis results.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_failures" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
