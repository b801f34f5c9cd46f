package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/ccollicutt/corrosion/pkg/resistance"
	"github.com/ccollicutt/corrosion/pkg/source"
)

// Default values for configuration.
const (
	DefaultWebhookTimeout  = 10 * time.Second
	DefaultTimestampLayout = "1/2/2006 15:04:05"
	DefaultWorkers         = 4
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"

	DefaultEISPattern = `(?i)eis`
	DefaultOCPPattern = `(?i)(ocp|corpot)`
	DefaultLPRPattern = `(?i)(lpr|polres)`
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// CORROSION_SOURCES or CORROSION_WORKERS.
const EnvPrefix = "CORROSION"

// envOverrides lists the settings that can be overridden from the
// environment. Zero values leave the file configuration untouched.
type envOverrides struct {
	Sources         []string `envconfig:"SOURCES"`
	TimestampLayout string   `envconfig:"TIMESTAMP_LAYOUT"`
	Workers         int      `envconfig:"WORKERS"`
	LogLevel        string   `envconfig:"LOG_LEVEL"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Sources: []string{},
		Classification: ClassificationConfig{
			EIS: DefaultEISPattern,
			OCP: DefaultOCPPattern,
			LPR: DefaultLPRPattern,
		},
		Timestamp: TimestampConfig{
			Layout: DefaultTimestampLayout,
		},
		Estimator: EstimatorConfig{
			CurrentColumn: resistance.DefaultCurrentColumn,
			VoltageColumn: resistance.DefaultVoltageColumn,
			MinHalfWidth:  resistance.DefaultMinHalfWidth,
			MaxHalfWidth:  resistance.DefaultMaxHalfWidth,
		},
		Workers: DefaultWorkers,
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// DefaultClassifier returns a classifier for the default filename
// patterns, for commands that run without a configuration file.
func DefaultClassifier() *source.Classifier {
	c := DefaultConfig().Classification
	if err := validateClassification(&c); err != nil {
		panic(fmt.Sprintf("default classification patterns: %v", err))
	}
	return c.Classifier()
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}

	if len(env.Sources) > 0 {
		c.Sources = env.Sources
	}
	if env.TimestampLayout != "" {
		c.Timestamp.Layout = env.TimestampLayout
	}
	if env.Workers != 0 {
		c.Workers = env.Workers
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	return nil
}
