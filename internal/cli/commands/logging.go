package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccollicutt/corrosion/pkg/config"
	"github.com/ccollicutt/corrosion/pkg/logging"
)

// LogOptions holds the persistent logging flags shared by all commands.
type LogOptions struct {
	Level  string
	Format string
}

// Log is populated from the root command's persistent flags.
var Log = &LogOptions{}

// AddLogFlags registers the logging flags on the root command.
func AddLogFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&Log.Level, "log-level", "", "Diagnostic log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&Log.Format, "log-format", "", "Diagnostic log format (console|json)")
}

// newLogger builds the stderr logger. Flags win over the config file's
// logging section, which wins over the defaults.
func newLogger(cfg *config.LoggingConfig) *zap.Logger {
	lc := logging.Config{Level: config.DefaultLogLevel, Format: config.DefaultLogFormat}
	if cfg != nil {
		if cfg.Level != "" {
			lc.Level = cfg.Level
		}
		if cfg.Format != "" {
			lc.Format = cfg.Format
		}
	}
	if Log.Level != "" {
		lc.Level = Log.Level
	}
	if Log.Format != "" {
		lc.Format = Log.Format
	}

	logger, err := logging.New(lc)
	if err != nil {
		return logging.Nop()
	}
	return logger
}
