// Package cli provides the command-line interface for corrosion.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/corrosion/internal/cli/commands"
	"github.com/ccollicutt/corrosion/internal/cli/plugins"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	rootCmd := NewRootCommand()

	// A non-flag first argument that is not built in may be a plugin
	if name, ok := pluginCandidate(rootCmd, os.Args[1:]); ok {
		if pluginPath, err := plugins.FindPlugin(name); err == nil {
			return plugins.Execute(pluginPath, os.Args[2:])
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if name, ok := pluginCandidate(rootCmd, os.Args[1:]); ok {
			_, _ = fmt.Fprintln(os.Stderr, plugins.FormatNotFoundError(name))
			return 2
		}
		// SilenceErrors prevents Cobra from printing this
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2 // Configuration or runtime error
	}
	return commands.ExitCode
}

// pluginCandidate returns the first argument if it names no built-in
// command.
func pluginCandidate(rootCmd *cobra.Command, args []string) (string, bool) {
	if len(args) == 0 || args[0] == "" || args[0][0] == '-' {
		return "", false
	}
	if isBuiltinCommand(rootCmd, args[0]) {
		return "", false
	}
	return args[0], true
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	// Also check for special commands like help and completion
	return name == "help" || name == "completion"
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "corrosion",
		Short: "Extract potentiostat measurements and track polarization resistance",
		Long: `corrosion reads the tab-delimited data files written by Gamry
potentiostats and turns a directory of runs into a corrosion time series.

It handles:
  - EIS   potentiostatic impedance sweeps
  - OCP   open-circuit potential monitoring
  - LPR   linear polarization sweeps, fitted for polarization resistance

Point it at a set of files, and it reports resistance against elapsed hours.

PLUGINS:
  corrosion supports plugins for extended functionality. Plugins are standalone
  binaries named corrosion-<command> that are automatically discovered and invoked.

  Plugin locations (searched in order):
    1. Same directory as the corrosion binary
    2. ~/.corrosion/plugins/
    3. Anywhere in PATH`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.AddLogFlags(rootCmd)

	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewExtractCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
