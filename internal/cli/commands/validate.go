package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/corrosion/pkg/config"
	"github.com/ccollicutt/corrosion/pkg/gamry"
	"github.com/ccollicutt/corrosion/pkg/source"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a corrosion configuration file without running analysis.

Checks:
  - YAML syntax
  - Required fields
  - Classification pattern validity
  - Timezone and reference time
  - Estimator window bounds
  - Source file existence and classification (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Sources:   %d pattern(s)\n", len(cfg.Sources))
	fmt.Fprintf(w, "  Layout:    %s\n", cfg.Timestamp.Layout)
	fmt.Fprintf(w, "  Timezone:  %s\n", cfg.Timestamp.Location())
	if ref := cfg.Timestamp.ReferenceTime(); ref != nil {
		fmt.Fprintf(w, "  Reference: %s\n", ref.Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Fprintf(w, "  Reference: earliest measurement\n")
	}
	fmt.Fprintf(w, "  Estimator: %s against %s, half-width %d..%d\n",
		cfg.Estimator.VoltageColumn, cfg.Estimator.CurrentColumn,
		cfg.Estimator.MinHalfWidth, cfg.Estimator.MaxHalfWidth)
	fmt.Fprintf(w, "  Workers:   %d\n", cfg.Workers)
	fmt.Fprintf(w, "  Webhooks:  %d\n", len(cfg.Webhooks))

	fmt.Fprintf(w, "\nClassification:\n")
	for _, r := range cfg.Classification.Rules() {
		fmt.Fprintf(w, "  %-4s %s\n", r.Kind, r.Pattern)
	}

	// Source problems are warnings only
	files, unclassified, err := source.Discover(cfg.Sources, cfg.Classification.Classifier())
	if err != nil {
		fmt.Fprintf(w, "\nWarning: %v\n", err)
		return nil
	}
	if len(files)+len(unclassified) == 0 {
		fmt.Fprintf(w, "\nWarning: No files match source patterns\n")
		return nil
	}

	fmt.Fprintf(w, "\nFiles matched: %d\n", len(files)+len(unclassified))
	for _, f := range files {
		fmt.Fprintf(w, "  [%s] %s\n", f.Kind, f.Path)
	}
	for _, p := range unclassified {
		fmt.Fprintf(w, "  [?]   %s\n", p)
	}
	if len(unclassified) > 0 {
		fmt.Fprintf(w, "\nWarning: %d file(s) match no %s pattern; analyze will read their headers\n",
			len(unclassified), kindList())
	}

	return nil
}

func kindList() string {
	s := ""
	for i, spec := range gamry.Kinds() {
		if i > 0 {
			s += "/"
		}
		s += string(spec.Kind)
	}
	return s
}
