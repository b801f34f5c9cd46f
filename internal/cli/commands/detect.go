package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/corrosion/pkg/detector"
	"github.com/ccollicutt/corrosion/pkg/gamry"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <file>",
		Short: "Detect the measurement kind of a file from its header",
		Long: `Read the header of a measurement file and report which kind (EIS, OCP,
LPR) it holds.

The TAG line decides when it names a known experiment. Otherwise each kind
is scored by the fraction of its header keys present in the file.

Optionally generates a starter config file with --write-config.

Example:
  corrosion detect run7.DTA
  corrosion detect --all run7.DTA
  corrosion detect --write-config corrosion.yaml data/LPR_cell1_01h.DTA`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 100, "Number of lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show every candidate kind, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	path := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("measurement file not found: %s", path)
	}

	d := detector.New(detector.WithSampleSize(opts.SampleSize))

	result, err := d.DetectFromFile(ctx, path)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	w := cmd.OutOrStdout()

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(w, result, path, opts.WriteConfig); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(w, result, path, opts)
	default:
		return outputDetectText(w, result, path, opts)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, path string, opts *DetectOptions) error {
	fmt.Fprintln(w, "=== Measurement Kind Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", path)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	if result.Tag != "" {
		fmt.Fprintf(w, "TAG: %s\n", result.Tag)
	}
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No measurement kind detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: The file may not be an instrument data file, or its header")
		fmt.Fprintln(w, "lies beyond the sampled lines (try --sample).")
		return nil
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Detected Kind: %s\n", best.Kind)
	fmt.Fprintf(w, "Confidence: %.1f%% (%d header keys found)\n", best.Confidence*100, len(best.Present))
	if len(best.MissingRequired) > 0 {
		fmt.Fprintf(w, "Missing required keys: %s\n", strings.Join(best.MissingRequired, ", "))
	}
	fmt.Fprintln(w)

	if result.Note != "" {
		fmt.Fprintf(w, "Note: %s\n", result.Note)
		fmt.Fprintln(w)
	}

	if opts.ShowAll && len(result.Matches) > 1 {
		fmt.Fprintln(w, "--- Other candidate kinds ---")
		for i, m := range result.Matches[1:] {
			fmt.Fprintf(w, "%d. %s (%.1f%% confidence)\n", i+2, m.Kind, m.Confidence*100)
			if len(m.Missing) > 0 {
				fmt.Fprintf(w, "   missing: %s\n", strings.Join(m.Missing, ", "))
			}
		}
		fmt.Fprintln(w)
	}

	return nil
}

// JSONMatch represents a kind match in JSON output.
type JSONMatch struct {
	Kind            gamry.Kind `json:"kind"`
	Confidence      float64    `json:"confidence"`
	TagMatched      bool       `json:"tag_matched"`
	Present         []string   `json:"present"`
	Missing         []string   `json:"missing,omitempty"`
	MissingRequired []string   `json:"missing_required,omitempty"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File         string      `json:"file"`
	Tag          string      `json:"tag,omitempty"`
	Confident    bool        `json:"confident"`
	Matches      []JSONMatch `json:"matches"`
	SampledLines int         `json:"sampled_lines"`
	Note         string      `json:"note,omitempty"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, path string, opts *DetectOptions) error {
	out := JSONOutput{
		File:         path,
		Tag:          result.Tag,
		Confident:    result.Confident(),
		SampledLines: result.SampledLines,
		Note:         result.Note,
		Matches:      make([]JSONMatch, 0),
	}

	matches := result.Matches
	if !opts.ShowAll && len(matches) > 1 {
		matches = matches[:1] // Only show best match
	}

	for _, m := range matches {
		out.Matches = append(out.Matches, JSONMatch{
			Kind:            m.Kind,
			Confidence:      m.Confidence,
			TagMatched:      m.TagMatched,
			Present:         m.Present,
			Missing:         m.Missing,
			MissingRequired: m.MissingRequired,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeStarterConfig generates a starter config file for the directory
// holding the detected file.
func writeStarterConfig(w io.Writer, result *detector.DetectionResult, path, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if !result.HasMatch() {
		return fmt.Errorf("cannot generate config: no measurement kind detected")
	}

	content := generateStarterConfig(path, result.BestMatch())

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig creates a YAML config template.
func generateStarterConfig(path string, match *detector.KindMatch) string {
	dir := filepath.Dir(path)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	glob := filepath.Join(dir, "*"+filepath.Ext(path))

	return fmt.Sprintf(`# Corrosion Configuration
# Generated by: corrosion detect
# Detected kind: %s (%.0f%% confidence)

sources:
  - %s
  # Add more files or globs:
  # - /data/cell2/*.DTA

# Regular expressions matched against file base names.
classification:
  eis: '(?i)eis'
  ocp: '(?i)(ocp|corpot)'
  lpr: '(?i)(lpr|polres)'

# Go layout for the DATE and TIME header fields joined by a space.
timestamp:
  layout: "1/2/2006 15:04:05"
  # timezone: America/Toronto
  # reference: "2021-03-15T12:00:00Z"

estimator:
  current_column: Im
  voltage_column: Vf
  min_half_width: 5
  max_half_width: 78

workers: 4

logging:
  level: info
  format: console

# webhooks:
#   - name: lab-alerts
#     url: https://hooks.example.com/corrosion
#     token: ${CORROSION_WEBHOOK_TOKEN}
#     trigger: on_failures
`, match.Kind, match.Confidence*100, glob)
}
