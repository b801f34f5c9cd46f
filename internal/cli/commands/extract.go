package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/corrosion/pkg/config"
	"github.com/ccollicutt/corrosion/pkg/detector"
	"github.com/ccollicutt/corrosion/pkg/export"
	"github.com/ccollicutt/corrosion/pkg/gamry"
	"github.com/ccollicutt/corrosion/pkg/resistance"
)

// ExtractOptions holds command-line options for the extract command.
type ExtractOptions struct {
	Kind   string
	Output string
	Out    string
	Aux    bool
}

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	opts := &ExtractOptions{}

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract the table and header fields of one measurement file",
		Long: `Parse a single measurement file and print or export its table.

The kind is taken from --kind, else from the filename, else from the
file's TAG header line.

Output formats:
  text   - header fields, columns with units, and the LPR fit
  json   - the full measurement
  tsv    - the table as tab-separated text with a unit row
  arrow  - the table as an Arrow IPC stream (requires --out)`,
		Example: `  corrosion extract LPR_cell1.DTA
  corrosion extract --kind lpr -o json run7.DTA
  corrosion extract -o arrow --out cell1.arrow LPR_cell1.DTA
  corrosion extract --aux -o tsv LPR_cell1.DTA`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "Measurement kind (eis|ocp|lpr); detected if empty")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|tsv|arrow)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.Aux, "aux", false, "Export the OCVCURVE sub-table instead of the main table (LPR only)")

	return cmd
}

func runExtract(cmd *cobra.Command, path string, opts *ExtractOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch opts.Output {
	case "text", "json", "tsv":
	case "arrow":
		if opts.Out == "" {
			return errors.New("arrow output requires --out")
		}
	default:
		return fmt.Errorf("unknown output format: %s (use text, json, tsv, or arrow)", opts.Output)
	}

	kind, err := resolveKind(ctx, path, opts.Kind)
	if err != nil {
		return err
	}
	spec, err := gamry.SpecFor(kind)
	if err != nil {
		return err
	}

	m, err := gamry.ExtractFile(path, spec)
	if err != nil {
		return err
	}

	if opts.Aux {
		aux := m.AuxMeasurement()
		if aux == nil {
			return fmt.Errorf("%s has no %s table", path, gamry.AuxTableMarker)
		}
		m = aux
	}

	w := cmd.OutOrStdout()
	var f *os.File
	if opts.Out != "" {
		// #nosec G304 - output path is provided by user via CLI
		f, err = os.Create(opts.Out)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		w = f
	}

	err = writeMeasurement(w, path, m, opts)
	if f != nil {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing output file: %w", cerr)
		}
	}
	return err
}

// resolveKind picks the kind from the flag, the filename, or the header.
func resolveKind(ctx context.Context, path, flag string) (gamry.Kind, error) {
	if flag != "" {
		return gamry.ParseKind(flag)
	}

	if kind, ok := config.DefaultClassifier().Classify(path); ok {
		return kind, nil
	}

	result, err := detector.New().DetectFromFile(ctx, path)
	if err != nil {
		return "", err
	}
	if !result.HasMatch() {
		return "", fmt.Errorf("cannot determine kind of %s; use --kind", path)
	}
	return result.BestMatch().Kind, nil
}

func writeMeasurement(w io.Writer, path string, m *gamry.Measurement, opts *ExtractOptions) error {
	switch opts.Output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case "tsv":
		return export.WriteTSV(w, m)
	case "arrow":
		return export.WriteArrow(w, m)
	default:
		return writeMeasurementText(w, path, m, !opts.Aux)
	}
}

func writeMeasurementText(w io.Writer, path string, m *gamry.Measurement, fit bool) error {
	fmt.Fprintf(w, "File: %s\n", path)
	fmt.Fprintf(w, "Kind: %s\n", m.Kind)
	fmt.Fprintf(w, "Rows: %d\n", m.Table.Len())

	if len(m.Metadata.Fields) > 0 {
		fmt.Fprintln(w, "\nFields:")
		keys := make([]string, 0, len(m.Metadata.Fields))
		for k := range m.Metadata.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, k := range keys {
			fmt.Fprintf(tw, "  %s\t%s\n", k, m.Metadata.Fields[k])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "\nColumns:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range m.Table.Columns {
		unit := m.Unit(c)
		if unit == "" {
			unit = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\n", c, unit)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if m.Metadata.Aux != nil {
		fmt.Fprintf(w, "\n%s: %d rows\n", gamry.AuxTableMarker, m.Metadata.Aux.Len())
	}

	if len(m.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warn := range m.Warnings {
			fmt.Fprintf(w, "  - %s\n", warn)
		}
	}

	if fit && m.Kind == gamry.KindLPR {
		r, err := resistance.Estimate(m.Table, resistance.DefaultOptions())
		if err != nil {
			fmt.Fprintf(w, "\nFit: %v\n", err)
			return nil
		}
		fmt.Fprintln(w, "\nFit:")
		fmt.Fprintf(w, "  Resistance: %.4f ohm\n", r.Slope)
		fmt.Fprintf(w, "  R-squared:  %.6f\n", r.RSquared)
		fmt.Fprintf(w, "  Half-width: %d\n", r.HalfWidth)
		fmt.Fprintf(w, "  OCP:        %.5f V\n", r.OCP)
	}
	return nil
}
