package output

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/ccollicutt/corrosion/pkg/gamry"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "Corrosion: %d files analyzed, %d fitted, %d failed\n",
		report.Summary.FilesAnalyzed,
		report.Summary.FittedPoints,
		report.Summary.Failed)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	fmt.Fprintln(w, "=== Corrosion Analysis Report ===")
	fmt.Fprintln(w)

	if err := f.formatSeries(report, w); err != nil {
		return err
	}
	f.formatFailures(report, w)
	if f.opts.Verbose {
		f.formatFiles(report, w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d files (%s), %d fitted, %d failed\n",
		report.Summary.FilesAnalyzed,
		kindCounts(report.Summary.ByKind),
		report.Summary.FittedPoints,
		report.Summary.Failed)

	if report.Summary.Skipped > 0 {
		fmt.Fprintf(w, "Skipped: %d file(s) with no known measurement kind\n", report.Summary.Skipped)
		if f.opts.Verbose {
			for _, p := range report.Metadata.Skipped {
				fmt.Fprintf(w, "  - %s\n", p)
			}
		}
	}

	if f.opts.Verbose {
		fmt.Fprintf(w, "Run ID: %s\n", report.Metadata.RunID)
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return nil
}

func (f *TextFormatter) formatSeries(report *Report, w io.Writer) error {
	if len(report.Series) == 0 {
		fmt.Fprintln(w, "No polarization resistance fits")
		fmt.Fprintln(w)
		return nil
	}

	fmt.Fprintf(w, "Polarization resistance (t=0 at %s)\n", report.Metadata.Reference.Format("2006-01-02 15:04:05"))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  HOURS\tRP (ohm)\tR²\tN\tOCP (V)\tFILE")
	for _, p := range report.Series {
		fmt.Fprintf(tw, "  %.2f\t%.4g\t%.6f\t%d\t%.5f\t%s\n",
			p.Hours, p.Resistance, p.RSquared, p.HalfWidth, p.OCP, filepath.Base(p.Path))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func (f *TextFormatter) formatFailures(report *Report, w io.Writer) {
	if !report.HasFailures() {
		return
	}

	fmt.Fprintf(w, "Failed: %d file(s)\n", report.Summary.Failed)
	for _, fr := range report.Files {
		if !fr.Failed() {
			continue
		}
		fmt.Fprintf(w, "  - [%s] %s: %s\n", fr.Stage, fr.Path, fr.Error)
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatFiles(report *Report, w io.Writer) {
	fmt.Fprintln(w, "Files:")
	for _, fr := range report.Files {
		status := "ok"
		if fr.Failed() {
			status = "failed"
		}
		fmt.Fprintf(w, "  %s (%s, %d rows, %s)\n", fr.Path, fr.Kind, fr.Rows, status)
		if fr.Timestamp != nil {
			fmt.Fprintf(w, "    Started: %s", fr.Timestamp.Format("2006-01-02 15:04:05"))
			if fr.Hours != nil {
				fmt.Fprintf(w, " (%.2f h)", *fr.Hours)
			}
			fmt.Fprintln(w)
		}
		for _, warn := range fr.Warnings {
			fmt.Fprintf(w, "    Warning: %s\n", warn)
		}
	}
	fmt.Fprintln(w)
}

// kindCounts renders per-kind counts in a stable order.
func kindCounts(counts map[gamry.Kind]int) string {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[gamry.Kind(k)]))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
