package output

import (
	"context"
	"encoding/json"
	"io"

	"github.com/ccollicutt/corrosion/pkg/analyzer"
)

// JSONFormatter formats reports as JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Format renders the report as JSON. Header fields of each file are only
// included in verbose mode.
func (f *JSONFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if f.opts.Quiet {
		return encoder.Encode(report.Summary)
	}
	if f.opts.Verbose {
		return encoder.Encode(report)
	}

	trimmed := *report
	trimmed.Files = make([]*analyzer.FileResult, len(report.Files))
	for i, fr := range report.Files {
		c := *fr
		c.Fields = nil
		trimmed.Files[i] = &c
	}
	return encoder.Encode(&trimmed)
}
