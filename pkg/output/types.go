// Package output provides formatting and output generation for analysis results.
package output

import (
	"time"

	"github.com/google/uuid"

	"github.com/ccollicutt/corrosion/pkg/analyzer"
	"github.com/ccollicutt/corrosion/pkg/gamry"
)

// Report is the complete analysis output.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Series is the polarization-resistance time series.
	Series []analyzer.SeriesPoint `json:"series"`

	// Files contains the outcome for every analyzed file.
	Files []*analyzer.FileResult `json:"files"`

	// Metadata provides context about the analysis.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	// FilesAnalyzed is the number of files that went through the pipeline.
	FilesAnalyzed int `json:"files_analyzed"`

	// ByKind counts analyzed files per measurement kind.
	ByKind map[gamry.Kind]int `json:"by_kind"`

	// Failed is the number of files that failed at any stage.
	Failed int `json:"failed"`

	// FittedPoints is the number of points in the resistance series.
	FittedPoints int `json:"fitted_points"`

	// Skipped is the number of discovered files with no known kind.
	Skipped int `json:"skipped"`
}

// Metadata provides context about the analysis run.
type Metadata struct {
	// RunID identifies this analysis run.
	RunID string `json:"run_id"`

	// ConfigFile is the path to the configuration file used.
	ConfigFile string `json:"config_file"`

	// Sources lists the files that were analyzed.
	Sources []string `json:"sources"`

	// Skipped lists discovered files that were not analyzed.
	Skipped []string `json:"skipped,omitempty"`

	// Reference is the zero point of the hours axis.
	Reference time.Time `json:"reference"`

	// AnalyzedAt is when the analysis was performed.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Duration is how long the analysis took.
	Duration time.Duration `json:"duration"`
}

// NewReport creates a Report from analysis results.
func NewReport(result *analyzer.AnalysisResult, configFile string) *Report {
	return &Report{
		Series: result.Series,
		Files:  result.Files,
		Metadata: Metadata{
			RunID:      uuid.NewString(),
			ConfigFile: configFile,
			Sources:    result.Metadata.Sources,
			Skipped:    result.Metadata.Skipped,
			Reference:  result.Reference,
			AnalyzedAt: result.Metadata.EndTime,
			Duration:   result.Metadata.EndTime.Sub(result.Metadata.StartTime),
		},
		Summary: Summary{
			FilesAnalyzed: len(result.Files),
			ByKind:        result.CountByKind(),
			Failed:        result.Failures(),
			FittedPoints:  len(result.Series),
			Skipped:       len(result.Metadata.Skipped),
		},
	}
}

// HasFailures returns true if any file failed.
func (r *Report) HasFailures() bool {
	return r.Summary.Failed > 0
}
