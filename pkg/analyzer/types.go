// Package analyzer turns a set of measurement files into per-file results
// and a polarization-resistance time series.
package analyzer

import (
	"sort"
	"time"

	"github.com/ccollicutt/corrosion/pkg/gamry"
	"github.com/ccollicutt/corrosion/pkg/resistance"
)

// Stage names the pipeline step at which a file failed.
type Stage string

const (
	// StageExtract covers reading, scanning and materializing the file.
	StageExtract Stage = "extract"

	// StageTimestamp covers parsing the DATE and TIME header fields.
	StageTimestamp Stage = "timestamp"

	// StageFit covers the polarization-resistance estimate.
	StageFit Stage = "fit"
)

// FileResult is the outcome for one measurement file.
type FileResult struct {
	// Path is the file as given by source discovery.
	Path string `json:"path"`

	// Kind is the measurement kind the file was processed as.
	Kind gamry.Kind `json:"kind"`

	// Timestamp is the measurement start time, nil if it could not be read.
	Timestamp *time.Time `json:"timestamp,omitempty"`

	// Hours is the elapsed time since the run's reference time.
	Hours *float64 `json:"hours,omitempty"`

	// Fields holds the whitelisted header values.
	Fields map[string]string `json:"fields,omitempty"`

	// Rows is the number of rows in the main table.
	Rows int `json:"rows"`

	// Fit is the polarization-resistance estimate for LPR files.
	Fit *resistance.Result `json:"fit,omitempty"`

	// Warnings lists non-fatal problems such as unit mismatches.
	Warnings []string `json:"warnings,omitempty"`

	// Error describes the failure, empty on success.
	Error string `json:"error,omitempty"`

	// Stage is where the failure happened, empty on success.
	Stage Stage `json:"stage,omitempty"`
}

// Failed returns true if the file could not be fully processed.
func (f *FileResult) Failed() bool {
	return f.Error != ""
}

// SeriesPoint is one LPR measurement in the resistance time series.
type SeriesPoint struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Hours     float64   `json:"hours"`
	// Resistance is the fitted slope in ohms.
	Resistance float64 `json:"resistance"`
	RSquared   float64 `json:"r_squared"`
	HalfWidth  int     `json:"half_width"`
	OCP        float64 `json:"ocp"`
}

// AnalysisResult contains the complete analysis output.
type AnalysisResult struct {
	// Files holds one result per input file, in input order.
	Files []*FileResult

	// Series holds the fitted LPR points ordered by timestamp.
	Series []SeriesPoint

	// Reference is the zero point of the Hours values.
	Reference time.Time

	// Metadata provides context about the analysis.
	Metadata AnalysisMetadata
}

// AnalysisMetadata provides context about the analysis run.
type AnalysisMetadata struct {
	// ConfigFile is the path to the configuration file used.
	ConfigFile string

	// Sources lists the files that were analyzed.
	Sources []string

	// Skipped lists discovered files that no kind could be assigned to.
	Skipped []string

	// StartTime is when analysis began.
	StartTime time.Time

	// EndTime is when analysis completed.
	EndTime time.Time
}

// Failures returns the number of files that failed at any stage.
func (r *AnalysisResult) Failures() int {
	n := 0
	for _, f := range r.Files {
		if f.Failed() {
			n++
		}
	}
	return n
}

// HasFailures returns true if any file failed.
func (r *AnalysisResult) HasFailures() bool {
	return r.Failures() > 0
}

// CountByKind returns the number of input files of each kind.
func (r *AnalysisResult) CountByKind() map[gamry.Kind]int {
	counts := make(map[gamry.Kind]int)
	for _, f := range r.Files {
		counts[f.Kind]++
	}
	return counts
}

// buildSeries collects fitted LPR files ordered by timestamp, then path.
func buildSeries(files []*FileResult) []SeriesPoint {
	var series []SeriesPoint
	for _, f := range files {
		if f.Fit == nil || f.Timestamp == nil || f.Hours == nil {
			continue
		}
		series = append(series, SeriesPoint{
			Path:       f.Path,
			Timestamp:  *f.Timestamp,
			Hours:      *f.Hours,
			Resistance: f.Fit.Slope,
			RSquared:   f.Fit.RSquared,
			HalfWidth:  f.Fit.HalfWidth,
			OCP:        f.Fit.OCP,
		})
	}

	sort.SliceStable(series, func(i, j int) bool {
		if !series[i].Timestamp.Equal(series[j].Timestamp) {
			return series[i].Timestamp.Before(series[j].Timestamp)
		}
		return series[i].Path < series[j].Path
	})
	return series
}
