package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ccollicutt/corrosion/pkg/config"
	"github.com/ccollicutt/corrosion/pkg/gamry"
	"github.com/ccollicutt/corrosion/pkg/metrics"
	"github.com/ccollicutt/corrosion/pkg/resistance"
	"github.com/ccollicutt/corrosion/pkg/source"
)

// Analyzer extracts measurement files in parallel and fits LPR sweeps.
type Analyzer struct {
	estimator resistance.Options
	timestamp *source.TimestampParser
	reference *time.Time

	// Options
	workers  int
	logger   *zap.Logger
	recorder *metrics.Recorder
}

// AnalyzerOption configures analyzer behavior.
type AnalyzerOption func(*Analyzer)

// WithWorkers overrides the configured number of parallel workers.
func WithWorkers(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics records per-file metrics on r.
func WithMetrics(r *metrics.Recorder) AnalyzerOption {
	return func(a *Analyzer) {
		a.recorder = r
	}
}

// NewAnalyzer creates a new analyzer from a validated configuration.
func NewAnalyzer(cfg *config.Config, opts ...AnalyzerOption) (*Analyzer, error) {
	if cfg == nil {
		return nil, errors.New("nil configuration")
	}

	a := &Analyzer{
		estimator: cfg.Estimator.Options(),
		timestamp: cfg.Timestamp.Parser(),
		reference: cfg.Timestamp.ReferenceTime(),
		workers:   cfg.Workers,
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.workers < 1 {
		a.workers = 1
	}

	return a, nil
}

// Analyze processes every file and returns the per-file results and the
// resistance series. A failing file is recorded on its FileResult and
// never aborts the run; only context cancellation does.
func (a *Analyzer) Analyze(ctx context.Context, files []source.File) (*AnalysisResult, error) {
	result := &AnalysisResult{
		Files: make([]*FileResult, len(files)),
		Metadata: AnalysisMetadata{
			StartTime: time.Now(),
			Sources:   make([]string, 0, len(files)),
		},
	}
	for _, f := range files {
		result.Metadata.Sources = append(result.Metadata.Sources, f.Path)
	}

	a.logger.Info("analysis started",
		zap.Int("files", len(files)),
		zap.Int("workers", a.workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result.Files[i] = a.processFile(f)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	result.Reference = a.referenceTime(result.Files)
	for _, f := range result.Files {
		if f.Timestamp == nil {
			continue
		}
		h := f.Timestamp.Sub(result.Reference).Hours()
		f.Hours = &h
	}
	result.Series = buildSeries(result.Files)

	result.Metadata.EndTime = time.Now()

	a.logger.Info("analysis finished",
		zap.Int("files", len(result.Files)),
		zap.Int("failed", result.Failures()),
		zap.Int("series_points", len(result.Series)),
		zap.Duration("duration", result.Metadata.EndTime.Sub(result.Metadata.StartTime)),
	)

	return result, nil
}

// processFile runs one file through extract, timestamp and fit.
func (a *Analyzer) processFile(f source.File) *FileResult {
	fr := &FileResult{Path: f.Path, Kind: f.Kind}
	log := a.logger.With(zap.String("file", f.Path), zap.String("kind", string(f.Kind)))

	spec, err := gamry.SpecFor(f.Kind)
	if err != nil {
		return a.fail(log, fr, StageExtract, err)
	}

	start := time.Now()
	m, err := gamry.ExtractFile(f.Path, spec)
	if err != nil {
		return a.fail(log, fr, StageExtract, err)
	}
	a.recorder.RecordExtraction(string(f.Kind), m.Table.Len(), time.Since(start))

	fr.Fields = m.Metadata.Fields
	fr.Rows = m.Table.Len()
	fr.Warnings = m.Warnings
	for _, w := range m.Warnings {
		log.Warn("unit mismatch", zap.String("detail", w))
	}
	log.Debug("extracted", zap.Int("rows", fr.Rows), zap.Bool("aux", m.Metadata.Aux != nil))

	ts, err := a.timestamp.Measurement(m)
	if err != nil {
		return a.fail(log, fr, StageTimestamp, err)
	}
	fr.Timestamp = &ts

	if f.Kind != gamry.KindLPR {
		return fr
	}

	fit, err := resistance.Estimate(m.Table, a.estimator)
	if err != nil {
		return a.fail(log, fr, StageFit, err)
	}
	fr.Fit = &fit
	a.recorder.RecordFit(fit.Slope, fit.RSquared, fit.HalfWidth)

	log.Debug("fitted",
		zap.Float64("resistance", fit.Slope),
		zap.Float64("r_squared", fit.RSquared),
		zap.Int("half_width", fit.HalfWidth),
	)

	return fr
}

func (a *Analyzer) fail(log *zap.Logger, fr *FileResult, stage Stage, err error) *FileResult {
	fr.Stage = stage
	fr.Error = err.Error()
	a.recorder.RecordFailure(string(fr.Kind))
	log.Warn("file failed", zap.String("stage", string(stage)), zap.Error(err))
	return fr
}

// referenceTime returns the configured reference, or the earliest
// timestamp seen. It is the zero time if no file has a timestamp.
func (a *Analyzer) referenceTime(files []*FileResult) time.Time {
	if a.reference != nil {
		return *a.reference
	}
	var ref time.Time
	for _, f := range files {
		if f.Timestamp == nil {
			continue
		}
		if ref.IsZero() || f.Timestamp.Before(ref) {
			ref = *f.Timestamp
		}
	}
	return ref
}
