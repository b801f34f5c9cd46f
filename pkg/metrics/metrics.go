// Package metrics records per-run analysis metrics on a private Prometheus
// registry. A CLI run is short-lived, so metrics are dumped once in the
// node_exporter textfile format instead of being served.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// File outcome labels.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Recorder owns a registry and the collectors registered on it.
type Recorder struct {
	registry *prometheus.Registry

	filesTotal     *prometheus.CounterVec
	rowsTotal      *prometheus.CounterVec
	extractTime    *prometheus.HistogramVec
	fitRSquared    prometheus.Histogram
	fitHalfWidth   prometheus.Gauge
	lastResistance prometheus.Gauge
}

// NewRecorder creates a recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		filesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corrosion_files_total",
				Help: "Measurement files processed, by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corrosion_rows_extracted_total",
				Help: "Data rows materialized from measurement tables",
			},
			[]string{"kind"},
		),
		extractTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corrosion_extraction_duration_seconds",
				Help:    "Time taken to read and extract one file",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"kind"},
		),
		fitRSquared: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "corrosion_fit_r_squared",
			Help:    "Coefficient of determination of accepted polarization fits",
			Buckets: []float64{0.9, 0.95, 0.99, 0.995, 0.999, 0.9999, 1},
		}),
		fitHalfWidth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corrosion_fit_half_width",
			Help: "Half-width of the most recently accepted fit window",
		}),
		lastResistance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corrosion_polarization_resistance_ohms",
			Help: "Most recently estimated polarization resistance",
		}),
	}

	r.registry.MustRegister(
		r.filesTotal,
		r.rowsTotal,
		r.extractTime,
		r.fitRSquared,
		r.fitHalfWidth,
		r.lastResistance,
	)
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordExtraction records one successful extraction.
func (r *Recorder) RecordExtraction(kind string, rows int, duration time.Duration) {
	if r == nil {
		return
	}
	r.filesTotal.WithLabelValues(kind, StatusOK).Inc()
	r.rowsTotal.WithLabelValues(kind).Add(float64(rows))
	r.extractTime.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordFailure records a file that could not be processed.
func (r *Recorder) RecordFailure(kind string) {
	if r == nil {
		return
	}
	r.filesTotal.WithLabelValues(kind, StatusFailed).Inc()
}

// RecordFit records an accepted polarization fit.
func (r *Recorder) RecordFit(slope, rSquared float64, halfWidth int) {
	if r == nil {
		return
	}
	r.fitRSquared.Observe(rSquared)
	r.fitHalfWidth.Set(float64(halfWidth))
	r.lastResistance.Set(slope)
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
