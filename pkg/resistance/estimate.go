// Package resistance estimates polarization resistance from the sweep
// table of an LPR measurement.
package resistance

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ccollicutt/corrosion/pkg/gamry"
)

// Default search parameters.
const (
	DefaultCurrentColumn = "Im"
	DefaultVoltageColumn = "Vf"
	DefaultMinHalfWidth  = 5
	DefaultMaxHalfWidth  = 78
)

var (
	// ErrNoValidFit is returned when no window yields a positive slope.
	ErrNoValidFit = errors.New("no fitting window with positive slope")
	// ErrMissingColumn is returned when the current or voltage column is absent.
	ErrMissingColumn = errors.New("column not found")
)

// Options configures the window search.
type Options struct {
	CurrentColumn string
	VoltageColumn string
	MinHalfWidth  int
	MaxHalfWidth  int
}

// DefaultOptions returns the standard search over half-widths 5..78.
func DefaultOptions() Options {
	return Options{
		CurrentColumn: DefaultCurrentColumn,
		VoltageColumn: DefaultVoltageColumn,
		MinHalfWidth:  DefaultMinHalfWidth,
		MaxHalfWidth:  DefaultMaxHalfWidth,
	}
}

// Result is the selected fit for one sweep.
type Result struct {
	// Slope of voltage against current, in V/A.
	Slope float64 `json:"slope"`
	// RSquared is the coefficient of determination of the fit.
	RSquared float64 `json:"r_squared"`
	// HalfWidth is the number of rows used on each side of the operating point.
	HalfWidth int `json:"half_width"`
	// OCP is the voltage at the operating point.
	OCP float64 `json:"ocp"`
	// OperatingIndex is the row position of the minimum absolute current.
	OperatingIndex int `json:"operating_index"`
}

// Window is one candidate fitting range, [Lower, Upper) in row positions.
type Window struct {
	HalfWidth int
	Lower     int
	Upper     int
}

// WindowAt returns the window of half-width n around op, clamped to rows.
func WindowAt(op, n, rows int) Window {
	return Window{
		HalfWidth: n,
		Lower:     max(0, op-n),
		Upper:     min(rows, op+n+1),
	}
}

// Estimate searches symmetric windows around the minimum-current row and
// returns the positive-slope fit with the highest R². Ties keep the
// smallest half-width. Rows whose current or voltage is not numeric are
// left out of every regression.
func Estimate(t *gamry.Table, opts Options) (Result, error) {
	opts = withDefaults(opts)

	current, ok := t.Column(opts.CurrentColumn)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingColumn, opts.CurrentColumn)
	}
	voltage, ok := t.Column(opts.VoltageColumn)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingColumn, opts.VoltageColumn)
	}

	rows := len(current)
	x := make([]float64, rows)
	y := make([]float64, rows)
	valid := make([]bool, rows)
	for i := range rows {
		xi, okx := current[i].Float64()
		yi, oky := voltage[i].Float64()
		x[i], y[i], valid[i] = xi, yi, okx && oky
	}

	op := operatingIndex(x, valid)
	if op < 0 {
		return Result{}, fmt.Errorf("%w: no numeric %s/%s rows", ErrNoValidFit, opts.CurrentColumn, opts.VoltageColumn)
	}

	best := Result{HalfWidth: -1, OCP: y[op], OperatingIndex: op}
	for n := opts.MinHalfWidth; n <= opts.MaxHalfWidth; n++ {
		w := WindowAt(op, n, rows)
		slope, r2, ok := fit(x, y, valid, w)
		if !ok || slope <= 0 {
			continue
		}
		if best.HalfWidth < 0 || r2 > best.RSquared {
			best.Slope, best.RSquared, best.HalfWidth = slope, r2, n
		}
	}

	if best.HalfWidth < 0 {
		return Result{}, ErrNoValidFit
	}
	return best, nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.CurrentColumn == "" {
		opts.CurrentColumn = def.CurrentColumn
	}
	if opts.VoltageColumn == "" {
		opts.VoltageColumn = def.VoltageColumn
	}
	if opts.MinHalfWidth <= 0 && opts.MaxHalfWidth <= 0 {
		opts.MinHalfWidth, opts.MaxHalfWidth = def.MinHalfWidth, def.MaxHalfWidth
	}
	return opts
}

// operatingIndex returns the first valid row with minimum |x|, or -1.
func operatingIndex(x []float64, valid []bool) int {
	op := -1
	minAbs := math.Inf(1)
	for i, v := range x {
		if !valid[i] || math.IsNaN(v) {
			continue
		}
		if a := math.Abs(v); op < 0 || a < minAbs {
			op, minAbs = i, a
		}
	}
	return op
}

// fit regresses y on x over the window. ok is false when the window has
// fewer than two usable points or the fit is undefined.
func fit(x, y []float64, valid []bool, w Window) (slope, r2 float64, ok bool) {
	xs := make([]float64, 0, w.Upper-w.Lower)
	ys := make([]float64, 0, w.Upper-w.Lower)
	for i := w.Lower; i < w.Upper; i++ {
		if valid[i] {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	if len(xs) < 2 {
		return 0, 0, false
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0, 0, false
	}
	r2 = stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(r2) {
		return 0, 0, false
	}
	return beta, r2, true
}
