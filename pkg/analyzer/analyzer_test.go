package analyzer

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ccollicutt/corrosion/pkg/config"
	"github.com/ccollicutt/corrosion/pkg/detector"
	"github.com/ccollicutt/corrosion/pkg/gamry"
	"github.com/ccollicutt/corrosion/pkg/metrics"
	"github.com/ccollicutt/corrosion/pkg/resistance"
	"github.com/ccollicutt/corrosion/pkg/source"
)

var fixtureDir = filepath.Join("..", "..", "testdata", "dta")

func goodFixture(name string) string {
	return filepath.Join(fixtureDir, "good", name)
}

func createTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Sources = []string{filepath.Join(fixtureDir, "good", "*.DTA")}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return cfg
}

func discover(t *testing.T, cfg *config.Config, patterns ...string) []source.File {
	t.Helper()
	files, unclassified, err := source.Discover(patterns, cfg.Classification.Classifier())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(unclassified) != 0 {
		t.Fatalf("unexpected unclassified files: %v", unclassified)
	}
	return files
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestNewAnalyzer(t *testing.T) {
	a, err := NewAnalyzer(createTestConfig(t))
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}
	if a.workers != config.DefaultWorkers {
		t.Errorf("workers = %d, want %d", a.workers, config.DefaultWorkers)
	}
}

func TestNewAnalyzer_NilConfig(t *testing.T) {
	if _, err := NewAnalyzer(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestNewAnalyzer_WithWorkers(t *testing.T) {
	a, err := NewAnalyzer(createTestConfig(t), WithWorkers(2), WithWorkers(0))
	if err != nil {
		t.Fatal(err)
	}
	if a.workers != 2 {
		t.Errorf("workers = %d, want 2 (zero must be ignored)", a.workers)
	}
}

func TestAnalyzer_Analyze_Fixtures(t *testing.T) {
	cfg := createTestConfig(t)
	files := discover(t, cfg, cfg.Sources...)
	if len(files) != 4 {
		t.Fatalf("Expected 4 fixture files, got %d", len(files))
	}

	recorder := metrics.NewRecorder()
	a, err := NewAnalyzer(cfg, WithMetrics(recorder))
	if err != nil {
		t.Fatal(err)
	}

	result, err := a.Analyze(context.Background(), files)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if result.HasFailures() {
		for _, f := range result.Files {
			if f.Failed() {
				t.Errorf("%s failed at %s: %s", f.Path, f.Stage, f.Error)
			}
		}
	}

	counts := result.CountByKind()
	if counts[gamry.KindLPR] != 2 || counts[gamry.KindEIS] != 1 || counts[gamry.KindOCP] != 1 {
		t.Errorf("CountByKind() = %v", counts)
	}

	wantRef := time.Date(2021, 3, 15, 12, 5, 12, 0, time.UTC)
	if !result.Reference.Equal(wantRef) {
		t.Errorf("Reference = %v, want earliest measurement %v", result.Reference, wantRef)
	}

	if len(result.Series) != 2 {
		t.Fatalf("Expected 2 series points, got %d", len(result.Series))
	}

	first, second := result.Series[0], result.Series[1]
	if filepath.Base(first.Path) != "LPR_cell1_01h.DTA" {
		t.Errorf("first point = %s, want LPR_cell1_01h.DTA", first.Path)
	}
	if first.Hours != 2 || second.Hours != 5 {
		t.Errorf("Hours = %v, %v; want 2, 5", first.Hours, second.Hours)
	}
	if !approx(first.Resistance, 1199.8886728, 1e-4) {
		t.Errorf("first resistance = %v", first.Resistance)
	}
	if !approx(second.Resistance, 1649.8466678, 1e-4) {
		t.Errorf("second resistance = %v", second.Resistance)
	}
	if first.HalfWidth != 5 || first.OCP != -0.45102 {
		t.Errorf("first fit half-width = %d, ocp = %v", first.HalfWidth, first.OCP)
	}
	if first.RSquared < 0.9999999 {
		t.Errorf("first R² = %v", first.RSquared)
	}

	for _, f := range result.Files {
		if f.Hours == nil || f.Timestamp == nil {
			t.Errorf("%s: missing timestamp", f.Path)
		}
		if f.Kind != gamry.KindLPR && f.Fit != nil {
			t.Errorf("%s: only LPR files are fitted", f.Path)
		}
	}

	series, err := testutil.GatherAndCount(recorder.Registry(), "corrosion_files_total")
	if err != nil {
		t.Fatal(err)
	}
	if series != 3 {
		t.Errorf("corrosion_files_total series = %d, want one per kind", series)
	}
}

func TestAnalyzer_Analyze_FailureStages(t *testing.T) {
	cfg := createTestConfig(t)
	dir := t.TempDir()

	lpr, err := os.ReadFile(goodFixture("LPR_cell1_01h.DTA"))
	if err != nil {
		t.Fatal(err)
	}

	badTime := filepath.Join(dir, "LPR_bad_time.DTA")
	writeFile(t, badTime, []byte(
		"TAG\tLPR\nDATE\tLABEL\t15.03.2021\tDate\nTIME\tLABEL\t14:05:12\tTime\n"+
			"EOC\tQUANT\t-0.45\tOpen Circuit (V)\nCURVE\tTABLE\n\tPt\tVf\tIm\n\t#\tV\tA\n\t0\t-0.45\t1e-6\n"))

	noFit := filepath.Join(dir, "LPR_no_fit.DTA")
	writeFile(t, noFit, []byte(
		"TAG\tLPR\nDATE\tLABEL\t3/15/2021\tDate\nTIME\tLABEL\t15:00:00\tTime\n"+
			"EOC\tQUANT\t-0.45\tOpen Circuit (V)\nCURVE\tTABLE\n\tPt\tVf\tIm\n\t#\tV\tA\n"+
			"\t0\t0.3\t1\n\t1\t0.2\t2\n\t2\t0.1\t3\n"))

	copied := filepath.Join(dir, "LPR_copy.DTA")
	writeFile(t, copied, lpr)

	files := []source.File{
		{Path: filepath.Join(fixtureDir, "bad", "LPR_cell1_missing_eoc.DTA"), Kind: gamry.KindLPR},
		{Path: badTime, Kind: gamry.KindLPR},
		{Path: noFit, Kind: gamry.KindLPR},
		{Path: filepath.Join(dir, "LPR_missing.DTA"), Kind: gamry.KindLPR},
		{Path: copied, Kind: gamry.KindLPR},
	}

	a, err := NewAnalyzer(cfg, WithWorkers(2))
	if err != nil {
		t.Fatal(err)
	}
	result, err := a.Analyze(context.Background(), files)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	want := []Stage{StageExtract, StageTimestamp, StageFit, StageExtract, ""}
	for i, f := range result.Files {
		if f.Path != files[i].Path {
			t.Errorf("Files[%d] = %s, results must keep input order", i, f.Path)
		}
		if f.Stage != want[i] {
			t.Errorf("%s: stage = %q, want %q (error %q)", filepath.Base(f.Path), f.Stage, want[i], f.Error)
		}
	}
	if result.Failures() != 4 {
		t.Errorf("Failures() = %d, want 4", result.Failures())
	}
	if len(result.Series) != 1 {
		t.Fatalf("Expected 1 series point, got %d", len(result.Series))
	}

	// The missing-EOC file fails before its timestamp is read, so the
	// reference comes from the surviving files.
	if result.Files[0].Timestamp != nil {
		t.Error("extract failure should leave no timestamp")
	}
	if result.Files[2].Timestamp == nil || result.Files[2].Fit != nil {
		t.Error("fit failure should keep the timestamp and no fit")
	}
}

func TestAnalyzer_Analyze_ConfiguredReference(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sources = []string{"unused"}
	cfg.Timestamp.Reference = "3/15/2021 10:05:12"
	if err := config.Validate(cfg); err != nil {
		t.Fatal(err)
	}

	a, err := NewAnalyzer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	result, err := a.Analyze(context.Background(), []source.File{
		{Path: goodFixture("LPR_cell1_04h.DTA"), Kind: gamry.KindLPR},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Series) != 1 || result.Series[0].Hours != 7 {
		t.Errorf("Series = %+v, want one point at 7h", result.Series)
	}
}

func TestAnalyzer_Analyze_Empty(t *testing.T) {
	a, err := NewAnalyzer(createTestConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	result, err := a.Analyze(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Files) != 0 || len(result.Series) != 0 || !result.Reference.IsZero() {
		t.Errorf("unexpected result for no files: %+v", result)
	}
}

func TestAnalyzer_Analyze_Cancelled(t *testing.T) {
	cfg := createTestConfig(t)
	files := discover(t, cfg, cfg.Sources...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := NewAnalyzer(cfg, WithWorkers(1))
	if err != nil {
		t.Fatal(err)
	}
	_, err = a.Analyze(ctx, files)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Analyze() error = %v, want context.Canceled", err)
	}
}

func TestBuildSeries_TieBreak(t *testing.T) {
	ts := time.Date(2021, 3, 15, 14, 0, 0, 0, time.UTC)
	h := 1.0
	fit := &resistance.Result{Slope: 1000, RSquared: 0.999, HalfWidth: 5}

	files := []*FileResult{
		{Path: "b.DTA", Kind: gamry.KindLPR, Timestamp: &ts, Hours: &h, Fit: fit},
		{Path: "c.DTA", Kind: gamry.KindLPR, Timestamp: &ts, Hours: &h},
		{Path: "a.DTA", Kind: gamry.KindLPR, Timestamp: &ts, Hours: &h, Fit: fit},
	}

	series := buildSeries(files)
	if len(series) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(series))
	}
	if series[0].Path != "a.DTA" || series[1].Path != "b.DTA" {
		t.Errorf("equal timestamps must order by path, got %s, %s", series[0].Path, series[1].Path)
	}
	if series[0].Resistance != 1000 {
		t.Errorf("Resistance = %v, want the fit slope", series[0].Resistance)
	}
}

func TestResolveKinds(t *testing.T) {
	dir := t.TempDir()

	eis, err := os.ReadFile(goodFixture("EIS_cell1_00h.DTA"))
	if err != nil {
		t.Fatal(err)
	}
	renamed := filepath.Join(dir, "run-17.txt")
	writeFile(t, renamed, eis)

	junk := filepath.Join(dir, "notes.txt")
	writeFile(t, junk, []byte("just some notes\n"))

	missing := filepath.Join(dir, "gone.DTA")

	files, skipped, err := ResolveKinds(context.Background(), detector.New(), []string{renamed, junk, missing})
	if err != nil {
		t.Fatalf("ResolveKinds() error = %v", err)
	}
	if len(files) != 1 || files[0].Path != renamed || files[0].Kind != gamry.KindEIS {
		t.Errorf("files = %+v, want %s as EIS", files, renamed)
	}
	if len(skipped) != 2 {
		t.Errorf("skipped = %v, want notes.txt and gone.DTA", skipped)
	}
}

func TestResolveKinds_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ResolveKinds(ctx, detector.New(), []string{goodFixture("EIS_cell1_00h.DTA")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ResolveKinds() error = %v, want context.Canceled", err)
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
