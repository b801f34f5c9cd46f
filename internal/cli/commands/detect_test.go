package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ccollicutt/corrosion/pkg/config"
	"github.com/ccollicutt/corrosion/pkg/detector"
	"github.com/ccollicutt/corrosion/pkg/gamry"
)

func runDetectCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewDetectCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestGenerateStarterConfig(t *testing.T) {
	match := &detector.KindMatch{Kind: gamry.KindLPR, Confidence: 0.9}

	content := generateStarterConfig("/data/cell1/LPR_cell1_01h.DTA", match)

	checks := []string{
		"sources:",
		"/data/cell1/*.DTA",
		"classification:",
		"timestamp:",
		"layout: \"1/2/2006 15:04:05\"",
		"estimator:",
		"Detected kind: LPR",
		"90%",
	}
	for _, check := range checks {
		if !strings.Contains(content, check) {
			t.Errorf("Config missing %q", check)
		}
	}
}

func TestGenerateStarterConfig_Loads(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "corrosion.yaml")
	content := generateStarterConfig(filepath.Join(dir, "LPR_cell1_01h.DTA"), &detector.KindMatch{Kind: gamry.KindLPR, Confidence: 1})
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(context.Background(), configPath)
	if err != nil {
		t.Fatalf("starter config does not load: %v", err)
	}
	if len(cfg.Sources) != 1 || !strings.HasSuffix(cfg.Sources[0], "*.DTA") {
		t.Errorf("Sources = %v", cfg.Sources)
	}
}

func TestWriteStarterConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "corrosion.yaml")
	result := &detector.DetectionResult{
		Matches: []detector.KindMatch{{Kind: gamry.KindEIS, Confidence: 1, TagMatched: true}},
	}

	var buf bytes.Buffer
	if err := writeStarterConfig(&buf, result, "/data/EIS.DTA", configPath); err != nil {
		t.Fatalf("writeStarterConfig failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Wrote starter config") {
		t.Errorf("missing confirmation, got %q", buf.String())
	}

	// Refuses to overwrite
	if err := writeStarterConfig(&buf, result, "/data/EIS.DTA", configPath); err == nil ||
		!strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected already-exists error, got %v", err)
	}
}

func TestWriteStarterConfig_NoMatch(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "corrosion.yaml")

	err := writeStarterConfig(&bytes.Buffer{}, &detector.DetectionResult{}, "/data/x.DTA", configPath)
	if err == nil {
		t.Fatal("expected error for empty detection result")
	}
	if _, statErr := os.Stat(configPath); !os.IsNotExist(statErr) {
		t.Error("config written despite no match")
	}
}

func TestRunDetect_Text(t *testing.T) {
	out, err := runDetectCmd(t, filepath.Join(goodDir, "EIS_cell1_00h.DTA"))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	for _, want := range []string{"TAG: EISPOT", "Detected Kind: EIS", "Confidence: 100.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Note:") {
		t.Errorf("unexpected note for a recognized TAG:\n%s", out)
	}
}

func TestRunDetect_MissingRequired(t *testing.T) {
	out, err := runDetectCmd(t, filepath.Join(badDir, "LPR_cell1_missing_eoc.DTA"))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if !strings.Contains(out, "Missing required keys: EOC") {
		t.Errorf("Expected missing EOC, got:\n%s", out)
	}
}

func TestRunDetect_JSON(t *testing.T) {
	out, err := runDetectCmd(t, "-o", "json", "--all", filepath.Join(goodDir, "LPR_cell1_01h.DTA"))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	var result JSONOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !result.Confident || result.Tag != "LPR" {
		t.Errorf("result = %+v, want confident LPR", result)
	}
	if len(result.Matches) < 2 {
		t.Fatalf("--all returned %d matches, want several", len(result.Matches))
	}
	if result.Matches[0].Kind != gamry.KindLPR || !result.Matches[0].TagMatched {
		t.Errorf("best match = %+v", result.Matches[0])
	}

	out, err = runDetectCmd(t, "-o", "json", filepath.Join(goodDir, "LPR_cell1_01h.DTA"))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(result.Matches) != 1 {
		t.Errorf("without --all got %d matches, want 1", len(result.Matches))
	}
}

func TestRunDetect_NoMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello\nworld\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runDetectCmd(t, path)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if !strings.Contains(out, "No measurement kind detected") {
		t.Errorf("Expected no-match message, got:\n%s", out)
	}

	if _, err := runDetectCmd(t, "-w", filepath.Join(t.TempDir(), "c.yaml"), path); err == nil {
		t.Error("expected error writing config without a match")
	}
}

func TestRunDetect_WriteConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "corrosion.yaml")

	out, err := runDetectCmd(t, "-w", configPath, filepath.Join(goodDir, "CORPOT_cell1_00h.DTA"))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if !strings.Contains(out, "Wrote starter config to: "+configPath) {
		t.Errorf("missing confirmation:\n%s", out)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("config not written: %v", err)
	}
}

func TestRunDetect_FileNotFound(t *testing.T) {
	_, err := runDetectCmd(t, "/nonexistent/file.DTA")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}
