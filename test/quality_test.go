package test

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ccollicutt/corrosion/pkg/config"
	"github.com/ccollicutt/corrosion/pkg/detector"
)

// getProjectRoot returns the project root directory based on this test file's location.
func getProjectRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	// Go up one level from test/ to project root
	return filepath.Dir(filepath.Dir(filename))
}

// projectTestFiles lists the module's _test.go files, skipping the
// directories the go tool ignores.
func projectTestFiles(t *testing.T) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(getProjectRoot(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			name := info.Name()
			if path != getProjectRoot() && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, "_test.go") && !strings.HasSuffix(path, "quality_test.go") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to walk directory: %v", err)
	}
	return files
}

// TestNoSkippedTests ensures no test files contain t.Skip() calls.
// Skipped tests hide failures - tests should either pass or fail, never skip.
func TestNoSkippedTests(t *testing.T) {
	forbiddenPatterns := []string{
		"t.Skip(",
		"t.SkipNow(",
		"testing.Short()",
	}

	violations := []string{}

	for _, testFile := range projectTestFiles(t) {
		f, err := os.Open(testFile) // #nosec G304 -- paths come from walking the repo
		if err != nil {
			t.Fatalf("Failed to open %s: %v", testFile, err)
		}

		scanner := bufio.NewScanner(f)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()

			if strings.HasPrefix(strings.TrimSpace(line), "//") {
				continue
			}

			for _, pattern := range forbiddenPatterns {
				if strings.Contains(line, pattern) {
					violations = append(violations,
						fmt.Sprintf("%s:%d: contains forbidden pattern '%s'", testFile, lineNum, pattern))
				}
			}
		}
		f.Close()

		if err := scanner.Err(); err != nil {
			t.Fatalf("Error scanning %s: %v", testFile, err)
		}
	}

	if len(violations) > 0 {
		t.Errorf("Found %d test skip violation(s):\n", len(violations))
		for _, v := range violations {
			t.Errorf("  %s", v)
		}
		t.Error("\nTests should not be skipped. Either:")
		t.Error("  1. Fix the issue causing the skip")
		t.Error("  2. Use t.Fatalf() if a required resource is missing")
		t.Error("  3. Remove the test if it's no longer relevant")
	}
}

// TestNoEmptyTests ensures every package with code carries tests.
func TestNoEmptyTests(t *testing.T) {
	testFiles := projectTestFiles(t)
	if len(testFiles) == 0 {
		t.Fatal("No test files found - something is wrong with test discovery")
	}

	tested := make(map[string]bool)
	for _, f := range testFiles {
		tested[filepath.Dir(f)] = true
	}

	for _, dir := range []string{"pkg", "internal"} {
		root := filepath.Join(getProjectRoot(), dir)
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() && info.Name() == "testdata" {
				return filepath.SkipDir
			}
			if !info.IsDir() && strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go") {
				if !tested[filepath.Dir(path)] {
					t.Errorf("package %s has no tests", filepath.Dir(path))
					tested[filepath.Dir(path)] = true // report once
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Failed to walk %s: %v", root, err)
		}
	}

	t.Logf("Found %d test files", len(testFiles))
}

// TestFixturesAreConsistent checks that every good fixture is named for
// the kind its header declares, so end-to-end expectations stay honest.
func TestFixturesAreConsistent(t *testing.T) {
	dir := filepath.Join(getProjectRoot(), "testdata", "dta", "good")
	paths, err := filepath.Glob(filepath.Join(dir, "*.DTA"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("no fixtures in %s: %v", dir, err)
	}

	classifier := config.DefaultClassifier()
	d := detector.New()
	for _, p := range paths {
		named, ok := classifier.Classify(p)
		if !ok {
			t.Errorf("%s: name matches no kind", filepath.Base(p))
			continue
		}
		result, err := d.DetectFromFile(context.Background(), p)
		if err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		if !result.Confident() || result.BestMatch().Kind != named {
			t.Errorf("%s: named %s but header gives %+v", filepath.Base(p), named, result.BestMatch())
		}
	}
}
