package plugins

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePlugin(t *testing.T, dir, command string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	path := filepath.Join(dir, Name(command))
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho test"), 0755); err != nil {
		t.Fatalf("failed to create test plugin: %v", err)
	}
	return path
}

func TestName(t *testing.T) {
	if got := Name("plot"); got != "corrosion-plot" {
		t.Errorf("Name(plot) = %q, want corrosion-plot", got)
	}
}

func TestFindPlugin_NotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PATH", t.TempDir())

	_, err := FindPlugin("nonexistent-plugin-xyz")
	if !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestFindPlugin_RejectsPaths(t *testing.T) {
	for _, cmd := range []string{"", "../evil", `a\b`} {
		if _, err := FindPlugin(cmd); !errors.Is(err, ErrPluginNotFound) {
			t.Errorf("FindPlugin(%q) error = %v, want ErrPluginNotFound", cmd, err)
		}
	}
}

func TestFindPlugin_InPluginsDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PATH", t.TempDir())

	pluginPath := writePlugin(t, filepath.Join(home, ".corrosion", "plugins"), "testplugin")

	found, err := FindPlugin("testplugin")
	if err != nil {
		t.Fatalf("expected to find plugin, got error: %v", err)
	}
	if found != pluginPath {
		t.Errorf("expected %s, got %s", pluginPath, found)
	}
}

func TestFindPlugin_InPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	binDir := t.TempDir()
	t.Setenv("PATH", binDir)

	pluginPath := writePlugin(t, binDir, "pathplugin")

	found, err := FindPlugin("pathplugin")
	if err != nil {
		t.Fatalf("expected to find plugin, got error: %v", err)
	}
	if found != pluginPath {
		t.Errorf("expected %s, got %s", pluginPath, found)
	}
}

func TestFormatNotFoundError_KnownPlugin(t *testing.T) {
	msg := FormatNotFoundError("plot")

	for _, want := range []string{
		`unknown command "plot" for "corrosion"`,
		"available as a plugin",
		KnownPlugins["plot"],
		"corrosion-plot",
		"~/.corrosion/plugins/corrosion-plot",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected message to contain %q, got:\n%s", want, msg)
		}
	}
}

func TestFormatNotFoundError_UnknownPlugin(t *testing.T) {
	msg := FormatNotFoundError("unknown")

	if !strings.Contains(msg, "corrosion-unknown") {
		t.Error("expected message to mention corrosion-unknown")
	}
	if strings.Contains(msg, "available as a plugin") {
		t.Error("should not mention plugin availability for unknown plugins")
	}
}

func TestIsExecutable(t *testing.T) {
	tmpDir := t.TempDir()

	nonExec := filepath.Join(tmpDir, "nonexec")
	if err := os.WriteFile(nonExec, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	if isExecutable(nonExec) {
		t.Error("non-executable file should not be detected as executable")
	}

	exe := filepath.Join(tmpDir, "exec")
	if err := os.WriteFile(exe, []byte("test"), 0755); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	if !isExecutable(exe) {
		t.Error("executable file should be detected as executable")
	}

	if isExecutable(tmpDir) {
		t.Error("directory should not be detected as executable")
	}

	if isExecutable(filepath.Join(tmpDir, "nonexistent")) {
		t.Error("non-existent file should not be detected as executable")
	}
}
