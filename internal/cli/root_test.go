package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	if root.Use != "corrosion" {
		t.Errorf("Use = %q, want corrosion", root.Use)
	}
	for _, name := range []string{"analyze", "extract", "detect", "diagnose", "validate", "version"} {
		if !isBuiltinCommand(root, name) {
			t.Errorf("missing subcommand %s", name)
		}
	}
	for _, flag := range []string{"log-level", "log-format"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag %s", flag)
		}
	}
}

func TestIsBuiltinCommand(t *testing.T) {
	root := NewRootCommand()

	tests := map[string]bool{
		"analyze":    true,
		"help":       true,
		"completion": true,
		"plot":       false,
	}
	for name, want := range tests {
		if got := isBuiltinCommand(root, name); got != want {
			t.Errorf("isBuiltinCommand(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestPluginCandidate(t *testing.T) {
	root := NewRootCommand()

	tests := []struct {
		args   []string
		name   string
		plugin bool
	}{
		{nil, "", false},
		{[]string{""}, "", false},
		{[]string{"--help"}, "", false},
		{[]string{"analyze", "c.yaml"}, "", false},
		{[]string{"plot", "report.json"}, "plot", true},
	}
	for _, tt := range tests {
		name, ok := pluginCandidate(root, tt.args)
		if name != tt.name || ok != tt.plugin {
			t.Errorf("pluginCandidate(%v) = (%q, %v), want (%q, %v)", tt.args, name, ok, tt.name, tt.plugin)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "corrosion ") {
		t.Errorf("output = %q", buf.String())
	}
}
