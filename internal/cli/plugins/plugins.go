// Package plugins provides exec-based plugin support for corrosion.
// Plugins are separate binaries named corrosion-<command> that are
// discovered and executed when an unknown command is invoked.
//
// This follows the same pattern used by kubectl and git for plugins.
package plugins

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// BinaryName is the name of the host binary and the plugin prefix.
const BinaryName = "corrosion"

// KnownPlugins lists plugins with an official implementation. They get
// a description in the not-found message.
var KnownPlugins = map[string]string{
	"plot": "Plots the resistance series of an analyze --output json report.",
}

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// Name returns the binary name for a plugin command.
func Name(command string) string {
	return BinaryName + "-" + command
}

// searchDirs returns the directories searched before PATH: the host
// binary's directory, then ~/.corrosion/plugins.
func searchDirs() []string {
	var dirs []string
	if execPath, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(execPath))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(homeDir, "."+BinaryName, "plugins"))
	}
	return dirs
}

// FindPlugin returns the full path of the plugin binary for command. The
// search order is the host binary's directory, ~/.corrosion/plugins/,
// then PATH.
func FindPlugin(command string) (string, error) {
	if command == "" || strings.ContainsAny(command, `/\`) {
		return "", ErrPluginNotFound
	}
	name := Name(command)

	for _, dir := range searchDirs() {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", ErrPluginNotFound
}

// Execute runs a plugin with the given arguments, connected to this
// process's standard streams, and returns its exit code.
func Execute(pluginPath string, args []string) int {
	cmd := exec.Command(pluginPath, args...) // #nosec G204 -- plugin path comes from FindPlugin
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing plugin: %v\n", err)
		return 1
	}

	return 0
}

// FormatNotFoundError returns the message shown for an unknown command,
// listing where a plugin binary would be picked up from.
func FormatNotFoundError(command string) string {
	var sb strings.Builder
	name := Name(command)

	fmt.Fprintf(&sb, "unknown command %q for %q\n", command, BinaryName)

	if info, ok := KnownPlugins[command]; ok {
		fmt.Fprintf(&sb, "\n%q is available as a plugin.\n", command)
		sb.WriteString(info)
		sb.WriteString("\n\nInstall the plugin binary as one of:\n")
	} else {
		sb.WriteString("\nIf this is a plugin, install the binary as one of:\n")
	}

	fmt.Fprintf(&sb, "  - %s in the same directory as %s\n", name, BinaryName)
	fmt.Fprintf(&sb, "  - ~/.%s/plugins/%s\n", BinaryName, name)
	fmt.Fprintf(&sb, "  - %s anywhere in your PATH\n", name)

	fmt.Fprintf(&sb, "\nRun '%s --help' for usage.", BinaryName)

	return sb.String()
}

// isExecutable reports whether path is a regular file with an execute bit.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}
