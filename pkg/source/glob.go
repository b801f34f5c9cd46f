// Package source discovers measurement files and classifies them by kind.
package source

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// HasMeta reports whether pattern contains glob metacharacters.
func HasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, `*?[`)
}

// ExpandGlobs expands a list of file paths and glob patterns into a deduplicated
// list of matching file paths. A plain path that doesn't exist is returned as-is
// (the caller should handle file-not-found errors); a glob that matches nothing
// contributes no paths.
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			if HasMeta(pattern) {
				continue
			}
			// Keep the literal so the missing file surfaces as a per-file error.
			if !seen[pattern] {
				seen[pattern] = true
				result = append(result, pattern)
			}
			continue
		}

		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				result = append(result, match)
			}
		}
	}

	sort.Strings(result)

	return result, nil
}
