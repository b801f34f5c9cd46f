package source

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/ccollicutt/corrosion/pkg/gamry"
)

// Rule maps a filename pattern to a measurement kind.
type Rule struct {
	Kind    gamry.Kind
	Pattern *regexp.Regexp
}

// Classifier assigns measurement kinds by filename convention.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier. Rules are tried in order and the
// first match wins.
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the kind for a path, matching against its base name.
func (c *Classifier) Classify(path string) (gamry.Kind, bool) {
	name := filepath.Base(path)
	for _, r := range c.rules {
		if r.Pattern != nil && r.Pattern.MatchString(name) {
			return r.Kind, true
		}
	}
	return "", false
}

// File is a measurement file with its kind.
type File struct {
	Path string     `json:"path"`
	Kind gamry.Kind `json:"kind"`
}

// Discover expands patterns and classifies every match. Paths no rule
// matches are returned separately.
func Discover(patterns []string, c *Classifier) (files []File, unclassified []string, err error) {
	paths, err := ExpandGlobs(patterns)
	if err != nil {
		return nil, nil, fmt.Errorf("expanding sources: %w", err)
	}

	for _, p := range paths {
		kind, ok := c.Classify(p)
		if !ok {
			unclassified = append(unclassified, p)
			continue
		}
		files = append(files, File{Path: p, Kind: kind})
	}
	return files, unclassified, nil
}
