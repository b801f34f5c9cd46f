// Package detector guesses the measurement kind of an instrument file from
// its header, for files whose names don't follow the classification rules.
package detector

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strings"

	"github.com/ccollicutt/corrosion/pkg/gamry"
)

// DetectionResult holds the result of analyzing a file header.
type DetectionResult struct {
	Matches      []KindMatch // Kinds with at least one header key, best first
	SampledLines int         // Number of lines sampled
	Tag          string      // TAG value found in the header, if any
	Note         string      // Warning when the TAG did not decide the kind
}

// KindMatch represents a kind whose header keys were found.
type KindMatch struct {
	Kind       gamry.Kind
	Confidence float64  // 0.0 to 1.0 (fraction of the kind's keys present)
	TagMatched bool     // TAG value is one this kind writes
	Present    []string // Header keys found
	Missing    []string // Header keys not found
	// MissingRequired lists absent keys the extractor cannot do without.
	MissingRequired []string
}

// Detector inspects file headers to identify measurement kinds.
type Detector struct {
	kinds      []gamry.KindSpec
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithKinds restricts detection to the given layouts.
func WithKinds(kinds ...gamry.KindSpec) Option {
	return func(d *Detector) {
		if len(kinds) > 0 {
			d.kinds = kinds
		}
	}
}

// New creates a new Detector for all known kinds.
func New(opts ...Option) *Detector {
	d := &Detector{
		kinds:      gamry.Kinds(),
		sampleSize: 100,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile samples the head of a file and detects its kind.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	data, err := d.sampleFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.Detect(gamry.Tokenize(data)), nil
}

// DetectFromLines detects the kind from raw header lines.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	return d.Detect(gamry.Tokenize([]byte(strings.Join(lines, "\n"))))
}

// Detect scores every configured kind against a tokenized header.
func (d *Detector) Detect(grid gamry.Grid) *DetectionResult {
	if len(grid) > d.sampleSize {
		grid = grid[:d.sampleSize]
	}
	result := &DetectionResult{SampledLines: len(grid)}

	keys := make(map[string]bool)
	for _, row := range grid {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		keys[row[0]] = true
		if row[0] == gamry.FieldTag && len(row) > 1 && result.Tag == "" {
			result.Tag = row[1]
		}
	}

	order := make(map[gamry.Kind]int, len(d.kinds))
	for i, spec := range d.kinds {
		order[spec.Kind] = i

		m := KindMatch{Kind: spec.Kind, TagMatched: spec.HasTag(result.Tag)}
		for _, f := range spec.Fields {
			if keys[f.Key] {
				m.Present = append(m.Present, f.Key)
				continue
			}
			m.Missing = append(m.Missing, f.Key)
			if f.Required {
				m.MissingRequired = append(m.MissingRequired, f.Key)
			}
		}
		if len(m.Present) == 0 {
			continue
		}
		m.Confidence = float64(len(m.Present)) / float64(len(spec.Fields))
		result.Matches = append(result.Matches, m)
	}

	// A recognized TAG decides; header keys break the remaining ties.
	sort.SliceStable(result.Matches, func(i, j int) bool {
		a, b := result.Matches[i], result.Matches[j]
		if a.TagMatched != b.TagMatched {
			return a.TagMatched
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return order[a.Kind] < order[b.Kind]
	})

	if len(result.Matches) > 0 && !result.Matches[0].TagMatched {
		if result.Tag == "" {
			result.Note = "No TAG line found; kind guessed from header keys only."
		} else {
			result.Note = "TAG " + result.Tag + " is not a known measurement tag; kind guessed from header keys only."
		}
	}

	return result
}

// sampleFile reads up to sampleSize lines from a file.
func (d *Detector) sampleFile(ctx context.Context, path string) ([]byte, error) {
	// #nosec G304 - path is provided by user via CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var sb strings.Builder
	lines := 0
	scanner := bufio.NewScanner(file)
	for lines < d.sampleSize && scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sb.Write(scanner.Bytes())
		sb.WriteByte('\n')
		lines++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return []byte(sb.String()), nil
}

// BestMatch returns the highest ranked match, or nil if none found.
func (r *DetectionResult) BestMatch() *KindMatch {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one kind matched.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Matches) > 0
}

// Confident reports whether the best match was decided by its TAG and
// carries every required key.
func (r *DetectionResult) Confident() bool {
	best := r.BestMatch()
	return best != nil && best.TagMatched && len(best.MissingRequired) == 0
}
