package gamry

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Grid is the tokenized form of an instrument file: one row per line,
// one token per tab-separated field.
type Grid [][]string

// Tokenize decodes raw file bytes and splits them into a Grid.
//
// Decoding never fails: a UTF-8 byte order mark is stripped and byte
// sequences that are not valid UTF-8 are dropped. Each line is trimmed of
// surrounding whitespace as a whole before it is split on tabs, so the
// leading tab Gamry writes in front of table rows does not produce an
// empty first token.
func Tokenize(data []byte) Grid {
	text := decode(data)
	if text == "" {
		return Grid{}
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")

	lines := strings.Split(text, "\n")
	grid := make(Grid, len(lines))
	for i, line := range lines {
		grid[i] = strings.Split(strings.TrimSpace(line), "\t")
	}
	return grid
}

// decode converts data to valid UTF-8. Undecodable bytes are dropped; a
// correctly encoded U+FFFD in the input is kept.
func decode(data []byte) string {
	valid := strings.ToValidUTF8(string(data), "")
	out, _, err := transform.String(unicode.UTF8BOM.NewDecoder(), valid)
	if err != nil {
		return valid
	}
	return out
}

// Row returns row i of the grid, or nil when i is out of range.
func (g Grid) Row(i int) []string {
	if i < 0 || i >= len(g) {
		return nil
	}
	return g[i]
}

// first returns the first token of a row, or "" for an empty row.
func first(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return row[0]
}
