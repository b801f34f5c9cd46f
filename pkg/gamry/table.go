package gamry

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// CellKind tags the variant stored in a Cell.
type CellKind uint8

const (
	// Missing marks a token that is neither a number nor a dot run.
	Missing CellKind = iota
	// Int is an integral numeric value.
	Int
	// Float is a non-integral numeric value.
	Float
	// Sentinel marks a run of '.' characters the instrument writes for an
	// omitted or overflowed value. The run length is kept in I.
	Sentinel
)

func (k CellKind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Sentinel:
		return "sentinel"
	default:
		return "missing"
	}
}

// Cell is one coerced table value.
type Cell struct {
	Kind CellKind
	I    int64
	F    float64
}

// IntCell returns an Int cell.
func IntCell(v int64) Cell { return Cell{Kind: Int, I: v} }

// FloatCell returns a Float cell.
func FloatCell(v float64) Cell { return Cell{Kind: Float, F: v} }

// SentinelCell returns a dot-run sentinel of width n.
func SentinelCell(n int) Cell { return Cell{Kind: Sentinel, I: int64(n)} }

// MissingCell returns the missing-value marker.
func MissingCell() Cell { return Cell{} }

// Float64 returns the numeric value of Int and Float cells.
// Sentinel and Missing cells report ok == false.
func (c Cell) Float64() (v float64, ok bool) {
	switch c.Kind {
	case Int:
		return float64(c.I), true
	case Float:
		return c.F, true
	default:
		return 0, false
	}
}

// Numeric reports whether the cell holds a number.
func (c Cell) Numeric() bool {
	return c.Kind == Int || c.Kind == Float
}

// String renders the cell the way the instrument would write it.
func (c Cell) String() string {
	switch c.Kind {
	case Int:
		return strconv.FormatInt(c.I, 10)
	case Float:
		return strconv.FormatFloat(c.F, 'g', -1, 64)
	case Sentinel:
		return strings.Repeat(".", int(c.I))
	default:
		return ""
	}
}

// MarshalJSON encodes numbers as JSON numbers, sentinels as their dot run
// and missing values as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case Int:
		return []byte(strconv.FormatInt(c.I, 10)), nil
	case Float:
		if math.IsNaN(c.F) || math.IsInf(c.F, 0) {
			return json.Marshal(c.String())
		}
		return []byte(strconv.FormatFloat(c.F, 'g', -1, 64)), nil
	case Sentinel:
		return json.Marshal(c.String())
	default:
		return []byte("null"), nil
	}
}

// IntegralTolerance is the distance from the nearest integer below which a
// parsed value is stored as Int.
const IntegralTolerance = 1e-16

// Policy is an ordered coercion policy for table cells: numeric parse,
// then dot-run detection, then the missing marker.
type Policy struct {
	// SplitIntegers stores integral values as Int rather than Float.
	SplitIntegers bool
	// MinDotRun is the shortest run of '.' treated as a sentinel.
	MinDotRun int
}

var (
	// MainPolicy coerces cells of the main data table.
	MainPolicy = Policy{SplitIntegers: true, MinDotRun: 2}
	// AuxPolicy coerces cells of the OCVCURVE sub-table.
	AuxPolicy = Policy{SplitIntegers: false, MinDotRun: 1}
)

// Coerce converts one token. It never fails.
func (p Policy) Coerce(tok string) Cell {
	tok = strings.TrimSpace(tok)

	if v, ok := parseFloat(tok); ok {
		if p.SplitIntegers && isIntegral(v) {
			return IntCell(int64(math.Round(v)))
		}
		return FloatCell(v)
	}

	if n := dotRun(tok); n > 0 && n >= p.MinDotRun {
		return SentinelCell(n)
	}

	return MissingCell()
}

func parseFloat(tok string) (float64, bool) {
	if tok == "" || isHex(tok) {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err == nil {
		return v, true
	}
	// Out-of-range values still carry the nearest representable value.
	if errors.Is(err, strconv.ErrRange) {
		return v, true
	}
	return 0, false
}

// isHex reports a hexadecimal mantissa, which strconv accepts but the
// instrument never writes.
func isHex(tok string) bool {
	if tok[0] == '+' || tok[0] == '-' {
		tok = tok[1:]
	}
	return len(tok) > 1 && tok[0] == '0' && (tok[1] == 'x' || tok[1] == 'X')
}

func isIntegral(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if v < math.MinInt64 || v >= math.MaxInt64 {
		return false
	}
	return math.Abs(v-math.Round(v)) < IntegralTolerance
}

// dotRun returns the length of tok if it consists only of '.', else 0.
func dotRun(tok string) int {
	if tok == "" || strings.Trim(tok, ".") != "" {
		return 0
	}
	return len(tok)
}

// Table is a typed table keyed by the point index column.
type Table struct {
	// Columns lists the ordinary column names in file order. The point
	// index column is not included.
	Columns []string `json:"columns"`
	// Index holds the point index of each row.
	Index []Cell `json:"index"`
	// Rows holds one cell per column for each row.
	Rows [][]Cell `json:"rows"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column in Columns.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Column returns a copy of one column's cells.
func (t *Table) Column(name string) ([]Cell, bool) {
	j, ok := t.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	out := make([]Cell, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out, true
}

// Materialize coerces rows into a Table using header as the column names.
// The point index column becomes the row key. Blank rows are skipped.
func Materialize(rows [][]string, header []string, policy Policy) (*Table, error) {
	seen := make(map[string]bool, len(header))
	key := -1
	for i, name := range header {
		if seen[name] {
			return nil, &ColumnError{Column: name, Reason: "duplicate column name"}
		}
		seen[name] = true
		if name == PointIndexColumn {
			key = i
		}
	}
	if key < 0 {
		return nil, &ColumnError{Column: PointIndexColumn, Reason: "point index column not in header"}
	}

	t := &Table{
		Columns: make([]string, 0, len(header)-1),
		Index:   make([]Cell, 0, len(rows)),
		Rows:    make([][]Cell, 0, len(rows)),
	}
	for i, name := range header {
		if i != key {
			t.Columns = append(t.Columns, name)
		}
	}

	for _, row := range rows {
		if len(row) == 0 || (len(row) == 1 && row[0] == "") {
			continue
		}
		cells := make([]Cell, 0, len(t.Columns))
		for i := range header {
			tok := ""
			if i < len(row) {
				tok = row[i]
			}
			c := policy.Coerce(tok)
			if i == key {
				t.Index = append(t.Index, c)
				continue
			}
			cells = append(cells, c)
		}
		t.Rows = append(t.Rows, cells)
	}

	return t, nil
}
