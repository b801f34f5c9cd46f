package gamry

import (
	"errors"
	"fmt"
)

// ErrMissingTable is returned when no main data table header is found.
var ErrMissingTable = errors.New("main data table not found")

// MissingFieldError reports a required metadata key that never appeared.
type MissingFieldError struct {
	Key string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("required field %s not found", e.Key)
}

// MissingTableError reports that no "Pt" header row for the main table
// was found.
type MissingTableError struct {
	Rows int // rows scanned
}

func (e *MissingTableError) Error() string {
	return fmt.Sprintf("%v after scanning %d rows", ErrMissingTable, e.Rows)
}

// Is lets errors.Is match ErrMissingTable.
func (e *MissingTableError) Is(target error) bool {
	return target == ErrMissingTable
}

// FieldOffsetError reports a header line too short for its field's
// configured column.
type FieldOffsetError struct {
	Key    string
	Column int
	Row    int
	Width  int
}

func (e *FieldOffsetError) Error() string {
	return fmt.Sprintf("field %s on row %d: column %d out of range (row has %d tokens)",
		e.Key, e.Row, e.Column, e.Width)
}

// ColumnError reports a header row that cannot form a table.
type ColumnError struct {
	Column string
	Reason string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %q: %s", e.Column, e.Reason)
}

// ParseError wraps a structural failure with the file it came from.
type ParseError struct {
	File string
	Kind Kind
	Err  error
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("parsing %s data: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("parsing %s file %s: %v", e.Kind, e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
