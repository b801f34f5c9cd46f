package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/ccollicutt/corrosion/pkg/gamry"
)

// TimestampParser builds measurement start times from the DATE and TIME
// header fields.
type TimestampParser struct {
	layout string
	loc    *time.Location
}

// NewTimestampParser creates a parser for DATE+" "+TIME using layout.
// A nil location means UTC.
func NewTimestampParser(layout string, loc *time.Location) *TimestampParser {
	if loc == nil {
		loc = time.UTC
	}
	return &TimestampParser{
		layout: layout,
		loc:    loc,
	}
}

// Parse joins date and clock with a space and parses the result.
func (p *TimestampParser) Parse(date, clock string) (time.Time, error) {
	s := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	ts, err := time.ParseInLocation(p.layout, s, p.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return ts, nil
}

// Measurement returns the start time recorded in a measurement header.
func (p *TimestampParser) Measurement(m *gamry.Measurement) (time.Time, error) {
	date, clock := m.Field(gamry.FieldDate), m.Field(gamry.FieldTime)
	if date == "" || clock == "" {
		return time.Time{}, fmt.Errorf("missing %s or %s field", gamry.FieldDate, gamry.FieldTime)
	}
	return p.Parse(date, clock)
}
