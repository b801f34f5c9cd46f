// Package gamry extracts typed tables and header metadata from the
// tab-delimited measurement files written by Gamry potentiostats.
package gamry

import (
	"errors"
	"fmt"
	"os"
)

// Metadata is the header record of one measurement file.
type Metadata struct {
	// Fields holds the whitelisted header values by key.
	Fields map[string]string `json:"fields"`
	// Header is the column-name row of the main table, point index
	// included.
	Header []string `json:"header"`
	// Units is the unit-label row of the main table, aligned with Header.
	Units []string `json:"units,omitempty"`
	// Aux is the OCVCURVE sub-table, present only for LPR files that
	// carry one.
	Aux *Table `json:"aux,omitempty"`
	// AuxHeader is the column-name row of the sub-table.
	AuxHeader []string `json:"aux_header,omitempty"`
	// AuxUnits is the unit-label row of the sub-table.
	AuxUnits []string `json:"aux_units,omitempty"`
}

// Measurement is the extraction result for one file.
type Measurement struct {
	Kind     Kind     `json:"kind"`
	Table    *Table   `json:"table"`
	Metadata Metadata `json:"metadata"`
	// Warnings lists unit mismatches against the kind's expected units.
	Warnings []string `json:"warnings,omitempty"`
}

// Field returns a metadata value, or "" if absent.
func (m *Measurement) Field(key string) string {
	return m.Metadata.Fields[key]
}

// Unit returns the unit label of a main-table column, or "" if unknown.
func (m *Measurement) Unit(column string) string {
	for i, name := range m.Metadata.Header {
		if name == column && i < len(m.Metadata.Units) {
			return m.Metadata.Units[i]
		}
	}
	return ""
}

// AuxMeasurement returns the OCVCURVE sub-table as a measurement of its
// own, sharing this measurement's header fields. It returns nil if the
// file had no sub-table.
func (m *Measurement) AuxMeasurement() *Measurement {
	if m.Metadata.Aux == nil {
		return nil
	}
	return &Measurement{
		Kind:  m.Kind,
		Table: m.Metadata.Aux,
		Metadata: Metadata{
			Fields: m.Metadata.Fields,
			Header: m.Metadata.AuxHeader,
			Units:  m.Metadata.AuxUnits,
		},
	}
}

// Extract parses the contents of one file using the given layout.
// Structural failures are returned as *ParseError.
func Extract(data []byte, spec KindSpec) (*Measurement, error) {
	grid := Tokenize(data)

	layout, err := Scan(grid, spec)
	if err != nil {
		return nil, &ParseError{Kind: spec.Kind, Err: err}
	}

	main := layout.Main
	table, err := Materialize(grid[main.Start:main.End], main.Header, MainPolicy)
	if err != nil {
		return nil, &ParseError{Kind: spec.Kind, Err: fmt.Errorf("main table: %w", err)}
	}

	m := &Measurement{
		Kind:  spec.Kind,
		Table: table,
		Metadata: Metadata{
			Fields: layout.Fields,
			Header: main.Header,
			Units:  main.Units,
		},
		Warnings: spec.checkUnits(main.Header, main.Units),
	}

	if spec.AuxTable && layout.Aux != nil {
		aux := layout.Aux
		auxTable, err := Materialize(grid[aux.Start:aux.End], aux.Header, AuxPolicy)
		if err != nil {
			return nil, &ParseError{Kind: spec.Kind, Err: fmt.Errorf("%s table: %w", AuxTableMarker, err)}
		}
		m.Metadata.Aux = auxTable
		m.Metadata.AuxHeader = aux.Header
		m.Metadata.AuxUnits = aux.Units
	}

	return m, nil
}

// ExtractFile reads and extracts one file. Errors carry the file path.
func ExtractFile(path string, spec KindSpec) (*Measurement, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- measurement paths come from the user's config
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	m, err := Extract(data, spec)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.File = path
			return nil, pe
		}
		return nil, fmt.Errorf("extracting %s: %w", path, err)
	}
	return m, nil
}
