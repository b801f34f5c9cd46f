package gamry

// Section locates one table inside a Grid.
type Section struct {
	// Header holds the column names, starting with the point index.
	Header []string
	// Units is the unit-label row written below the header.
	Units []string
	// Start and End bound the data rows, End exclusive.
	Start int
	End   int
}

// Layout is the result of scanning a Grid.
type Layout struct {
	Fields map[string]string
	Main   Section
	// Aux is nil when the file has no OCVCURVE sub-table.
	Aux *Section
}

// Scan walks the grid once, collecting the metadata fields configured in
// spec and locating the auxiliary and main tables.
//
// A "Pt" row directly below an OCVCURVE row starts the auxiliary table
// and scanning continues; any other "Pt" row starts the main table and
// ends the scan.
func Scan(grid Grid, spec KindSpec) (*Layout, error) {
	layout := &Layout{Fields: make(map[string]string)}

	var auxStart int
	var auxHeader []string
	haveAux, haveMain := false, false

	for i, row := range grid {
		key := first(row)

		if f, ok := spec.lookup(key); ok {
			if f.Column >= len(row) {
				return nil, &FieldOffsetError{Key: key, Column: f.Column, Row: i, Width: len(row)}
			}
			layout.Fields[key] = row[f.Column]
		}

		if key != PointIndexColumn {
			continue
		}

		if first(grid.Row(i-1)) == AuxTableMarker {
			auxStart = i + 2
			auxHeader = row
			haveAux = true
			continue
		}

		layout.Main = Section{Header: row, Start: i + 2}
		haveMain = true
		break
	}

	if !haveMain {
		return nil, &MissingTableError{Rows: len(grid)}
	}

	for _, f := range spec.Fields {
		if !f.Required {
			continue
		}
		if _, ok := layout.Fields[f.Key]; !ok {
			return nil, &MissingFieldError{Key: f.Key}
		}
	}

	layout.Main.Units = grid.Row(layout.Main.Start - 1)
	layout.Main.Start = clamp(layout.Main.Start, 0, len(grid))
	layout.Main.End = len(grid)

	if haveAux {
		start := clamp(auxStart, 0, len(grid))
		end := clamp(layout.Main.Start-auxTrailingRows, start, len(grid))
		layout.Aux = &Section{
			Header: auxHeader,
			Units:  grid.Row(auxStart - 1),
			Start:  start,
			End:    end,
		}
	}

	return layout, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
