package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ccollicutt/corrosion/pkg/gamry"
)

// WriteTSV writes the main table as tab-separated text: a header row, the
// unit row, then one line per data row. Cells are rendered the way the
// instrument writes them, so sentinels keep their dot runs.
func WriteTSV(w io.Writer, m *gamry.Measurement) error {
	if m == nil || m.Table == nil {
		return fmt.Errorf("tsv export: no table")
	}

	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header := append([]string{gamry.PointIndexColumn}, m.Table.Columns...)
	units := make([]string, len(header))
	for i, name := range header {
		units[i] = m.Unit(name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("tsv export: %w", err)
	}
	if err := cw.Write(units); err != nil {
		return fmt.Errorf("tsv export: %w", err)
	}

	record := make([]string, len(header))
	for i, row := range m.Table.Rows {
		record[0] = m.Table.Index[i].String()
		for j, c := range row {
			record[j+1] = c.String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("tsv export: row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("tsv export: %w", err)
	}
	return nil
}
