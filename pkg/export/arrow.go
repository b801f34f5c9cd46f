// Package export writes extracted measurement tables in columnar and
// delimited formats for downstream analysis tools.
package export

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"

	"github.com/ccollicutt/corrosion/pkg/gamry"
)

// UnitMetadataKey is the Arrow field metadata key holding a column's unit.
const UnitMetadataKey = "unit"

// KindMetadataKey is the Arrow schema metadata key holding the measurement kind.
const KindMetadataKey = "kind"

// Schema builds the Arrow schema for a measurement's main table. The point
// index is an int64 column; every other column is float64. Header fields
// are attached as schema metadata.
func Schema(m *gamry.Measurement) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(m.Table.Columns)+1)
	fields = append(fields, arrow.Field{
		Name:     gamry.PointIndexColumn,
		Type:     arrow.PrimitiveTypes.Int64,
		Nullable: true,
		Metadata: unitMetadata(m.Unit(gamry.PointIndexColumn)),
	})
	for _, name := range m.Table.Columns {
		fields = append(fields, arrow.Field{
			Name:     name,
			Type:     arrow.PrimitiveTypes.Float64,
			Nullable: true,
			Metadata: unitMetadata(m.Unit(name)),
		})
	}

	keys := make([]string, 0, len(m.Metadata.Fields)+1)
	for k := range m.Metadata.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		values = append(values, m.Metadata.Fields[k])
	}
	keys = append(keys, KindMetadataKey)
	values = append(values, string(m.Kind))

	md := arrow.NewMetadata(keys, values)
	return arrow.NewSchema(fields, &md)
}

func unitMetadata(unit string) arrow.Metadata {
	if unit == "" {
		return arrow.Metadata{}
	}
	return arrow.NewMetadata([]string{UnitMetadataKey}, []string{unit})
}

// WriteArrow writes the measurement's table as a single-record Arrow IPC stream.
// Sentinel and missing cells become nulls.
func WriteArrow(w io.Writer, m *gamry.Measurement) error {
	if m == nil || m.Table == nil {
		return fmt.Errorf("arrow export: no table")
	}

	mem := memory.NewGoAllocator()
	schema := Schema(m)

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	index := builder.Field(0).(*array.Int64Builder)
	for _, c := range m.Table.Index {
		switch {
		case c.Kind == gamry.Int:
			index.Append(c.I)
		case c.Kind == gamry.Float && c.F == math.Trunc(c.F):
			// OCVCURVE rows keep their index as a float
			index.Append(int64(c.F))
		default:
			index.AppendNull()
		}
	}

	for j := range m.Table.Columns {
		col := builder.Field(j + 1).(*array.Float64Builder)
		for _, row := range m.Table.Rows {
			if v, ok := row[j].Float64(); ok {
				col.Append(v)
			} else {
				col.AppendNull()
			}
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := writer.Write(record); err != nil {
		_ = writer.Close()
		return fmt.Errorf("arrow export: writing record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("arrow export: closing stream: %w", err)
	}
	return nil
}
