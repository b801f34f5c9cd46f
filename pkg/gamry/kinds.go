package gamry

import (
	"fmt"
	"strings"
)

// Kind identifies one of the measurement types the instrument writes.
type Kind string

const (
	// KindEIS is a potentiostatic impedance sweep.
	KindEIS Kind = "EIS"
	// KindOCP is open-circuit potential monitoring.
	KindOCP Kind = "OCP"
	// KindLPR is a linear polarization-resistance sweep.
	KindLPR Kind = "LPR"
)

// Markers that delimit tables in the file body.
const (
	PointIndexColumn = "Pt"
	AuxTableMarker   = "OCVCURVE"

	// auxTrailingRows is the distance between the main table's start
	// offset and the end of the auxiliary table. It covers the main
	// header, its marker row, and the metadata row written between the
	// two tables in every sample file seen so far. It is a format
	// assumption and is not re-derived from the file.
	auxTrailingRows = 4
)

// Metadata field keys as written in column 0 of header lines.
const (
	FieldTag        = "TAG"
	FieldDate       = "DATE"
	FieldTime       = "TIME"
	FieldPstat      = "PSTAT"
	FieldFreqInit   = "FREQINIT"
	FieldFreqFinal  = "FREQFINAL"
	FieldPtsPerDec  = "PTSPERDEC"
	FieldACAmp      = "VACAC"
	FieldEOC        = "EOC"
	FieldSampleTime = "SAMPLETIME"
	FieldVInit      = "VINIT"
	FieldVFinal     = "VFINAL"
	FieldScanRate   = "SCANRATE"
	FieldIRComp     = "IRCOMP"
)

// Field configures one whitelisted metadata key.
type Field struct {
	// Key is the token that must appear in column 0.
	Key string
	// Column is the token position holding the value.
	Column int
	// Required fields must be present after a scan.
	Required bool
}

// KindSpec is the per-kind configuration for the scanner and extractor.
type KindSpec struct {
	Kind   Kind
	Fields []Field

	// Tags lists the TAG values the instrument writes for this kind.
	Tags []string

	// Units maps main-table column names to their expected unit label.
	// Mismatches are reported as warnings only.
	Units map[string]string

	// AuxTable enables materialization of the OCVCURVE sub-table.
	AuxTable bool
}

func field(key string, required bool) Field {
	return Field{Key: key, Column: 2, Required: required}
}

var tagField = Field{Key: FieldTag, Column: 1, Required: true}

// EIS is the impedance sweep layout.
var EIS = KindSpec{
	Kind: KindEIS,
	Fields: []Field{
		tagField,
		field(FieldDate, true),
		field(FieldTime, true),
		field(FieldPstat, false),
		field(FieldFreqInit, false),
		field(FieldFreqFinal, false),
		field(FieldPtsPerDec, false),
		field(FieldACAmp, false),
		field(FieldEOC, true),
	},
	Tags: []string{"EISPOT"},
	Units: map[string]string{
		"Time":    "s",
		"Freq":    "Hz",
		"Zreal":   "ohm",
		"Zimag":   "ohm",
		"Zsig":    "V",
		"Zmod":    "ohm",
		"Idc":     "A",
		"Vdc":     "V",
		"IERange": "#",
	},
}

// OCP is the open-circuit monitoring layout.
var OCP = KindSpec{
	Kind: KindOCP,
	Fields: []Field{
		tagField,
		field(FieldDate, true),
		field(FieldTime, true),
		field(FieldPstat, false),
		field(FieldSampleTime, false),
	},
	Tags: []string{"CORPOT"},
	Units: map[string]string{
		"T":    "s",
		"Vf":   "V vs. Ref.",
		"Vm":   "V",
		"Ach":  "V",
		"Over": "bits",
		"Temp": "deg C",
	},
}

// LPR is the polarization-resistance sweep layout. It is the only kind
// that carries the OCVCURVE sub-table.
var LPR = KindSpec{
	Kind: KindLPR,
	Fields: []Field{
		tagField,
		field(FieldDate, true),
		field(FieldTime, true),
		field(FieldPstat, false),
		field(FieldVInit, false),
		field(FieldVFinal, false),
		field(FieldScanRate, false),
		field(FieldSampleTime, false),
		field(FieldIRComp, false),
		field(FieldEOC, true),
	},
	Tags: []string{"LPR", "POLRES"},
	Units: map[string]string{
		"T":       "s",
		"Vf":      "V vs. Ref.",
		"Im":      "A",
		"Vu":      "V",
		"Sig":     "V",
		"Ach":     "V",
		"IERange": "#",
		"Over":    "bits",
		"Temp":    "deg C",
	},
	AuxTable: true,
}

// Kinds returns every known layout in classification order.
func Kinds() []KindSpec {
	return []KindSpec{EIS, OCP, LPR}
}

// SpecFor returns the layout for a kind.
func SpecFor(k Kind) (KindSpec, error) {
	for _, spec := range Kinds() {
		if spec.Kind == k {
			return spec, nil
		}
	}
	return KindSpec{}, fmt.Errorf("unknown measurement kind %q (use EIS, OCP, or LPR)", string(k))
}

// ParseKind converts a case-insensitive name to a Kind.
func ParseKind(s string) (Kind, error) {
	spec, err := SpecFor(Kind(strings.ToUpper(strings.TrimSpace(s))))
	if err != nil {
		return "", err
	}
	return spec.Kind, nil
}

// HasTag reports whether tag is one of the TAG values for this kind.
func (s KindSpec) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// lookup returns the field configured for key.
func (s KindSpec) lookup(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// checkUnits compares a parsed unit row against the advisory unit list.
func (s KindSpec) checkUnits(header, units []string) []string {
	var warnings []string
	for i, name := range header {
		want, ok := s.Units[name]
		if !ok {
			continue
		}
		got := ""
		if i < len(units) {
			got = units[i]
		}
		if got != want {
			warnings = append(warnings, fmt.Sprintf("column %s: unit %q, expected %q", name, got, want))
		}
	}
	return warnings
}
