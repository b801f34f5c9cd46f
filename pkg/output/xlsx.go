package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet names written by the XLSX formatter.
const (
	SeriesSheet = "Series"
	FilesSheet  = "Files"
)

const sheetTimeLayout = "2006-01-02 15:04:05"

// XLSXFormatter writes reports as an Excel workbook.
type XLSXFormatter struct {
	opts FormatOptions
}

// NewXLSXFormatter creates a new workbook formatter with the given options.
func NewXLSXFormatter(opts FormatOptions) *XLSXFormatter {
	return &XLSXFormatter{opts: opts}
}

// Name returns the format name.
func (f *XLSXFormatter) Name() string {
	return "xlsx"
}

// Format writes a workbook with one row per series point on the Series
// sheet and one row per file on the Files sheet.
func (f *XLSXFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", SeriesSheet); err != nil {
		return fmt.Errorf("creating %s sheet: %w", SeriesSheet, err)
	}
	if err := f.writeSeries(book, report); err != nil {
		return err
	}

	if _, err := book.NewSheet(FilesSheet); err != nil {
		return fmt.Errorf("creating %s sheet: %w", FilesSheet, err)
	}
	if err := f.writeFiles(book, report); err != nil {
		return err
	}

	book.SetActiveSheet(0)
	if err := book.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func (f *XLSXFormatter) writeSeries(book *excelize.File, report *Report) error {
	rows := [][]any{{"Hours", "Timestamp", "Resistance (ohm)", "R2", "Half-width", "OCP (V)", "File"}}
	for _, p := range report.Series {
		rows = append(rows, []any{
			p.Hours,
			p.Timestamp.Format(sheetTimeLayout),
			p.Resistance,
			p.RSquared,
			p.HalfWidth,
			p.OCP,
			p.Path,
		})
	}
	return setRows(book, SeriesSheet, rows)
}

func (f *XLSXFormatter) writeFiles(book *excelize.File, report *Report) error {
	header := []any{"File", "Kind", "Timestamp", "Hours", "Rows", "Resistance (ohm)", "Stage", "Error"}
	if f.opts.Verbose {
		header = append(header, "Warnings")
	}

	rows := [][]any{header}
	for _, fr := range report.Files {
		var ts, hours, rp any
		if fr.Timestamp != nil {
			ts = fr.Timestamp.Format(sheetTimeLayout)
		}
		if fr.Hours != nil {
			hours = *fr.Hours
		}
		if fr.Fit != nil {
			rp = fr.Fit.Slope
		}
		row := []any{fr.Path, string(fr.Kind), ts, hours, fr.Rows, rp, string(fr.Stage), fr.Error}
		if f.opts.Verbose {
			row = append(row, strings.Join(fr.Warnings, "; "))
		}
		rows = append(rows, row)
	}
	return setRows(book, FilesSheet, rows)
}

func setRows(book *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
