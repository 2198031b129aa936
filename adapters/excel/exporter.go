package excel

import (
	"fmt"
	"io"
	"strings"

	"peerscan/domain/anomaly"
	"peerscan/domain/report"
	"peerscan/ports"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// Exporter writes report tables to xlsx workbooks, one sheet per table.
type Exporter struct{}

// NewExporter creates an exporter
func NewExporter() *Exporter { return &Exporter{} }

var _ ports.ReportExporter = (*Exporter)(nil)

// WriteReport writes one sheet per table, named after the table title.
// Grouped headers take two rows with the group label merged across its children.
func (e *Exporter) WriteReport(w io.Writer, tables []*report.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if len(tables) == 0 {
		_, err := f.WriteTo(w)
		return err
	}

	used := make(map[string]bool, len(tables))
	for i, t := range tables {
		name := sheetName(t.Title, used)
		if i == 0 {
			if err := f.SetSheetName(DefaultSheet, name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
		if err := writeTable(f, name, t); err != nil {
			return fmt.Errorf("write %q: %w", t.Title, err)
		}
	}
	f.SetActiveSheet(0)

	_, err := f.WriteTo(w)
	return err
}

func writeTable(f *excelize.File, sheet string, t *report.Table) error {
	row := 1
	if t.HasGroups() {
		col := 1
		for _, h := range t.ColumnHeaders {
			span := len(h.Children)
			if span == 0 {
				span = 1
			} else {
				if err := setCell(f, sheet, col, row, h.Header); err != nil {
					return err
				}
				if span > 1 {
					top, _ := excelize.CoordinatesToCellName(col, row)
					bottom, _ := excelize.CoordinatesToCellName(col+span-1, row)
					if err := f.MergeCell(sheet, top, bottom); err != nil {
						return err
					}
				}
			}
			col += span
		}
		row++
	}

	keys := t.LeafHeaders()
	for j, k := range keys {
		if err := setCell(f, sheet, j+1, row, k); err != nil {
			return err
		}
	}
	row++

	for _, r := range t.Rows {
		for j, k := range keys {
			v, ok := r.Get(k)
			if !ok || v.IsNull() {
				continue
			}
			var value interface{}
			if num, isNum := v.Float(); isNum {
				value = num
			} else {
				value = v.String()
			}
			if err := setCell(f, sheet, j+1, row, value); err != nil {
				return err
			}
		}
		row++
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}

// sheetName derives a unique, valid worksheet name from a table title.
func sheetName(title string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "Table"
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	base := name
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		cut := base
		if len(cut)+len(suffix) > maxSheetName {
			cut = cut[:maxSheetName-len(suffix)]
		}
		name = cut + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

// WriteDataset writes headers and rows to the default sheet.
func WriteDataset(w io.Writer, headers []string, rows []anomaly.RawRow) error {
	f := excelize.NewFile()
	defer f.Close()

	for j, h := range headers {
		if err := setCell(f, DefaultSheet, j+1, 1, h); err != nil {
			return err
		}
	}
	for i, row := range rows {
		for j, cell := range row {
			if cell.IsMissing() {
				continue
			}
			var value interface{} = cell.String()
			if cell.Kind() == anomaly.CellNumber {
				value, _ = cell.Float()
			}
			if err := setCell(f, DefaultSheet, j+1, i+2, value); err != nil {
				return err
			}
		}
	}

	_, err := f.WriteTo(w)
	return err
}
