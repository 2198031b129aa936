// Package excel reads tabular datasets from xlsx or csv files and writes
// report tables and datasets back to xlsx workbooks.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"peerscan/domain/anomaly"
	"peerscan/internal"
	"peerscan/ports"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet datasets are read from and written to.
const DefaultSheet = "Sheet1"

// DataReader handles reading Excel and CSV files
type DataReader struct {
	sheet  string
	logger *internal.Logger
}

// NewDataReader creates a reader for the default sheet
func NewDataReader(logger *internal.Logger) *DataReader {
	return &DataReader{sheet: DefaultSheet, logger: logger.WithComponent("excel")}
}

// WithSheet selects another worksheet for xlsx input
func (r *DataReader) WithSheet(name string) *DataReader {
	r.sheet = name
	return r
}

var _ ports.DatasetReader = (*DataReader)(nil)

// ReadDataset reads a header row and data rows. The file type follows the extension.
func (r *DataReader) ReadDataset(ctx context.Context, path string) (*ports.Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("dataset file not found: %s: %w", path, err)
	}

	start := time.Now()
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx", ".xlsm":
		rows, err = r.readSheet(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s must have a header row and at least one data row", filepath.Base(path))
	}

	ds := ParseRows(rows)
	r.logger.Debug("read %s in %s (%d columns, %d rows)", filepath.Base(path), time.Since(start), len(ds.Headers), len(ds.Rows))
	return ds, nil
}

func (r *DataReader) readSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// ParseRows turns string rows (header first) into a dataset. Numeric text
// becomes a number cell, blank text a missing cell, anything else stays text.
// Short rows are padded with missing cells up to the header width.
func ParseRows(rows [][]string) *ports.Dataset {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	data := make([]anomaly.RawRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		width := len(headers)
		if len(row) > width {
			width = len(row)
		}
		raw := make(anomaly.RawRow, width)
		for j := range raw {
			if j >= len(row) {
				raw[j] = anomaly.Missing()
				continue
			}
			raw[j] = parseCell(row[j])
		}
		data = append(data, raw)
	}
	return &ports.Dataset{Headers: headers, Rows: data}
}

func parseCell(s string) anomaly.Cell {
	t := strings.TrimSpace(s)
	if t == "" {
		return anomaly.Missing()
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return anomaly.Number(f)
	}
	return anomaly.Text(t)
}

// ResolveVariables maps column names to analysis variables, in the order given.
func ResolveVariables(headers []string, names []string) ([]anomaly.AnalysisVariable, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	vars := make([]anomaly.AnalysisVariable, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		col, ok := index[name]
		if !ok {
			return nil, &anomaly.InvalidInputError{Field: "variables", Reason: fmt.Sprintf("column %q not found", name)}
		}
		vars = append(vars, anomaly.AnalysisVariable{ColumnIndex: col, Name: name})
	}
	return vars, nil
}
