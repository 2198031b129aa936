package ports

import (
	"context"
	"io"

	"peerscan/domain/anomaly"
	"peerscan/domain/report"
)

// Dataset is a tabular input: a header row plus data rows.
type Dataset struct {
	Headers []string
	Rows    []anomaly.RawRow
}

// DatasetReader loads tabular data from a file.
type DatasetReader interface {
	ReadDataset(ctx context.Context, path string) (*Dataset, error)
}

// ReportExporter writes report tables to a workbook.
type ReportExporter interface {
	WriteReport(w io.Writer, tables []*report.Table) error
}
