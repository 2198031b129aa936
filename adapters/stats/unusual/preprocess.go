package unusual

import (
	"fmt"

	"peerscan/domain/anomaly"

	"gonum.org/v1/gonum/stat"
)

// Preprocess turns raw rows into numeric analysis vectors.
//
// With MissingExclude a row is dropped when any analysis cell is missing; a
// surviving cell that is not numeric is an input error. Any other option keeps
// every row and substitutes the column mean for missing or non-numeric cells.
func Preprocess(rows []anomaly.RawRow, vars []anomaly.AnalysisVariable, option anomaly.MissingValuesOption) (*anomaly.ProcessedDataset, error) {
	if rows == nil {
		return nil, &anomaly.InvalidInputError{Field: "data", Reason: "must be an array of rows"}
	}

	means := ColumnMeans(rows, vars)
	ds := &anomaly.ProcessedDataset{
		Rows:            make([][]float64, 0, len(rows)),
		OriginalIndices: make([]int, 0, len(rows)),
		VariableMeans:   means,
	}

	if option == anomaly.MissingExclude {
		for i, row := range rows {
			if hasMissing(row, vars) {
				continue
			}
			vec := make([]float64, len(vars))
			for j, v := range vars {
				cell := row.At(v.ColumnIndex)
				f, ok := cell.Float()
				if !ok {
					return nil, &anomaly.InvalidInputError{
						Field:  fmt.Sprintf("data[%d][%d]", i, v.ColumnIndex),
						Reason: fmt.Sprintf("value %q of %s is not numeric", cell.String(), v.Name),
					}
				}
				vec[j] = f
			}
			ds.Rows = append(ds.Rows, vec)
			ds.OriginalIndices = append(ds.OriginalIndices, i)
		}
		return ds, nil
	}

	for i, row := range rows {
		vec := make([]float64, len(vars))
		for j, v := range vars {
			if f, ok := row.At(v.ColumnIndex).Float(); ok {
				vec[j] = f
			} else {
				vec[j] = means[j]
			}
		}
		ds.Rows = append(ds.Rows, vec)
		ds.OriginalIndices = append(ds.OriginalIndices, i)
	}
	return ds, nil
}

// ColumnMeans averages each analysis variable over its numeric cells.
// A column without numeric cells has mean 0.
func ColumnMeans(rows []anomaly.RawRow, vars []anomaly.AnalysisVariable) []float64 {
	means := make([]float64, len(vars))
	values := make([]float64, 0, len(rows))
	for j, v := range vars {
		values = values[:0]
		for _, row := range rows {
			if f, ok := row.At(v.ColumnIndex).Float(); ok {
				values = append(values, f)
			}
		}
		if len(values) > 0 {
			means[j] = stat.Mean(values, nil)
		}
	}
	return means
}

func hasMissing(row anomaly.RawRow, vars []anomaly.AnalysisVariable) bool {
	for _, v := range vars {
		if row.At(v.ColumnIndex).IsMissing() {
			return true
		}
	}
	return false
}
