package anomaly

import (
	"peerscan/domain/report"
)

// AnalysisVariable references one data column under analysis.
type AnalysisVariable struct {
	ColumnIndex int    `json:"columnIndex"`
	Name        string `json:"name"`
}

// ProcessedDataset holds numeric analysis vectors, one per surviving case.
// Vectors are ordered like the analysis variables, not like the raw columns.
type ProcessedDataset struct {
	Rows            [][]float64 `json:"processedRows"`
	OriginalIndices []int       `json:"originalIndices"`
	VariableMeans   []float64   `json:"variableMeans"`
}

// Len returns the number of processed cases.
func (d *ProcessedDataset) Len() int { return len(d.Rows) }

// CaseNumber returns the 1-based position of processed row i in the caller's data.
func (d *ProcessedDataset) CaseNumber(i int) int { return d.OriginalIndices[i] + 1 }

// PeerGroupModel is the clustering of processed rows into peer groups.
type PeerGroupModel struct {
	K           int         `json:"k"`
	Assignments []int       `json:"assignments"` // 1-based, aligned with ProcessedDataset.Rows
	Sizes       []int       `json:"sizes"`
	Percentages []float64   `json:"percentages"`
	Means       [][]float64 `json:"means"`   // [peer group][variable]
	StdDevs     [][]float64 `json:"stdDevs"` // [peer group][variable]
	Iterations  int         `json:"iterations"`
	Converged   bool        `json:"converged"`
}

// PeerOf returns the 1-based peer group of processed row i.
func (m *PeerGroupModel) PeerOf(i int) int { return m.Assignments[i] }

// Total returns the number of clustered cases.
func (m *PeerGroupModel) Total() int {
	total := 0
	for _, s := range m.Sizes {
		total += s
	}
	return total
}

// ReasonEntry is one variable's contribution to a case's anomaly index.
type ReasonEntry struct {
	VariableIndex int     `json:"variableIndex"`
	ColumnIndex   int     `json:"columnIndex"`
	Impact        float64 `json:"impact"`
	Value         float64 `json:"value"`
	Norm          float64 `json:"norm"`
}

// AnomalyRecord scores one processed row. Reasons are sorted by descending impact.
type AnomalyRecord struct {
	Index   float64       `json:"index"`
	Reasons []ReasonEntry `json:"reasons"`
}

// UnusualCase is a selected record with its reasons truncated to the configured depth.
type UnusualCase struct {
	RowIndex     int           `json:"rowIndex"`
	AnomalyIndex float64       `json:"anomalyIndex"`
	Reasons      []ReasonEntry `json:"reasons"`
}

// Result is the payload of a successful run.
type Result struct {
	Tables []*report.Table `json:"tables"`
}

// Status tags a Response.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Request is the single message a caller posts to the worker.
type Request struct {
	Data                   []RawRow           `json:"data"`
	AnalysisVariables      []AnalysisVariable `json:"analysisVariables"`
	CaseIdentifierVariable *AnalysisVariable  `json:"caseIdentifierVariable"`
	Options                Options            `json:"options"`
}

// Response is the single message the worker posts back.
type Response struct {
	Status Status  `json:"status"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Success wraps a result.
func Success(result *Result) Response {
	return Response{Status: StatusSuccess, Result: result}
}

// Failure wraps an error message.
func Failure(err error) Response {
	return Response{Status: StatusError, Error: err.Error()}
}

// OK reports whether the response carries a result.
func (r Response) OK() bool { return r.Status == StatusSuccess }
