package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"peerscan/domain/anomaly"
	"peerscan/domain/core"
)

// ResponsePayload stores a worker response as a JSON text column.
type ResponsePayload struct {
	anomaly.Response
}

// Value implements driver.Valuer interface
func (p ResponsePayload) Value() (driver.Value, error) {
	b, err := json.Marshal(p.Response)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface
func (p *ResponsePayload) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		p.Response = anomaly.Response{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into response payload", value)
	}
	if len(b) == 0 {
		p.Response = anomaly.Response{}
		return nil
	}
	return json.Unmarshal(b, &p.Response)
}

// AnalysisRun is one persisted invocation of the worker.
type AnalysisRun struct {
	ID           core.RunID      `json:"id" db:"id"`
	Status       anomaly.Status  `json:"status" db:"status"`
	Fingerprint  core.Hash       `json:"fingerprint" db:"fingerprint"`
	RowCount     int             `json:"row_count" db:"row_count"`
	CaseCount    int             `json:"case_count" db:"case_count"`
	UnusualCount int             `json:"unusual_count" db:"unusual_count"`
	Error        sql.NullString  `json:"-" db:"error_message"`
	DurationMs   int64           `json:"duration_ms" db:"duration_ms"`
	Response     ResponsePayload `json:"-" db:"response"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// NewAnalysisRun records the outcome of a request.
func NewAnalysisRun(req *anomaly.Request, resp anomaly.Response, duration time.Duration) (*AnalysisRun, error) {
	fp, err := core.Fingerprint(req)
	if err != nil {
		return nil, err
	}
	run := &AnalysisRun{
		ID:          core.NewRunID(),
		Status:      resp.Status,
		Fingerprint: fp,
		RowCount:    len(req.Data),
		DurationMs:  duration.Milliseconds(),
		Response:    ResponsePayload{Response: resp},
		CreatedAt:   time.Now().UTC(),
	}
	if resp.Error != "" {
		run.Error = sql.NullString{String: resp.Error, Valid: true}
	}
	if resp.Result != nil {
		run.CaseCount, run.UnusualCount = countCases(resp.Result)
	}
	return run, nil
}

// ErrorMessage returns the stored error, if any.
func (r *AnalysisRun) ErrorMessage() string {
	if r.Error.Valid {
		return r.Error.String
	}
	return ""
}

// countCases reads the processed count from the case processing summary
// and the number of unusual cases from the anomaly index list.
func countCases(result *anomaly.Result) (processed, unusual int) {
	if len(result.Tables) > 1 {
		unusual = len(result.Tables[1].Rows)
	}
	if len(result.Tables) > 0 {
		summary := result.Tables[0]
		if n := len(summary.Rows); n > 0 {
			if f, ok := summary.Cell(n-1, "N").Float(); ok {
				processed = int(f)
			}
		}
	}
	return processed, unusual
}

// RunSummary is the list view of a run.
type RunSummary struct {
	ID           core.RunID     `json:"id"`
	Status       anomaly.Status `json:"status"`
	Fingerprint  string         `json:"fingerprint"`
	RowCount     int            `json:"row_count"`
	CaseCount    int            `json:"case_count"`
	UnusualCount int            `json:"unusual_count"`
	Error        string         `json:"error,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Summary drops the stored response.
func (r *AnalysisRun) Summary() RunSummary {
	return RunSummary{
		ID:           r.ID,
		Status:       r.Status,
		Fingerprint:  r.Fingerprint.Short(),
		RowCount:     r.RowCount,
		CaseCount:    r.CaseCount,
		UnusualCount: r.UnusualCount,
		Error:        r.ErrorMessage(),
		DurationMs:   r.DurationMs,
		CreatedAt:    r.CreatedAt,
	}
}
