package anomaly

import (
	"fmt"
	"math"

	"peerscan/domain/core"
)

// InvalidInputError describes a malformed request field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return core.ErrInvalidInput }

func invalid(field, format string, args ...interface{}) error {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the request shape before any computation starts.
func (r *Request) Validate() error {
	if r.Data == nil {
		return invalid("data", "must be an array of rows")
	}
	if len(r.Data) == 0 {
		return invalid("data", "must contain at least one row")
	}
	if len(r.AnalysisVariables) == 0 {
		return invalid("analysisVariables", "at least one analysis variable is required")
	}

	seen := make(map[int]string, len(r.AnalysisVariables))
	for i, v := range r.AnalysisVariables {
		if v.ColumnIndex < 0 {
			return invalid(fmt.Sprintf("analysisVariables[%d]", i), "column index %d is negative", v.ColumnIndex)
		}
		if prev, dup := seen[v.ColumnIndex]; dup {
			return invalid(fmt.Sprintf("analysisVariables[%d]", i), "column %d already used by %q", v.ColumnIndex, prev)
		}
		seen[v.ColumnIndex] = v.Name
	}

	if r.CaseIdentifierVariable != nil && r.CaseIdentifierVariable.ColumnIndex < 0 {
		return invalid("caseIdentifierVariable", "column index %d is negative", r.CaseIdentifierVariable.ColumnIndex)
	}

	return r.Options.Validate()
}

// Validate checks option values that would otherwise produce meaningless selections.
func (o Options) Validate() error {
	// Any criteria other than percentage selects a fixed number of cases.
	// Percentages above 100 select every case.
	if o.IdentificationCriteria == ByPercentage && (math.IsNaN(o.PercentageValue) || o.PercentageValue < 0) {
		return invalid("options.percentageValue", "must not be negative, got %v", o.PercentageValue)
	}
	if o.UseMinimumValue && (math.IsNaN(o.CutoffValue) || math.IsInf(o.CutoffValue, 0)) {
		return invalid("options.cutoffValue", "must be a finite number")
	}
	if o.MinPeerGroups < 0 || o.MaxPeerGroups < 0 {
		return invalid("options.minPeerGroups", "peer group bounds must not be negative")
	}
	if o.MaxPeerGroups > 0 && o.MinPeerGroups > o.MaxPeerGroups {
		return invalid("options.minPeerGroups", "minimum %d exceeds maximum %d", o.MinPeerGroups, o.MaxPeerGroups)
	}
	return nil
}
