package anomaly

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MissingValuesOption selects how the preprocessor treats missing cells.
type MissingValuesOption string

const (
	// MissingExclude drops every case with a missing analysis value.
	MissingExclude MissingValuesOption = "exclude"
	// MissingInclude substitutes column means. Any value other than
	// MissingExclude behaves this way.
	MissingInclude MissingValuesOption = "include"
)

// IdentificationCriteria selects how many cases are reported as unusual.
type IdentificationCriteria string

const (
	ByPercentage  IdentificationCriteria = "percentage"
	ByFixedNumber IdentificationCriteria = "fixedNumber"
)

// FlexInt holds an integer option that callers may send as a number or a string.
type FlexInt string

// FlexIntOf wraps n.
func FlexIntOf(n int) FlexInt { return FlexInt(strconv.Itoa(n)) }

// FlexIntFrom converts a loosely typed decoded value (YAML, form data) into a FlexInt.
func FlexIntFrom(v interface{}) FlexInt {
	switch t := v.(type) {
	case nil:
		return ""
	case int:
		return FlexIntOf(t)
	case int64:
		return FlexInt(strconv.FormatInt(t, 10))
	case float64:
		return FlexInt(strconv.FormatFloat(t, 'f', -1, 64))
	case string:
		return FlexInt(t)
	default:
		return FlexInt(fmt.Sprint(t))
	}
}

// Int parses the leading integer of the value. Unparsable, zero and negative
// values yield def.
func (f FlexInt) Int(def int) int {
	s := strings.TrimSpace(string(f))
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return def
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if n, err := strconv.Atoi(string(f)); err == nil {
		return []byte(strconv.Itoa(n)), nil
	}
	return json.Marshal(string(f))
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexInt(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected number or string, got %s", data)
	}
	*f = FlexInt(n.String())
	return nil
}

// Options is the validated configuration produced by the unusual-case dialog.
type Options struct {
	PercentageValue        float64                `json:"percentageValue"`
	FixedNumber            FlexInt                `json:"fixedNumber"`
	IdentificationCriteria IdentificationCriteria `json:"identificationCriteria"`
	UseMinimumValue        bool                   `json:"useMinimumValue"`
	CutoffValue            float64                `json:"cutoffValue"`
	MinPeerGroups          int                    `json:"minPeerGroups"`
	MaxPeerGroups          int                    `json:"maxPeerGroups"`
	MissingValuesOption    MissingValuesOption    `json:"missingValuesOption"`
	MaxReasons             FlexInt                `json:"maxReasons"`
}

// DefaultOptions mirrors the dialog's initial state.
func DefaultOptions() Options {
	return Options{
		PercentageValue:        5,
		FixedNumber:            FlexIntOf(10),
		IdentificationCriteria: ByPercentage,
		UseMinimumValue:        true,
		CutoffValue:            2,
		MinPeerGroups:          1,
		MaxPeerGroups:          15,
		MissingValuesOption:    MissingExclude,
		MaxReasons:             FlexIntOf(1),
	}
}

// FixedCount is the parsed fixed number of cases, defaulting to 1.
func (o Options) FixedCount() int { return o.FixedNumber.Int(1) }

// ReasonLimit is the parsed maximum number of reasons per case, defaulting to 1.
func (o Options) ReasonLimit() int { return o.MaxReasons.Int(1) }

// ExcludesMissing reports whether cases with missing values are dropped.
func (o Options) ExcludesMissing() bool { return o.MissingValuesOption == MissingExclude }
