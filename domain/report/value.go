package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// ValueKind tags a table cell.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindNumber
	KindString
)

// Value is a table cell: a number, a string, or null.
type Value struct {
	kind ValueKind
	num  float64
	str  string
}

// Null returns an empty cell.
func Null() Value { return Value{} }

// Num returns a numeric cell. NaN and infinities become null.
func Num(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null()
	}
	return Value{kind: KindNumber, num: v}
}

// Int returns a numeric cell holding n.
func Int(n int) Value { return Value{kind: KindNumber, num: float64(n)} }

// Str returns a string cell.
func Str(s string) Value { return Value{kind: KindString, str: s} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

// Float returns the numeric content, if any.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// String renders the cell for text output; null renders empty.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	}
	return ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return []byte(strconv.FormatFloat(v.num, 'f', -1, 64)), nil
	case KindString:
		return json.Marshal(v.str)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Null()
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Str(s)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return err
		}
		*v = Num(f)
	}
	return nil
}
