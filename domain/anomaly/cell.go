package anomaly

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CellKind tags the content of a raw data cell.
type CellKind uint8

const (
	CellMissing CellKind = iota
	CellNumber
	CellText
)

// Cell is one raw tabular value: a number, a string (possibly numeric), or missing.
type Cell struct {
	kind CellKind
	num  float64
	text string
}

// Missing returns an absent cell.
func Missing() Cell { return Cell{kind: CellMissing} }

// Number returns a numeric cell.
func Number(v float64) Cell { return Cell{kind: CellNumber, num: v} }

// Text returns a string cell. Numeric strings stay strings until coerced.
func Text(s string) Cell { return Cell{kind: CellText, text: s} }

// Kind reports what the cell holds.
func (c Cell) Kind() CellKind { return c.kind }

// IsMissing is true for absent cells and empty strings.
func (c Cell) IsMissing() bool {
	return c.kind == CellMissing || (c.kind == CellText && c.text == "")
}

// Float returns the numeric value of the cell. Text cells are parsed after
// trimming surrounding whitespace; non-finite results are rejected.
func (c Cell) Float() (float64, bool) {
	switch c.kind {
	case CellNumber:
		if math.IsNaN(c.num) || math.IsInf(c.num, 0) {
			return 0, false
		}
		return c.num, true
	case CellText:
		v, err := strconv.ParseFloat(strings.TrimSpace(c.text), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// String renders the cell for display; missing cells render empty.
func (c Cell) String() string {
	switch c.kind {
	case CellNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case CellText:
		return c.text
	}
	return ""
}

func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case CellNumber:
		if math.IsNaN(c.num) || math.IsInf(c.num, 0) {
			return []byte("null"), nil
		}
		return []byte(strconv.FormatFloat(c.num, 'f', -1, 64)), nil
	case CellText:
		return json.Marshal(c.text)
	}
	return []byte("null"), nil
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Missing()
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Text(s)
	case bytes.Equal(data, []byte("true")) || bytes.Equal(data, []byte("false")):
		*c = Text(string(data))
	case data[0] == '{' || data[0] == '[':
		return fmt.Errorf("cell must be a number, string or null, got %s", data)
	default:
		v, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid numeric cell %s: %w", data, err)
		}
		*c = Number(v)
	}
	return nil
}

// RawRow is one case of the caller's dataset, indexed by column.
type RawRow []Cell

// At returns the cell at column i, or a missing cell when the row is too short.
func (r RawRow) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Missing()
	}
	return r[i]
}
