package report

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ColumnHeader is a column label, optionally grouping one level of child columns.
type ColumnHeader struct {
	Header   string         `json:"header"`
	Children []ColumnHeader `json:"children,omitempty"`
}

// Col is shorthand for a leaf header.
func Col(label string) ColumnHeader { return ColumnHeader{Header: label} }

// Group builds a grouped header over leaf children.
func Group(label string, children ...string) ColumnHeader {
	h := ColumnHeader{Header: label}
	for _, c := range children {
		h.Children = append(h.Children, Col(c))
	}
	return h
}

// Row maps column labels to values and remembers insertion order.
type Row struct {
	keys   []string
	values map[string]Value
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]Value)}
}

// Set assigns key and returns the row for chaining.
func (r *Row) Set(key string, v Value) *Row {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	return r
}

// Get returns the value stored under key.
func (r *Row) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns labels in insertion order.
func (r *Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *Row) Len() int { return len(r.keys) }

func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object")
	}
	*r = Row{values: make(map[string]Value)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row key must be a string")
		}
		var v Value
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("row %q: %w", key, err)
		}
		r.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// Table is one titled statistical table.
type Table struct {
	Title         string         `json:"title"`
	ColumnHeaders []ColumnHeader `json:"columnHeaders"`
	Rows          []*Row         `json:"rows"`
}

// NewTable creates a table with the given headers and no rows.
func NewTable(title string, headers ...ColumnHeader) *Table {
	return &Table{Title: title, ColumnHeaders: headers, Rows: []*Row{}}
}

// Append adds a row.
func (t *Table) Append(r *Row) { t.Rows = append(t.Rows, r) }

// LeafHeaders flattens grouped headers into the row keys they address.
func (t *Table) LeafHeaders() []string {
	var out []string
	for _, h := range t.ColumnHeaders {
		if len(h.Children) == 0 {
			out = append(out, h.Header)
			continue
		}
		for _, c := range h.Children {
			out = append(out, c.Header)
		}
	}
	return out
}

// HasGroups reports whether any header has children.
func (t *Table) HasGroups() bool {
	for _, h := range t.ColumnHeaders {
		if len(h.Children) > 0 {
			return true
		}
	}
	return false
}

// Cell returns the value for key in row i, or null.
func (t *Table) Cell(i int, key string) Value {
	if i < 0 || i >= len(t.Rows) {
		return Null()
	}
	v, _ := t.Rows[i].Get(key)
	return v
}
