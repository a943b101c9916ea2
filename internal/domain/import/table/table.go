// Package table turns delimited statement text into ordered header→cell rows.
package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Row is an ordered mapping from column header to raw cell text.
// A header missing from the row (short record) is absent, which is distinct
// from a present but empty cell.
type Row struct {
	headers []string
	cells   map[string]string
}

// NewRow pairs headers with record values by position. Values beyond the
// header count are dropped; headers beyond the record length stay absent.
func NewRow(headers []string, record []string) Row {
	cells := make(map[string]string, len(record))
	for i, h := range headers {
		if i >= len(record) {
			break
		}
		cells[h] = record[i]
	}
	return Row{headers: headers, cells: cells}
}

// Get returns the cell for header and whether it is present.
func (r Row) Get(header string) (string, bool) {
	v, ok := r.cells[header]
	return v, ok
}

// Value returns the trimmed cell for header, or "" when absent.
func (r Row) Value(header string) string {
	return strings.TrimSpace(r.cells[header])
}

// Headers returns the column order of the row.
func (r Row) Headers() []string {
	return r.headers
}

// Len returns the number of present cells.
func (r Row) Len() int {
	return len(r.cells)
}

// NonEmpty returns the number of present cells with non-blank text.
func (r Row) NonEmpty() int {
	n := 0
	for _, v := range r.cells {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// Values returns present cell values in header order.
func (r Row) Values() []string {
	out := make([]string, 0, len(r.cells))
	for _, h := range r.headers {
		if v, ok := r.cells[h]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Text joins the present values with a single space, for banner detection.
func (r Row) Text() string {
	return strings.Join(r.Values(), " ")
}

// MarshalJSON writes the row as a JSON object that keeps header order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, h := range r.headers {
		v, ok := r.cells[h]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RawTable is the header list plus data rows read from one statement.
type RawTable struct {
	Headers []string
	Rows    []Row
}

// UniqueHeaders trims header names, names blank columns by position and
// suffixes repeated names so every column can be addressed by name.
func UniqueHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		name := h
		if n := seen[strings.ToLower(h)]; n > 0 {
			name = fmt.Sprintf("%s (%d)", h, n+1)
		}
		seen[strings.ToLower(h)]++
		out[i] = name
	}
	return out
}
