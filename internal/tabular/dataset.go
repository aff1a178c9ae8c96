// Package tabular normalizes CSV files and spreadsheet sheets into a uniform
// dataset: an ordered header list and ordered row records keyed by header.
//
// Headers are unique by construction. Empty header cells get a positional
// fallback label ("Column 3" for CSV, "Column C" for spreadsheets) and repeated
// labels are suffixed ("Name", "Name_1"). Row order is source order.
package tabular

import (
	"strconv"
	"strings"
)

// CellKind tags the value held by a Cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

// Cell is a raw cell value: text, number, or empty.
type Cell struct {
	Kind   CellKind
	Text   string  // Display text as read from the source
	Number float64 // Valid when Kind == CellNumber
}

// TextCell returns a text cell, or an empty cell for "".
func TextCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell returns a numeric cell with its display text.
func NumberCell(n float64, display string) Cell {
	return Cell{Kind: CellNumber, Number: n, Text: display}
}

// IsEmpty reports whether the cell has no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// String coerces the cell to text. Numbers use their shortest decimal form,
// so 79991234567 stays "79991234567" regardless of the sheet's number format.
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellText:
		return c.Text
	default:
		return ""
	}
}

// Row maps header labels to cell values. Absent headers read as empty.
type Row map[string]Cell

// Get returns the cell for header, or an empty cell.
func (r Row) Get(header string) Cell {
	if r == nil {
		return Cell{}
	}
	return r[header]
}

// IsBlank reports whether every cell in the row is empty or whitespace.
func (r Row) IsBlank() bool {
	for _, c := range r {
		if strings.TrimSpace(c.String()) != "" {
			return false
		}
	}
	return true
}

// Dataset is one loaded table.
type Dataset struct {
	Headers   []string
	Rows      []Row
	SheetName string // Empty for CSV
}

// Len returns the number of data rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// First returns the first row for read-only preview, or nil.
func (d *Dataset) First() Row {
	if d.Len() == 0 {
		return nil
	}
	return d.Rows[0]
}

// Value returns the text of row's cell under header, or empty if the
// dataset has no such header.
func (d *Dataset) Value(row Row, header string) string {
	if !d.HasHeader(header) {
		return ""
	}
	return row.Get(header).String()
}

// HasHeader reports whether header is one of the dataset's headers.
func (d *Dataset) HasHeader(header string) bool {
	if d == nil {
		return false
	}
	for _, h := range d.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// headerSet builds unique header labels from raw header cells.
// fallback returns the positional label for an empty cell at index i.
func headerSet(raw []string, fallback func(i int) string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))

	for i, h := range raw {
		label := strings.TrimSpace(h)
		if label == "" {
			label = fallback(i)
		}

		unique := label
		for n := 1; seen[unique]; n++ {
			unique = label + "_" + strconv.Itoa(n)
		}
		seen[unique] = true
		headers[i] = unique
	}

	return headers
}
