// Package table stores extracted rows as substrings of their source lines,
// addressed by row index and source-variable position.
package table

import (
	"sync"

	"github.com/conneroisu/reshape/internal/template"
)

// Table is a set of rows sharing one width. The width is latched by the
// first row with spans unless set up front with NewWithWidth; later rows are
// padded or truncated to it.
//
// Table is safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	width int
	rows  []*Row
}

// New creates an empty table whose width is set by the first matching row.
// Callers that already know the width should use NewWithWidth.
func New() *Table {
	return &Table{width: -1}
}

// NewWithWidth creates an empty table with a fixed width.
func NewWithWidth(width int) *Table {
	if width < 0 {
		width = 0
	}
	return &Table{width: width}
}

// Add appends a row built from text and its extracted spans and returns it.
// An empty span slice (a line that did not match) yields a row of absent
// slots.
func (t *Table) Add(text string, spans []template.Span) *Row {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A non-matching line carries no spans, so it cannot set the width.
	// Rows added before the latch are padded once the width is known.
	if t.width < 0 && len(spans) > 0 {
		t.width = len(spans)
		for _, r := range t.rows {
			r.pad(t.width)
		}
	}

	row := newRow(text)
	for i, s := range spans {
		if i >= t.width {
			break
		}
		row.add(s.Start, s.End)
	}
	row.pad(t.width)

	t.rows = append(t.rows, row)
	return row
}

// Get returns the value at (row, col).
func (t *Table) Get(row, col int) (string, bool) {
	r := t.Row(row)
	if r == nil {
		return "", false
	}
	return r.Field(col)
}

// GetParts returns every value of a row.
func (t *Table) GetParts(row int) ([]string, bool) {
	r := t.Row(row)
	if r == nil {
		return nil, false
	}
	return r.Parts(), true
}

// Row returns the i-th row, or nil.
func (t *Table) Row(i int) *Row {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if i < 0 || i >= len(t.rows) {
		return nil
	}
	return t.rows[i]
}

// Rows returns a snapshot of the rows in insertion order.
func (t *Table) Rows() []*Row {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	return t.RowCount() == 0
}

// Width returns the column count, or 0 before the first row of a table
// created with New.
func (t *Table) Width() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.width < 0 {
		return 0
	}
	return t.width
}
