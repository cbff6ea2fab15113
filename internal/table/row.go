package table

// Row is one extracted input line. Parts are indexed by source position;
// a field that was absent or out of range is kept as an empty, not-present
// slot so later columns stay aligned.
type Row struct {
	text    string
	parts   []string
	present []bool

	// Line is the 1-based input line number, or 0 when unknown.
	Line int
}

func newRow(text string) *Row {
	return &Row{text: text}
}

// Text returns the original line.
func (r *Row) Text() string {
	return r.text
}

// Len returns the number of slots, present or not.
func (r *Row) Len() int {
	return len(r.parts)
}

// IsEmpty reports whether the row has no slots.
func (r *Row) IsEmpty() bool {
	return len(r.parts) == 0
}

// Field returns the value at position i and whether it was extracted.
func (r *Row) Field(i int) (string, bool) {
	if i < 0 || i >= len(r.parts) || !r.present[i] {
		return "", false
	}
	return r.parts[i], true
}

// Parts returns a copy of the row's values. Absent slots are "".
func (r *Row) Parts() []string {
	out := make([]string, len(r.parts))
	copy(out, r.parts)
	return out
}

// Missing returns the positions that were not extracted.
func (r *Row) Missing() []int {
	var out []int
	for i, ok := range r.present {
		if !ok {
			out = append(out, i)
		}
	}
	return out
}

// add appends the substring [start, end) of the row text. An inverted or
// out-of-range span appends an absent slot and reports false.
func (r *Row) add(start, end int) bool {
	if start < 0 || start > end || end > len(r.text) {
		r.parts = append(r.parts, "")
		r.present = append(r.present, false)
		return false
	}
	r.parts = append(r.parts, r.text[start:end])
	r.present = append(r.present, true)
	return true
}

// pad appends absent slots until the row has n of them.
func (r *Row) pad(n int) {
	for len(r.parts) < n {
		r.parts = append(r.parts, "")
		r.present = append(r.present, false)
	}
}
