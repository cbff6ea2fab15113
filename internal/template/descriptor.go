package template

// Descriptor is an ordered list of placeholder names with a parallel list of
// positions into the source variable list. For a source descriptor the
// positions are 0..n-1; for a target descriptor each position is the index
// of the referenced source variable, so a target can reorder, subset or
// repeat source fields.
type Descriptor struct {
	names     []string
	positions []int
}

// Len returns the number of variables.
func (d *Descriptor) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// Names returns a copy of the variable names in declaration order.
func (d *Descriptor) Names() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Positions returns a copy of the positions in declaration order.
func (d *Descriptor) Positions() []int {
	if d == nil {
		return nil
	}
	out := make([]int, len(d.positions))
	copy(out, d.positions)
	return out
}

// Name returns the i-th variable name.
func (d *Descriptor) Name(i int) (string, bool) {
	if d == nil || i < 0 || i >= len(d.names) {
		return "", false
	}
	return d.names[i], true
}

// Position returns the i-th position.
func (d *Descriptor) Position(i int) (int, bool) {
	if d == nil || i < 0 || i >= len(d.positions) {
		return 0, false
	}
	return d.positions[i], true
}

// Index returns the position of the first variable called name. Duplicate
// names resolve to their first occurrence.
func (d *Descriptor) Index(name string) (int, bool) {
	if d == nil {
		return 0, false
	}
	for i, n := range d.names {
		if n == name {
			return d.positions[i], true
		}
	}
	return 0, false
}

// Duplicates returns each name that occurs more than once, in order of its
// second occurrence.
func (d *Descriptor) Duplicates() []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]int, len(d.names))
	var dups []string
	for _, n := range d.names {
		seen[n]++
		if seen[n] == 2 {
			dups = append(dups, n)
		}
	}
	return dups
}

func (d *Descriptor) add(name string, position int) {
	d.names = append(d.names, name)
	d.positions = append(d.positions, position)
}
