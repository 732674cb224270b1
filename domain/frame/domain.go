package frame

import "strings"

// Domain is the ordered level list of a categorical column. A nil *Domain
// marks a numeric column. Domains are immutable once built; a changed level
// set is always a new Domain value, so two columns holding the same *Domain
// are known to share an encoding without comparing labels.
type Domain struct {
	levels []string
	index  map[string]int
	// base is the domain this one was extended from, nil for a fresh domain.
	base *Domain
}

// NewDomain builds a domain from the given labels. The slice is copied.
func NewDomain(levels ...string) *Domain {
	d := &Domain{
		levels: append([]string(nil), levels...),
		index:  make(map[string]int, len(levels)),
	}
	for i, l := range d.levels {
		if _, dup := d.index[l]; !dup {
			d.index[l] = i
		}
	}
	return d
}

// Len returns the number of levels; zero for a numeric column.
func (d *Domain) Len() int {
	if d == nil {
		return 0
	}
	return len(d.levels)
}

// Level returns the label at index i.
func (d *Domain) Level(i int) string {
	return d.levels[i]
}

// Index returns the position of label in the domain.
func (d *Domain) Index(label string) (int, bool) {
	if d == nil {
		return -1, false
	}
	i, ok := d.index[label]
	return i, ok
}

// Levels returns a copy of the labels.
func (d *Domain) Levels() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.levels...)
}

// Equal reports whether both domains carry the same labels in the same order.
func (d *Domain) Equal(o *Domain) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil || len(d.levels) != len(o.levels) {
		return false
	}
	for i := range d.levels {
		if d.levels[i] != o.levels[i] {
			return false
		}
	}
	return true
}

// Extend returns a new domain with the extra labels appended in order,
// skipping labels already present.
func (d *Domain) Extend(extra ...string) *Domain {
	levels := d.Levels()
	seen := make(map[string]bool, len(levels)+len(extra))
	for _, l := range levels {
		seen[l] = true
	}
	for _, l := range extra {
		if !seen[l] {
			seen[l] = true
			levels = append(levels, l)
		}
	}
	ext := NewDomain(levels...)
	ext.base = d
	return ext
}

// ExtendedFrom reports whether d was built by Extend from m, directly or
// through a chain of extensions.
func (d *Domain) ExtendedFrom(m *Domain) bool {
	if d == nil || m == nil {
		return false
	}
	for b := d.base; b != nil; b = b.base {
		if b == m || b.Equal(m) {
			return true
		}
	}
	return false
}

func (d *Domain) String() string {
	if d == nil {
		return "numeric"
	}
	return "{" + strings.Join(d.levels, ",") + "}"
}
