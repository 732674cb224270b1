package frame

import (
	"fmt"
	"math"
	"sync"

	"scorekit/domain/core"
)

// Frame is a named, ordered set of row-aligned vecs. The column set can be
// swapped atomically with Restructure; individual vecs are never mutated by
// the frame itself.
type Frame struct {
	mu    sync.RWMutex
	key   core.Key
	names []string
	vecs  []*Vec
}

// New builds a frame from parallel name and vec slices.
func New(names []string, vecs []*Vec) (*Frame, error) {
	if err := checkColumns(names, vecs); err != nil {
		return nil, err
	}
	return &Frame{
		key:   core.NewPrefixedKey("frame"),
		names: append([]string(nil), names...),
		vecs:  append([]*Vec(nil), vecs...),
	}, nil
}

func checkColumns(names []string, vecs []*Vec) error {
	if len(names) != len(vecs) {
		return fmt.Errorf("frame has %d names but %d vecs", len(names), len(vecs))
	}
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		if seen[n] {
			return fmt.Errorf("duplicate column name %q", n)
		}
		seen[n] = true
		if vecs[i] == nil {
			return fmt.Errorf("column %q has no vec", n)
		}
		if !vecs[i].layout.Compatible(vecs[0].layout) {
			return fmt.Errorf("column %q is not row-aligned with column %q", n, names[0])
		}
	}
	return nil
}

// Column describes one column for FromColumns.
type Column struct {
	Name   string
	Values []float64
	Domain *Domain
}

// NumericColumn builds a numeric column
func NumericColumn(name string, values ...float64) Column {
	return Column{Name: name, Values: values}
}

// CategoricalColumn encodes labels against domain. Empty labels and labels
// outside the domain become NaN.
func CategoricalColumn(name string, domain *Domain, labels ...string) Column {
	values := make([]float64, len(labels))
	for i, l := range labels {
		idx, ok := domain.Index(l)
		if l == "" || !ok {
			values[i] = math.NaN()
			continue
		}
		values[i] = float64(idx)
	}
	return Column{Name: name, Values: values, Domain: domain}
}

// FromColumns lays the columns out in chunks of chunkRows rows.
func FromColumns(chunkRows int, cols ...Column) (*Frame, error) {
	if len(cols) == 0 {
		return New(nil, nil)
	}
	nrows := len(cols[0].Values)
	layout := NewLayout(int64(nrows), chunkRows)
	names := make([]string, len(cols))
	vecs := make([]*Vec, len(cols))
	for i, c := range cols {
		if len(c.Values) != nrows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(c.Values), nrows)
		}
		names[i] = c.Name
		vecs[i] = NewVec(layout, c.Values, c.Domain)
	}
	return New(names, vecs)
}

// Key returns the frame's key
func (f *Frame) Key() core.Key { return f.key }

// Names returns a copy of the column names
func (f *Frame) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.names...)
}

// Domains returns the per-column domains
func (f *Frame) Domains() []*Domain {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Domain, len(f.vecs))
	for i, v := range f.vecs {
		out[i] = v.domain
	}
	return out
}

// Schema returns names and domains together
func (f *Frame) Schema() Schema {
	return Schema{Names: f.Names(), Domains: f.Domains()}
}

// Vecs returns a copy of the vec slice
func (f *Frame) Vecs() []*Vec {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*Vec(nil), f.vecs...)
}

// Find returns the position of a column, or -1
func (f *Frame) Find(name string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i, n := range f.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Vec returns the named column, or nil
func (f *Frame) Vec(name string) *Vec {
	i := f.Find(name)
	if i < 0 {
		return nil
	}
	return f.VecAt(i)
}

// VecAt returns the column at position i
func (f *Frame) VecAt(i int) *Vec {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.vecs[i]
}

// NumCols returns the column count
func (f *Frame) NumCols() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vecs)
}

// AnyVec returns some column, used as a layout template; nil for an empty frame.
func (f *Frame) AnyVec() *Vec {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.vecs) == 0 {
		return nil
	}
	return f.vecs[0]
}

// NumRows returns the row count
func (f *Frame) NumRows() int64 {
	if v := f.AnyVec(); v != nil {
		return v.Len()
	}
	return 0
}

// NChunks returns the chunk count
func (f *Frame) NChunks() int {
	if v := f.AnyVec(); v != nil {
		return v.NChunks()
	}
	return 0
}

// Clone returns a new frame over the same vecs. Restructuring the clone leaves
// the original untouched.
func (f *Frame) Clone() *Frame {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &Frame{
		key:   core.NewPrefixedKey("frame"),
		names: append([]string(nil), f.names...),
		vecs:  append([]*Vec(nil), f.vecs...),
	}
}

// Remove drops column i and returns its vec
func (f *Frame) Remove(i int) *Vec {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.vecs[i]
	f.names = append(f.names[:i:i], f.names[i+1:]...)
	f.vecs = append(f.vecs[:i:i], f.vecs[i+1:]...)
	return v
}

// Add appends a column
func (f *Frame) Add(name string, v *Vec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := append(append([]string(nil), f.names...), name)
	vecs := append(append([]*Vec(nil), f.vecs...), v)
	if err := checkColumns(names, vecs); err != nil {
		return err
	}
	f.names, f.vecs = names, vecs
	return nil
}

// Restructure atomically replaces the whole column set.
func (f *Frame) Restructure(names []string, vecs []*Vec) error {
	if err := checkColumns(names, vecs); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append([]string(nil), names...)
	f.vecs = append([]*Vec(nil), vecs...)
	return nil
}

// Checksum fingerprints the frame's logical content: names, domains, values.
func (f *Frame) Checksum() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	h := core.NewHasher().Strings(f.names)
	for _, v := range f.vecs {
		h.Uint64(v.Checksum())
	}
	return h.Sum()
}
