package frame

import (
	"math"
	"sort"

	"scorekit/domain/core"
)

// DefaultChunkRows is the chunk size used when a caller passes zero.
const DefaultChunkRows = 4096

// Layout splits a row range into contiguous chunks. Vecs sharing a layout are
// row-aligned and can be processed chunk by chunk together.
type Layout struct {
	starts []int64 // starts[i] is the first row of chunk i; last entry is the row count
}

// NewLayout partitions nrows rows into chunks of at most chunkRows rows.
func NewLayout(nrows int64, chunkRows int) *Layout {
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}
	starts := []int64{0}
	for s := int64(chunkRows); s < nrows; s += int64(chunkRows) {
		starts = append(starts, s)
	}
	if nrows > 0 {
		starts = append(starts, nrows)
	}
	return &Layout{starts: starts}
}

// NChunks returns the number of chunks
func (l *Layout) NChunks() int {
	return len(l.starts) - 1
}

// NRows returns the total row count
func (l *Layout) NRows() int64 {
	return l.starts[len(l.starts)-1]
}

// ChunkStart returns the first row of chunk i
func (l *Layout) ChunkStart(i int) int64 {
	return l.starts[i]
}

// ChunkLen returns the number of rows in chunk i
func (l *Layout) ChunkLen(i int) int {
	return int(l.starts[i+1] - l.starts[i])
}

// ChunkFor returns the chunk holding row
func (l *Layout) ChunkFor(row int64) int {
	return sort.Search(l.NChunks(), func(i int) bool { return l.starts[i+1] > row })
}

// Compatible reports whether two layouts have identical chunk boundaries.
func (l *Layout) Compatible(o *Layout) bool {
	if l == o {
		return true
	}
	if len(l.starts) != len(o.starts) {
		return false
	}
	for i := range l.starts {
		if l.starts[i] != o.starts[i] {
			return false
		}
	}
	return true
}

// Vec is one column of a frame, stored chunk by chunk. Categorical values are
// level indices into the vec's domain; NaN marks a missing value.
type Vec struct {
	layout *Layout
	chunks [][]float64
	domain *Domain
}

// NewVec copies values into a vec laid out by layout.
func NewVec(layout *Layout, values []float64, domain *Domain) *Vec {
	v := &Vec{layout: layout, chunks: make([][]float64, layout.NChunks()), domain: domain}
	for i := range v.chunks {
		start := layout.ChunkStart(i)
		v.chunks[i] = append([]float64(nil), values[start:start+int64(layout.ChunkLen(i))]...)
	}
	return v
}

// Layout returns the vec's chunk layout
func (v *Vec) Layout() *Layout { return v.layout }

// Domain returns the categorical domain, nil for numeric vecs
func (v *Vec) Domain() *Domain { return v.domain }

// IsCategorical reports whether the vec has a domain
func (v *Vec) IsCategorical() bool { return v.domain != nil }

// Len returns the row count
func (v *Vec) Len() int64 { return v.layout.NRows() }

// NChunks returns the chunk count
func (v *Vec) NChunks() int { return len(v.chunks) }

// At returns the value at an absolute row
func (v *Vec) At(row int64) float64 {
	c := v.layout.ChunkFor(row)
	return v.chunks[c][row-v.layout.ChunkStart(c)]
}

// Chunk returns a view on chunk i. Writes through the view land in the vec.
func (v *Vec) Chunk(i int) *Chunk {
	return &Chunk{start: v.layout.ChunkStart(i), vals: v.chunks[i]}
}

// Values returns a copy of every value in row order
func (v *Vec) Values() []float64 {
	out := make([]float64, 0, v.Len())
	for _, c := range v.chunks {
		out = append(out, c...)
	}
	return out
}

// MakeCon allocates a new vec on the same layout with every row set to val.
func (v *Vec) MakeCon(val float64, domain *Domain) *Vec {
	out := &Vec{layout: v.layout, chunks: make([][]float64, len(v.chunks)), domain: domain}
	for i, c := range v.chunks {
		vals := make([]float64, len(c))
		if val != 0 {
			for j := range vals {
				vals[j] = val
			}
		}
		out.chunks[i] = vals
	}
	return out
}

// MakeZero allocates a zero-filled vec on the same layout.
func (v *Vec) MakeZero(domain *Domain) *Vec {
	return v.MakeCon(0, domain)
}

// MakeZeros allocates n numeric zero-filled vecs on the same layout.
func (v *Vec) MakeZeros(n int) []*Vec {
	out := make([]*Vec, n)
	for i := range out {
		out[i] = v.MakeZero(nil)
	}
	return out
}

// Transform builds a new vec whose values are remapped through mapping:
// level i of this vec becomes level mapping[i] of domain. Out-of-range
// levels and negative mappings become NaN.
func (v *Vec) Transform(mapping []int, domain *Domain) *Vec {
	out := &Vec{layout: v.layout, chunks: make([][]float64, len(v.chunks)), domain: domain}
	for i, c := range v.chunks {
		vals := make([]float64, len(c))
		for j, x := range c {
			vals[j] = remap(x, mapping)
		}
		out.chunks[i] = vals
	}
	return out
}

func remap(x float64, mapping []int) float64 {
	if math.IsNaN(x) {
		return x
	}
	idx := int(x)
	if idx < 0 || idx >= len(mapping) || mapping[idx] < 0 {
		return math.NaN()
	}
	return float64(mapping[idx])
}

// Min returns the smallest non-missing value, NaN when all are missing
func (v *Vec) Min() float64 {
	m := math.NaN()
	for _, c := range v.chunks {
		for _, x := range c {
			if !math.IsNaN(x) && (math.IsNaN(m) || x < m) {
				m = x
			}
		}
	}
	return m
}

// Max returns the largest non-missing value, NaN when all are missing
func (v *Vec) Max() float64 {
	m := math.NaN()
	for _, c := range v.chunks {
		for _, x := range c {
			if !math.IsNaN(x) && (math.IsNaN(m) || x > m) {
				m = x
			}
		}
	}
	return m
}

// NACount returns the number of missing values
func (v *Vec) NACount() int64 {
	var n int64
	for _, c := range v.chunks {
		for _, x := range c {
			if math.IsNaN(x) {
				n++
			}
		}
	}
	return n
}

// Checksum hashes the domain and every value
func (v *Vec) Checksum() uint64 {
	h := core.NewHasher().Strings(v.domain.Levels())
	for _, c := range v.chunks {
		for _, x := range c {
			h.Float64(x)
		}
	}
	return h.Sum()
}

// Chunk is a view on a contiguous row range of one vec.
type Chunk struct {
	start int64
	vals  []float64
}

// Len returns the number of rows in the chunk
func (c *Chunk) Len() int { return len(c.vals) }

// Start returns the absolute row of the chunk's first row
func (c *Chunk) Start() int64 { return c.start }

// At0 reads a row relative to the chunk start
func (c *Chunk) At0(i int) float64 { return c.vals[i] }

// IsNA0 reports whether a chunk-relative row is missing
func (c *Chunk) IsNA0(i int) bool { return math.IsNaN(c.vals[i]) }

// Set0 writes a row relative to the chunk start
func (c *Chunk) Set0(i int, x float64) { c.vals[i] = x }
