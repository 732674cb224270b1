// Package datainfo expands frame rows into numeric design vectors: one-hot
// categorical levels, mean-imputed and optionally standardized numerics.
package datainfo

import (
	"fmt"
	"math"

	"scorekit/domain/frame"

	"github.com/montanaflynn/stats"
)

// Column describes how one input feature is expanded
type Column struct {
	Name string `json:"name"`
	// Levels is the one-hot width of a categorical feature, 0 for numerics.
	Levels int     `json:"levels,omitempty"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"` // 1 / standard deviation, 1 when not standardized
}

// DataInfo is the expansion plan, fitted once on the training frame and
// reused unchanged at scoring time.
type DataInfo struct {
	Columns []Column `json:"columns"`
}

// New fits the plan on the first len(names) columns of fr, which must be in
// trained feature order. Categorical features use len(domain) indicator slots.
func New(fr *frame.Frame, names []string, domains []*frame.Domain, standardize bool) (*DataInfo, error) {
	if len(names) != len(domains) {
		return nil, fmt.Errorf("datainfo: %d names but %d domains", len(names), len(domains))
	}
	d := &DataInfo{Columns: make([]Column, len(names))}
	for i, name := range names {
		c := Column{Name: name, Scale: 1}
		if domains[i] != nil {
			c.Levels = domains[i].Len()
			d.Columns[i] = c
			continue
		}
		present := presentValues(fr.VecAt(i))
		if len(present) > 0 {
			mean, err := stats.Mean(present)
			if err != nil {
				return nil, fmt.Errorf("datainfo: column %s: %w", name, err)
			}
			c.Mean = mean
			if standardize {
				sd, err := stats.StandardDeviationPopulation(present)
				if err != nil {
					return nil, fmt.Errorf("datainfo: column %s: %w", name, err)
				}
				if sd > 0 {
					c.Scale = 1 / sd
				}
			}
		}
		d.Columns[i] = c
	}
	return d, nil
}

func presentValues(v *frame.Vec) []float64 {
	vals := v.Values()
	out := vals[:0]
	for _, x := range vals {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// Width returns the expanded row length
func (d *DataInfo) Width() int {
	w := 0
	for _, c := range d.Columns {
		if c.Levels > 0 {
			w += c.Levels
		} else {
			w++
		}
	}
	return w
}

// Expand writes the design vector of row into dst, which must hold Width()
// values. Missing or unknown categorical levels leave every indicator at zero;
// missing numerics take the training mean.
func (d *DataInfo) Expand(row []float64, dst []float64) []float64 {
	j := 0
	for i, c := range d.Columns {
		x := row[i]
		if c.Levels > 0 {
			for k := 0; k < c.Levels; k++ {
				dst[j+k] = 0
			}
			if !math.IsNaN(x) && x >= 0 && int(x) < c.Levels {
				dst[j+int(x)] = 1
			}
			j += c.Levels
			continue
		}
		if math.IsNaN(x) {
			x = c.Mean
		}
		dst[j] = (x - c.Mean) * c.Scale
		j++
	}
	return dst
}

// Rows expands the first len(Columns) columns of fr row by row into a
// row-major slice of design vectors.
func (d *DataInfo) Rows(fr *frame.Frame) [][]float64 {
	cols := make([][]float64, len(d.Columns))
	for i := range cols {
		cols[i] = fr.VecAt(i).Values()
	}
	n := int(fr.NumRows())
	out := make([][]float64, n)
	row := make([]float64, len(cols))
	for r := 0; r < n; r++ {
		for i := range cols {
			row[i] = cols[i][r]
		}
		out[r] = d.Expand(row, make([]float64, d.Width()))
	}
	return out
}
