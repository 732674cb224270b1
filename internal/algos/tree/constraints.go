package tree

import (
	"fmt"
	"math"
)

// Constraint is the monotonicity requested for one feature.
type Constraint int

const (
	Decreasing Constraint = -1
	None       Constraint = 0
	Increasing Constraint = 1
)

func (c Constraint) String() string {
	switch c {
	case Increasing:
		return "increasing"
	case Decreasing:
		return "decreasing"
	default:
		return "none"
	}
}

// ParseConstraint accepts -1, 0 and 1, the values used in parameter maps.
func ParseConstraint(v int) (Constraint, error) {
	switch v {
	case -1, 0, 1:
		return Constraint(v), nil
	default:
		return None, fmt.Errorf("monotone constraint must be -1, 0 or 1, got %d", v)
	}
}

// Way selects the branch a new bound applies to.
type Way int

const (
	Left  Way = 0
	Right Way = 1
)

// Constraints carries the per-feature descriptors and the prediction interval
// active at one tree node. Values are immutable; WithNewConstraint derives a
// child value that shares the descriptor slice. NaN bounds are open.
type Constraints struct {
	cs  []Constraint
	min float64
	max float64
}

// NewConstraints creates the root value with no active bounds.
func NewConstraints(cs []Constraint) Constraints {
	return Constraints{cs: cs, min: math.NaN(), max: math.NaN()}
}

// ColumnConstraint returns the descriptor for feature col
func (c Constraints) ColumnConstraint(col int) Constraint {
	if col < 0 || col >= len(c.cs) {
		return None
	}
	return c.cs[col]
}

// Min is the lower bound, NaN when open
func (c Constraints) Min() float64 { return c.min }

// Max is the upper bound, NaN when open
func (c Constraints) Max() float64 { return c.max }

// WithNewConstraint bounds one branch: Left caps the maximum at bound and
// keeps the minimum, Right raises the minimum to bound and keeps the maximum.
func (c Constraints) WithNewConstraint(way Way, bound float64) Constraints {
	if way == Left {
		return Constraints{cs: c.cs, min: c.min, max: bound}
	}
	return Constraints{cs: c.cs, min: bound, max: c.max}
}

// Clamp limits v to the active interval
func (c Constraints) Clamp(v float64) float64 {
	if !math.IsNaN(c.min) && v < c.min {
		v = c.min
	}
	if !math.IsNaN(c.max) && v > c.max {
		v = c.max
	}
	return v
}

// Any reports whether at least one feature is constrained
func (c Constraints) Any() bool {
	for _, x := range c.cs {
		if x != None {
			return true
		}
	}
	return false
}
