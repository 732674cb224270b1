package tree

import (
	"math"
	"sort"
	"sync"
)

// Node is one node of a regression tree. Leaves have Feature -1. Rows with
// x[Feature] <= Threshold or a missing x[Feature] go left.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Value     float64 `json:"v"`
	Left      *Node   `json:"l,omitempty"`
	Right     *Node   `json:"r,omitempty"`
}

// IsLeaf reports whether n is a leaf
func (n *Node) IsLeaf() bool { return n.Feature < 0 }

// Predict walks the tree for one row
func (n *Node) Predict(row []float64) float64 {
	for !n.IsLeaf() {
		x := row[n.Feature]
		if math.IsNaN(x) || x <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (n *Node) Depth() int {
	if n.IsLeaf() {
		return 0
	}
	l, r := n.Left.Depth(), n.Right.Depth()
	if l > r {
		return l + 1
	}
	return r + 1
}

// Leaves returns the leaf count
func (n *Node) Leaves() int {
	if n.IsLeaf() {
		return 1
	}
	return n.Left.Leaves() + n.Right.Leaves()
}

// grower fits one squared-error regression tree on column-major features.
type grower struct {
	cols     [][]float64
	y        []float64
	maxDepth int
	minRows  int
	// parallelDepth limits how deep sibling subtrees are grown concurrently.
	parallelDepth int
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
	leftMean  float64
	rightMean float64
}

func (g *grower) grow(idx []int, depth int, cons Constraints) *Node {
	mean := g.mean(idx)
	leaf := &Node{Feature: -1, Value: cons.Clamp(mean)}
	if len(idx) < 2*g.minRows || (g.maxDepth > 0 && depth >= g.maxDepth) {
		return leaf
	}

	best := g.bestSplit(idx, cons)
	if best == nil {
		return leaf
	}

	lc, rc := cons, cons
	switch cons.ColumnConstraint(best.feature) {
	case Increasing:
		mid := cons.Clamp((best.leftMean + best.rightMean) / 2)
		lc = cons.WithNewConstraint(Left, mid)
		rc = cons.WithNewConstraint(Right, mid)
	case Decreasing:
		mid := cons.Clamp((best.leftMean + best.rightMean) / 2)
		lc = cons.WithNewConstraint(Right, mid)
		rc = cons.WithNewConstraint(Left, mid)
	}

	n := &Node{Feature: best.feature, Threshold: best.threshold, Value: leaf.Value}
	if depth < g.parallelDepth {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Left = g.grow(best.left, depth+1, lc)
		}()
		n.Right = g.grow(best.right, depth+1, rc)
		wg.Wait()
	} else {
		n.Left = g.grow(best.left, depth+1, lc)
		n.Right = g.grow(best.right, depth+1, rc)
	}
	return n
}

func (g *grower) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	s := 0.0
	for _, i := range idx {
		s += g.y[i]
	}
	return s / float64(len(idx))
}

// bestSplit searches every feature concurrently and keeps the highest gain;
// ties go to the lower feature index so the result is deterministic.
func (g *grower) bestSplit(idx []int, cons Constraints) *split {
	results := make([]*split, len(g.cols))
	var wg sync.WaitGroup
	for f := range g.cols {
		wg.Add(1)
		go func(f int) {
			defer wg.Done()
			results[f] = g.splitFeature(idx, f, cons.ColumnConstraint(f))
		}(f)
	}
	wg.Wait()

	var best *split
	for _, r := range results {
		if r != nil && (best == nil || r.gain > best.gain) {
			best = r
		}
	}
	return best
}

type valued struct {
	v float64
	i int
}

// splitFeature finds the threshold on feature f with the largest reduction in
// squared error. Missing values always go left. Splits whose child means
// contradict a monotone constraint are skipped.
func (g *grower) splitFeature(idx []int, f int, c Constraint) *split {
	col := g.cols[f]
	var nas []int
	vals := make([]valued, 0, len(idx))
	var naSum float64
	for _, i := range idx {
		if math.IsNaN(col[i]) {
			nas = append(nas, i)
			naSum += g.y[i]
			continue
		}
		vals = append(vals, valued{col[i], i})
	}
	if len(vals) < 2 {
		return nil
	}
	sort.Slice(vals, func(a, b int) bool { return vals[a].v < vals[b].v })

	var total float64
	for _, i := range idx {
		total += g.y[i]
	}
	n := float64(len(idx))
	base := total * total / n

	var best *split
	leftSum := naSum
	leftN := len(nas)
	for k := 0; k < len(vals)-1; k++ {
		leftSum += g.y[vals[k].i]
		leftN++
		if vals[k].v == vals[k+1].v {
			continue
		}
		rightN := len(idx) - leftN
		if leftN < g.minRows || rightN < g.minRows {
			continue
		}
		rightSum := total - leftSum
		lm := leftSum / float64(leftN)
		rm := rightSum / float64(rightN)
		if (c == Increasing && lm > rm) || (c == Decreasing && lm < rm) {
			continue
		}
		gain := leftSum*leftSum/float64(leftN) + rightSum*rightSum/float64(rightN) - base
		if gain <= 1e-12 || (best != nil && gain <= best.gain) {
			continue
		}
		best = &split{
			feature:   f,
			threshold: (vals[k].v + vals[k+1].v) / 2,
			gain:      gain,
			leftMean:  lm,
			rightMean: rm,
		}
	}
	if best == nil {
		return nil
	}
	best.left = append(best.left, nas...)
	for _, p := range vals {
		if p.v <= best.threshold {
			best.left = append(best.left, p.i)
		} else {
			best.right = append(best.right, p.i)
		}
	}
	return best
}
