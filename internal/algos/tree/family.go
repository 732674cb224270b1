// Package tree is a regression-tree model family with optional monotone
// constraints. Classifiers fit one tree per class on the class indicator.
package tree

import (
	"context"
	"fmt"
	"math"
	"sort"

	"scorekit/domain/core"
	"scorekit/domain/frame"
	"scorekit/domain/model"
	"scorekit/internal/logging"
	"scorekit/ports"
)

var logger = logging.New("Tree")

const (
	DefaultMaxDepth = 5
	DefaultMinRows  = 10
	parallelDepth   = 3
)

// Parameters configure a tree build
type Parameters struct {
	model.BaseParameters
	MaxDepth int `json:"max_depth"`
	MinRows  int `json:"min_rows"`
	// MonotoneConstraints maps feature names to -1, 0 or 1.
	MonotoneConstraints map[string]int `json:"monotone_constraints,omitempty"`
}

// NewParameters returns parameters with defaults
func NewParameters() *Parameters {
	return &Parameters{MaxDepth: DefaultMaxDepth, MinRows: DefaultMinRows}
}

func (p *Parameters) Base() *model.BaseParameters { return &p.BaseParameters }

func (p *Parameters) Algo() model.Algo { return model.AlgoTree }

func (p *Parameters) ChecksumFields() []model.Field {
	return []model.Field{
		{Name: "max_depth", Value: p.MaxDepth},
		{Name: "min_rows", Value: p.MinRows},
		{Name: "monotone_constraints", Value: p.MonotoneConstraints},
	}
}

// Scorer holds the fitted trees: one for regression and binomial models, one
// per class for multinomial models.
type Scorer struct {
	Trees    []*Node `json:"trees"`
	NClasses int     `json:"nclasses"`
}

// Score0 fills preds as described by model.RowScorer
func (s *Scorer) Score0(data []float64, preds []float64) []float64 {
	switch {
	case s.NClasses <= 1:
		preds[0] = s.Trees[0].Predict(data)
	case len(s.Trees) == 1:
		p := clamp01(s.Trees[0].Predict(data))
		preds[1] = 1 - p
		preds[2] = p
	default:
		sum := 0.0
		for k, t := range s.Trees {
			preds[k+1] = clamp01(t.Predict(data))
			sum += preds[k+1]
		}
		for k := range s.Trees {
			if sum == 0 {
				preds[k+1] = 1 / float64(len(s.Trees))
			} else {
				preds[k+1] /= sum
			}
		}
	}
	return preds
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// Family implements ports.ModelFamily for trees
type Family struct{}

var _ ports.ModelFamily = Family{}

func (Family) Algo() model.Algo { return model.AlgoTree }

func (Family) Supervised() bool { return true }

func (Family) NewParameters() model.Parameters { return NewParameters() }

func (Family) NewScorer() model.RowScorer { return &Scorer{} }

func (Family) Validate(params model.Parameters) []string {
	p, ok := params.(*Parameters)
	if !ok {
		return []string{fmt.Sprintf("tree: unexpected parameters type %T", params)}
	}
	var errs []string
	if p.MaxDepth < 0 {
		errs = append(errs, "max_depth must be >= 0")
	}
	if p.MinRows < 1 {
		errs = append(errs, "min_rows must be >= 1")
	}
	names := make([]string, 0, len(p.MonotoneConstraints))
	for name := range p.MonotoneConstraints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := ParseConstraint(p.MonotoneConstraints[name]); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
		if name == p.ResponseColumn {
			errs = append(errs, fmt.Sprintf("%s: the response cannot carry a monotone constraint", name))
		}
	}
	return errs
}

// Train grows the trees. Categorical features split on their level index.
func (Family) Train(ctx context.Context, params model.Parameters, train *frame.Frame, out *model.Output) (model.RowScorer, error) {
	p, ok := params.(*Parameters)
	if !ok {
		return nil, core.NewInvalidParametersError("algo", fmt.Sprintf("tree: unexpected parameters type %T", params))
	}

	nf := out.NFeatures()
	cols := make([][]float64, nf)
	cs := make([]Constraint, nf)
	for i, name := range out.FeatureNames() {
		cols[i] = train.VecAt(i).Values()
		if v, ok := p.MonotoneConstraints[name]; ok {
			cs[i] = Constraint(v)
			if cs[i] != None && out.Domains[i] != nil {
				return nil, core.NewInvalidParametersError("monotone_constraints", fmt.Sprintf("%s is categorical", name))
			}
		}
	}
	for name := range p.MonotoneConstraints {
		if train.Find(name) < 0 {
			return nil, core.NewInvalidParametersError("monotone_constraints", fmt.Sprintf("unknown column %s", name))
		}
	}
	response := train.VecAt(nf).Values()

	// Rows with a missing response do not take part in training.
	var rows []int
	for i, y := range response {
		if !math.IsNaN(y) {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return nil, core.NewInvalidParametersError("train", "response column has no values")
	}

	g := &grower{cols: cols, maxDepth: p.MaxDepth, minRows: p.MinRows, parallelDepth: parallelDepth}
	root := NewConstraints(cs)
	scorer := &Scorer{NClasses: out.NClasses()}

	targets := 1
	if out.Category == model.CategoryMultinomial {
		targets = out.NClasses()
	}
	for k := 0; k < targets; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.y = target(response, out.Category, k)
		t := g.grow(rows, 0, root)
		scorer.Trees = append(scorer.Trees, t)
		logger.Debugf("Grew tree %d/%d: depth %d, %d leaves", k+1, targets, t.Depth(), t.Leaves())
	}
	return scorer, nil
}

// target returns the regression target for tree k: the response itself for
// regression, the indicator of class 1 for binomial and of class k otherwise.
func target(response []float64, category model.Category, k int) []float64 {
	switch category {
	case model.CategoryRegression:
		return response
	case model.CategoryBinomial:
		k = 1
	}
	y := make([]float64, len(response))
	for i, v := range response {
		if int(v) == k {
			y[i] = 1
		}
	}
	return y
}
