package tree

import (
	"context"
	"math"
	"testing"

	"scorekit/domain/frame"
	"scorekit/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainFrame(t *testing.T, cols ...frame.Column) (*frame.Frame, *model.Output) {
	t.Helper()
	fr, err := frame.FromColumns(16, cols...)
	require.NoError(t, err)
	out, err := model.NewOutput(fr.Schema(), true)
	require.NoError(t, err)
	return fr, out
}

func sawtooth(n int) ([]float64, []float64) {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = float64(i%10) + float64(i)/20
	}
	return x, y
}

func TestTrain_Step(t *testing.T) {
	x := make([]float64, 100)
	y := make([]float64, 100)
	for i := range x {
		x[i] = float64(i)
		if i >= 50 {
			y[i] = 10
		}
	}
	fr, out := trainFrame(t, frame.NumericColumn("x", x...), frame.NumericColumn("y", y...))
	p := NewParameters()
	p.MaxDepth = 1
	p.MinRows = 1

	s, err := Family{}.Train(context.Background(), p, fr, out)
	require.NoError(t, err)
	preds := make([]float64, 1)
	assert.InDelta(t, 0, s.Score0([]float64{20}, preds)[0], 1e-9)
	assert.InDelta(t, 10, s.Score0([]float64{80}, preds)[0], 1e-9)
	assert.Equal(t, 49.5, s.(*Scorer).Trees[0].Threshold)
}

func TestTrain_MonotoneConstraints(t *testing.T) {
	x, y := sawtooth(200)
	tests := []struct {
		name string
		c    int
	}{
		{"increasing", 1},
		{"decreasing", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr, out := trainFrame(t, frame.NumericColumn("x", x...), frame.NumericColumn("y", y...))
			p := NewParameters()
			p.MaxDepth = 8
			p.MinRows = 2
			p.MonotoneConstraints = map[string]int{"x": tt.c}

			s, err := Family{}.Train(context.Background(), p, fr, out)
			require.NoError(t, err)

			prev := math.NaN()
			preds := make([]float64, 1)
			for v := -5.0; v <= 205; v += 0.5 {
				got := s.Score0([]float64{v}, preds)[0]
				if !math.IsNaN(prev) {
					if tt.c > 0 {
						assert.GreaterOrEqual(t, got, prev, "x=%v", v)
					} else {
						assert.LessOrEqual(t, got, prev, "x=%v", v)
					}
				}
				prev = got
			}
		})
	}
}

func TestTrain_Binomial(t *testing.T) {
	dom := frame.NewDomain("no", "yes")
	labels := make([]string, 40)
	x := make([]float64, 40)
	for i := range labels {
		x[i] = float64(i)
		labels[i] = "no"
		if i >= 20 {
			labels[i] = "yes"
		}
	}
	fr, out := trainFrame(t, frame.NumericColumn("x", x...), frame.CategoricalColumn("label", dom, labels...))
	require.Equal(t, model.CategoryBinomial, out.Category)

	s, err := Family{}.Train(context.Background(), NewParameters(), fr, out)
	require.NoError(t, err)
	preds := s.Score0([]float64{35}, make([]float64, 3))
	assert.InDelta(t, 1, preds[2], 1e-9)
	assert.InDelta(t, 0, preds[1], 1e-9)
}

func TestTrain_Multinomial(t *testing.T) {
	dom := frame.NewDomain("a", "b", "c")
	var x []float64
	var labels []string
	for i := 0; i < 60; i++ {
		x = append(x, float64(i))
		labels = append(labels, dom.Level(i/20))
	}
	fr, out := trainFrame(t, frame.NumericColumn("x", x...), frame.CategoricalColumn("label", dom, labels...))

	s, err := Family{}.Train(context.Background(), NewParameters(), fr, out)
	require.NoError(t, err)
	assert.Len(t, s.(*Scorer).Trees, 3)

	preds := s.Score0([]float64{30}, make([]float64, 4))
	assert.InDelta(t, 1, preds[1]+preds[2]+preds[3], 1e-9)
	assert.Equal(t, 1, model.MaxIndex(preds[1:]))
}

func TestTrain_MissingGoesLeft(t *testing.T) {
	root := &Node{Feature: 0, Threshold: 1, Left: &Node{Feature: -1, Value: -1}, Right: &Node{Feature: -1, Value: 1}}
	assert.Equal(t, -1.0, root.Predict([]float64{math.NaN()}))
	assert.Equal(t, 1.0, root.Predict([]float64{2}))
}

func TestValidate(t *testing.T) {
	p := NewParameters()
	p.ResponseColumn = "y"
	p.MinRows = 0
	p.MonotoneConstraints = map[string]int{"x": 3, "y": 1}

	errs := Family{}.Validate(p)
	assert.Len(t, errs, 3)
	assert.Empty(t, Family{}.Validate(NewParameters()))
}

func TestChecksumFieldsTrackConstraints(t *testing.T) {
	fr, _ := trainFrame(t, frame.NumericColumn("x", 1, 2), frame.NumericColumn("y", 1, 2))
	a := NewParameters()
	a.Train = fr
	b := NewParameters()
	b.Train = fr
	b.MonotoneConstraints = map[string]int{"x": 1}

	ca, err := model.Checksum(a)
	require.NoError(t, err)
	cb, err := model.Checksum(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca, cb)
}
