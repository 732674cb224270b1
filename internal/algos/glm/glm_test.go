package glm

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
	fr, err := frame.FromColumns(8, cols...)
	require.NoError(t, err)
	out, err := model.NewOutput(fr.Schema(), true)
	require.NoError(t, err)
	return fr, out
}

func TestTrain_Gaussian(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 3*v - 2
	}
	fr, out := trainFrame(t, frame.NumericColumn("x", x...), frame.NumericColumn("y", y...))
	p := NewParameters()
	p.Lambda = 0

	s, err := Family{}.Train(context.Background(), p, fr, out)
	require.NoError(t, err)
	preds := make([]float64, 1)
	assert.InDelta(t, 28, s.Score0([]float64{10}, preds)[0], 1e-6)
	assert.InDelta(t, -2, s.Score0([]float64{0}, preds)[0], 1e-6)
}

func TestTrain_GaussianWithCategorical(t *testing.T) {
	dom := frame.NewDomain("a", "b")
	fr, out := trainFrame(t,
		frame.CategoricalColumn("g", dom, "a", "a", "b", "b", "a", "b"),
		frame.NumericColumn("y", 1, 1, 5, 5, 1, 5),
	)

	s, err := Family{}.Train(context.Background(), NewParameters(), fr, out)
	require.NoError(t, err)
	preds := make([]float64, 1)
	assert.InDelta(t, 1, s.Score0([]float64{0}, preds)[0], 1e-2)
	assert.InDelta(t, 5, s.Score0([]float64{1}, preds)[0], 1e-2)
}

func TestTrain_Binomial(t *testing.T) {
	dom := frame.NewDomain("no", "yes")
	var x []float64
	var labels []string
	for i := 0; i < 40; i++ {
		x = append(x, float64(i))
		if i < 20 {
			labels = append(labels, "no")
		} else {
			labels = append(labels, "yes")
		}
	}
	fr, out := trainFrame(t, frame.NumericColumn("x", x...), frame.CategoricalColumn("label", dom, labels...))

	s, err := Family{}.Train(context.Background(), NewParameters(), fr, out)
	require.NoError(t, err)

	low := s.Score0([]float64{2}, make([]float64, 3))
	high := s.Score0([]float64{37}, make([]float64, 3))
	assert.InDelta(t, 1, low[1]+low[2], 1e-9)
	assert.Greater(t, low[1], 0.5)
	assert.Greater(t, high[2], 0.5)
}

func TestScore0_MissingUsesMean(t *testing.T) {
	fr, out := trainFrame(t, frame.NumericColumn("x", 1, 2, 3), frame.NumericColumn("y", 2, 4, 6))
	p := NewParameters()
	p.Lambda = 0
	s, err := Family{}.Train(context.Background(), p, fr, out)
	require.NoError(t, err)

	preds := make([]float64, 1)
	assert.InDelta(t, 4, s.Score0([]float64{math.NaN()}, preds)[0], 1e-6)
	assert.True(t, math.IsNaN(s.(model.MissingFiller).MissingValue()))
}

func TestValidate(t *testing.T) {
	p := NewParameters()
	p.Lambda = -1
	p.MaxIterations = 0
	p.LearningRate = 0
	assert.Len(t, Family{}.Validate(p), 3)
	assert.Empty(t, Family{}.Validate(NewParameters()))
}

func TestSoftmax(t *testing.T) {
	z := []float64{1000, 1000}
	softmax(z)
	assert.Equal(t, []float64{0.5, 0.5}, z)
}
