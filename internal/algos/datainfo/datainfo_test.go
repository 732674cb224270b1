package datainfo

import (
	"math"
	"testing"

	"scorekit/domain/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	dom := frame.NewDomain("a", "b", "c")
	fr, err := frame.FromColumns(4,
		frame.NumericColumn("x", 1, 3, math.NaN()),
		frame.CategoricalColumn("c", dom, "b", "", "c"),
	)
	require.NoError(t, err)

	d, err := New(fr, fr.Names(), fr.Domains(), false)
	require.NoError(t, err)
	assert.Equal(t, 4, d.Width())
	assert.Equal(t, 2.0, d.Columns[0].Mean)

	rows := d.Rows(fr)
	assert.Equal(t, [][]float64{
		{-1, 0, 1, 0},
		{1, 0, 0, 0},
		{0, 0, 0, 1},
	}, rows)
}

func TestExpand_Standardize(t *testing.T) {
	fr, err := frame.FromColumns(4, frame.NumericColumn("x", 1, 3))
	require.NoError(t, err)

	d, err := New(fr, fr.Names(), fr.Domains(), true)
	require.NoError(t, err)
	got := d.Expand([]float64{5}, make([]float64, 1))
	assert.InDelta(t, 3.0, got[0], 1e-12)
}

func TestExpand_UnknownLevel(t *testing.T) {
	d := &DataInfo{Columns: []Column{{Name: "c", Levels: 2, Scale: 1}}}
	assert.Equal(t, []float64{0, 0}, d.Expand([]float64{5}, make([]float64, d.Width())))
}
