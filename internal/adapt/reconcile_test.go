package adapt

import (
	"math"
	"strings"
	"testing"

	"scorekit/domain/core"
	"scorekit/domain/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	colorDom = frame.NewDomain("red", "green", "blue")
	labelDom = frame.NewDomain("yes", "no")
)

func trainedSchema() ([]string, []*frame.Domain) {
	return []string{"age", "color", "label"}, []*frame.Domain{nil, colorDom, labelDom}
}

func mustFrame(t *testing.T, cols ...frame.Column) *frame.Frame {
	t.Helper()
	fr, err := frame.FromColumns(2, cols...)
	require.NoError(t, err)
	return fr
}

func supervised() Options {
	return Options{Expensive: true, Supervised: true}
}

func TestReconcile_ReorderAndMissingResponse(t *testing.T) {
	names, domains := trainedSchema()
	test := mustFrame(t,
		frame.CategoricalColumn("color", frame.NewDomain("blue", "red"), "blue", "red", "blue"),
		frame.NumericColumn("age", 31, 42, 53),
	)

	warns, err := Reconcile(names, domains, test, math.NaN(), supervised())
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0], "missing training column 'label'")

	assert.Equal(t, names, test.Names())
	assert.Same(t, colorDom, test.Vec("color").Domain())
	assert.Equal(t, []float64{2, 0, 2}, test.Vec("color").Values())
	assert.Equal(t, []float64{31, 42, 53}, test.Vec("age").Values())

	label := test.Vec("label")
	assert.Same(t, labelDom, label.Domain())
	for _, v := range label.Values() {
		assert.True(t, math.IsNaN(v))
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	names, domains := trainedSchema()
	test := mustFrame(t,
		frame.NumericColumn("extra", 1, 2, 3),
		frame.CategoricalColumn("color", frame.NewDomain("blue", "red"), "blue", "red", "blue"),
		frame.NumericColumn("age", 31, 42, 53),
	)
	_, err := Reconcile(names, domains, test, math.NaN(), supervised())
	require.NoError(t, err)
	before := test.Vecs()

	warns, err := Reconcile(names, domains, test, math.NaN(), supervised())
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Equal(t, names, test.Names())
	after := test.Vecs()
	for i := range before {
		assert.Same(t, before[i], after[i])
	}
}

func TestReconcile_NoColumnsInCommon(t *testing.T) {
	names, domains := trainedSchema()
	for _, expensive := range []bool{true, false} {
		test := mustFrame(t, frame.NumericColumn("x", 1, 2))
		_, err := Reconcile(names, domains, test, math.NaN(), Options{Expensive: expensive, Supervised: true})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrNoColumnsInCommon)
		assert.Equal(t, []string{"x"}, test.Names(), "expensive=%v", expensive)
	}

	empty, err := frame.New(nil, nil)
	require.NoError(t, err)
	_, err = Reconcile(names, domains, empty, math.NaN(), supervised())
	assert.ErrorIs(t, err, core.ErrNoColumnsInCommon)
}

func TestReconcile_ConstantColumnKeepsTrainedDomain(t *testing.T) {
	names, domains := trainedSchema()
	test := mustFrame(t, frame.NumericColumn("age", 1, 2, 3))

	_, err := Reconcile(names, domains, test, math.NaN(), supervised())
	require.NoError(t, err)
	for i, d := range test.Domains() {
		assert.Same(t, domains[i], d, names[i])
	}
}

func TestReconcile_IncompatibleColumnsReportedTogether(t *testing.T) {
	names, domains := trainedSchema()
	test := mustFrame(t,
		frame.CategoricalColumn("age", frame.NewDomain("old"), "old", "old"),
		frame.NumericColumn("color", 1, 2),
	)

	_, err := Reconcile(names, domains, test, math.NaN(), supervised())
	require.Error(t, err)
	assert.True(t, core.IsSchemaError(err))
	assert.ErrorIs(t, err, core.ErrIncompatibleColumn)
	assert.Contains(t, err.Error(), "'age', expected (trained on) numeric, was passed a categorical")
	assert.Contains(t, err.Error(), "'color', expected (trained on) categorical, was passed a numeric")
	assert.Equal(t, 1, strings.Count(err.Error(), core.ErrIncompatibleColumn.Error()))
	assert.Equal(t, []string{"age", "color"}, test.Names())
}

func TestReconcile_UnseenFeatureLevelBecomesNA(t *testing.T) {
	names, domains := trainedSchema()
	test := mustFrame(t,
		frame.NumericColumn("age", 1, 2),
		frame.CategoricalColumn("color", frame.NewDomain("purple", "red"), "purple", "red"),
		frame.CategoricalColumn("label", labelDom, "yes", "no"),
	)

	for _, exact := range []bool{true, false} {
		fr := test.Clone()
		opts := supervised()
		opts.Exact = exact
		warns, err := Reconcile(names, domains, fr, math.NaN(), opts)
		require.NoError(t, err)
		require.Len(t, warns, 1)
		assert.Contains(t, warns[0], "[purple]")

		vals := fr.Vec("color").Values()
		assert.True(t, math.IsNaN(vals[0]))
		assert.Equal(t, 0.0, vals[1])
	}
}

func TestReconcile_CheapPassLeavesFrameAlone(t *testing.T) {
	names, domains := trainedSchema()
	test := mustFrame(t,
		frame.CategoricalColumn("color", frame.NewDomain("blue", "red"), "blue", "red"),
		frame.NumericColumn("age", 31, 42),
	)

	warns, err := Reconcile(names, domains, test, math.NaN(), Options{Supervised: true})
	require.NoError(t, err)
	assert.Len(t, warns, 1)
	assert.Equal(t, []string{"color", "age"}, test.Names())
	assert.Equal(t, []float64{0, 1}, test.Vec("color").Values())
}

func TestReconcile_CheapPassRestructuresWhenNothingToAllocate(t *testing.T) {
	names, domains := trainedSchema()
	test := mustFrame(t,
		frame.CategoricalColumn("label", labelDom, "no", "yes"),
		frame.CategoricalColumn("color", colorDom, "blue", "red"),
		frame.NumericColumn("age", 31, 42),
	)

	warns, err := Reconcile(names, domains, test, math.NaN(), Options{Supervised: true})
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Equal(t, names, test.Names())
}

func TestReconcile_NoResponse(t *testing.T) {
	names, domains := trainedSchema()
	test := mustFrame(t,
		frame.CategoricalColumn("color", colorDom, "blue", "red"),
		frame.NumericColumn("age", 31, 42),
		frame.CategoricalColumn("label", labelDom, "no", "yes"),
	)

	opts := supervised()
	opts.NoResponse = true
	warns, err := Reconcile(names, domains, test, math.NaN(), opts)
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Equal(t, []string{"age", "color"}, test.Names())
}

func TestReconcile_ResponseDomainExtension(t *testing.T) {
	names, domains := trainedSchema()
	test := mustFrame(t,
		frame.NumericColumn("age", 1, 2, 3, 4),
		frame.CategoricalColumn("color", colorDom, "red", "red", "red", "red"),
		frame.CategoricalColumn("label", frame.NewDomain("a", "b", "no", "yes"), "yes", "b", "a", "no"),
	)

	warns, err := Reconcile(names, domains, test, math.NaN(), supervised())
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0], "[b, a]")

	label := test.Vec("label")
	assert.Equal(t, []string{"yes", "no", "b", "a"}, label.Domain().Levels())
	assert.Equal(t, []float64{0, 2, 3, 1}, label.Values())

	warns, err = Reconcile(names, domains, test, math.NaN(), supervised())
	require.NoError(t, err)
	assert.Empty(t, warns)
}

func TestReconcile_UnseenResponseLevelIgnoresLevelOrder(t *testing.T) {
	tests := []struct {
		name  string
		label *frame.Domain
	}{
		{"trained levels first", frame.NewDomain("yes", "no", "maybe")},
		{"unseen level first", frame.NewDomain("maybe", "yes", "no")},
		{"interleaved", frame.NewDomain("yes", "maybe", "no")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, domains := trainedSchema()
			test := mustFrame(t,
				frame.NumericColumn("age", 1, 2, 3),
				frame.CategoricalColumn("color", colorDom, "red", "red", "red"),
				frame.CategoricalColumn("label", tt.label, "yes", "maybe", "no"),
			)

			warns, err := Reconcile(names, domains, test, math.NaN(), supervised())
			require.NoError(t, err)
			require.Len(t, warns, 1)
			assert.Contains(t, warns[0], "response column 'label'")
			assert.Contains(t, warns[0], "[maybe]")

			label := test.Vec("label")
			assert.Equal(t, []string{"yes", "no", "maybe"}, label.Domain().Levels())
			assert.Equal(t, []float64{0, 2, 1}, label.Values())

			warns, err = Reconcile(names, domains, test, math.NaN(), supervised())
			require.NoError(t, err)
			assert.Empty(t, warns)
			assert.Same(t, label, test.Vec("label"))
		})
	}
}

func TestReconcile_ZeroWarningsMeansTrainedDomains(t *testing.T) {
	names, domains := trainedSchema()
	test := mustFrame(t,
		frame.CategoricalColumn("label", frame.NewDomain("no", "yes"), "yes", "no"),
		frame.NumericColumn("age", 1, 2),
		frame.CategoricalColumn("color", frame.NewDomain("blue", "red"), "red", "blue"),
	)

	warns, err := Reconcile(names, domains, test, math.NaN(), supervised())
	require.NoError(t, err)
	require.Empty(t, warns)
	assert.Equal(t, names, test.Names())
	for i, d := range test.Domains() {
		assert.True(t, d.Equal(domains[i]), names[i])
	}
}

func TestReconcile_MismatchedSchema(t *testing.T) {
	test := mustFrame(t, frame.NumericColumn("age", 1))
	_, err := Reconcile([]string{"age"}, nil, test, math.NaN(), Options{})
	assert.Error(t, err)
}

func TestDomainMapping(t *testing.T) {
	tests := []struct {
		name     string
		model    *frame.Domain
		input    *frame.Domain
		mapping  []int
		unmapped []string
	}{
		{"identical", colorDom, frame.NewDomain("red", "green", "blue"), []int{0, 1, 2}, nil},
		{"subset reordered", colorDom, frame.NewDomain("blue", "red"), []int{2, 0}, nil},
		{"unknown level", colorDom, frame.NewDomain("blue", "cyan"), []int{2, -1}, []string{"cyan"}},
		{"disjoint", colorDom, frame.NewDomain("x", "y"), []int{-1, -1}, []string{"x", "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapping, unmapped := DomainMapping("c", tt.model, tt.input, true)
			assert.Equal(t, tt.mapping, mapping)
			assert.Equal(t, tt.unmapped, unmapped)
		})
	}
}

func TestReconcile_WarningsMentionEveryMissingColumn(t *testing.T) {
	names, domains := trainedSchema()
	test := mustFrame(t, frame.NumericColumn("age", 1, 2))
	warns, err := Reconcile(names, domains, test, math.NaN(), supervised())
	require.NoError(t, err)
	joined := strings.Join(warns, "\n")
	assert.Contains(t, joined, "'color'")
	assert.Contains(t, joined, "'label'")
}
