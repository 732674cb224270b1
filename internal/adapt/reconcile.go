// Package adapt makes a test or scoring frame column-compatible with the
// schema a model was trained on.
package adapt

import (
	"fmt"
	"strings"

	"scorekit/domain/core"
	"scorekit/domain/frame"
	"scorekit/domain/model"
	"scorekit/internal/logging"
)

var logger = logging.New("Reconcile")

// Options controls a reconciliation pass.
type Options struct {
	// Expensive allows allocating replacement columns (constant fills for
	// missing columns, remapped categorical columns). Without it the pass only
	// collects diagnostics and leaves the frame untouched unless no column
	// needs to be allocated.
	Expensive bool
	// Exact suppresses the per-level log lines for non-exact categorical
	// mappings; unmapped levels still become NaN and still produce warnings.
	Exact bool
	// Supervised marks the last trained column as the response.
	Supervised bool
	// NoResponse declares that the frame is scored, not re-evaluated: the
	// response is excluded from the adapted frame and its absence is expected.
	NoResponse bool
}

// Reconcile adapts test in place to the trained names and domains:
//   - training columns absent from test produce a warning and, when
//     Expensive, a constant column of missing tagged with the trained domain
//   - categorical columns are renumbered onto the trained level indices;
//     feature levels unknown to the model become NaN with a warning
//   - a categorical response keeps unseen levels by appending them to the
//     trained response domain in sighting order
//   - numeric versus categorical mismatches fail the whole call
//   - zero matching columns fail with core.ErrNoColumnsInCommon
//
// When every trained column has a vec, test is restructured to exactly the
// trained column order; extra test columns are dropped. The returned warnings
// are the complete batch; an empty list means the adaptation was exact.
func Reconcile(names []string, domains []*frame.Domain, test *frame.Frame, missing float64, opts Options) ([]string, error) {
	if len(names) != len(domains) {
		return nil, fmt.Errorf("trained schema has %d names but %d domains", len(names), len(domains))
	}
	target := names
	respIdx := -1
	if opts.Supervised && len(names) > 0 {
		respIdx = len(names) - 1
		if opts.NoResponse {
			target = names[:respIdx]
			respIdx = -1
		}
	}

	anyVec := test.AnyVec()
	if anyVec == nil {
		return nil, core.ErrNoColumnsInCommon
	}

	var msgs []string
	var incompatible []core.ColumnMismatch
	vvecs := make([]*frame.Vec, len(target))
	good := 0
	complete := true

	for i, name := range target {
		vec := test.Vec(name)
		if vec == nil {
			msgs = append(msgs, fmt.Sprintf("Test/Validation dataset is missing training column '%s'", name))
			if opts.Expensive {
				vec = anyVec.MakeCon(missing, domains[i])
			} else {
				complete = false
			}
			vvecs[i] = vec
			continue
		}
		good++

		adapted, warns, mismatch := adaptColumn(name, domains[i], vec, i == respIdx, opts)
		if mismatch != nil {
			incompatible = append(incompatible, *mismatch)
			complete = false
			continue
		}
		msgs = append(msgs, warns...)
		if adapted == nil {
			complete = false
		}
		vvecs[i] = adapted
	}

	if good == 0 {
		return msgs, core.ErrNoColumnsInCommon
	}
	if len(incompatible) > 0 {
		return msgs, core.NewIncompatibleColumnsError(incompatible)
	}
	if complete {
		if err := test.Restructure(target, vvecs); err != nil {
			return msgs, err
		}
	}
	return msgs, nil
}

// AdaptTestForTrain reconciles test against m's trained schema using the
// model's missing-column fill value.
func AdaptTestForTrain(m *model.Model, test *frame.Frame, expensive bool, noResponse bool) ([]string, error) {
	return Reconcile(m.Output.Names, m.Output.Domains, test, m.MissingValue(), Options{
		Expensive:  expensive,
		Supervised: m.IsSupervised(),
		NoResponse: noResponse,
	})
}

// adaptColumn returns the vec to use for one matched column. A nil vec with a
// nil mismatch means the column needs an allocation the caller did not allow.
func adaptColumn(name string, modelDom *frame.Domain, vec *frame.Vec, isResponse bool, opts Options) (*frame.Vec, []string, *core.ColumnMismatch) {
	colDom := vec.Domain()
	switch {
	case modelDom == colDom:
		return vec, nil, nil
	case modelDom == nil:
		return nil, nil, &core.ColumnMismatch{Column: name, Trained: "numeric", Passed: "categorical"}
	case colDom == nil:
		return nil, nil, &core.ColumnMismatch{Column: name, Trained: "categorical", Passed: "numeric"}
	case modelDom.Equal(colDom):
		return vec, nil, nil
	}

	if isResponse {
		res, warns := adaptResponse(name, modelDom, vec, opts)
		return res, warns, nil
	}

	mapping, unmapped := DomainMapping(name, modelDom, colDom, !opts.Exact)
	var warns []string
	if len(unmapped) > 0 {
		warns = append(warns, fmt.Sprintf("Test/Validation dataset column '%s' has levels not trained on: [%s]", name, strings.Join(unmapped, ", ")))
	}
	if !opts.Expensive {
		return nil, warns, nil
	}
	return vec.Transform(mapping, modelDom), warns, nil
}

// adaptResponse keeps every response level. Levels the model never saw are
// appended past the trained levels in sighting order and always reported,
// whatever their position in the incoming domain. A domain this pass already
// extended from modelDom is kept as is.
// This renumbering is a deliberate choice for an unspecified case and should
// be revisited if a different policy is required.
func adaptResponse(name string, modelDom *frame.Domain, vec *frame.Vec, opts Options) (*frame.Vec, []string) {
	colDom := vec.Domain()
	if colDom.ExtendedFrom(modelDom) {
		return vec, nil
	}
	unseen := unseenLevels(vec, modelDom)
	extended := modelDom
	var warns []string
	if len(unseen) > 0 {
		extended = modelDom.Extend(unseen...)
		warns = append(warns, fmt.Sprintf("Test/Validation dataset response column '%s' has levels not trained on, appended to the response domain: [%s]", name, strings.Join(unseen, ", ")))
	}
	if !opts.Expensive {
		return nil, warns
	}
	mapping, _ := DomainMapping(name, extended, colDom, false)
	return vec.Transform(mapping, extended), warns
}

// unseenLevels lists the labels of vec unknown to modelDom in the order they
// are first sighted scanning rows; labels declared by the domain but absent
// from the rows follow in domain order.
func unseenLevels(vec *frame.Vec, modelDom *frame.Domain) []string {
	colDom := vec.Domain()
	known := make([]bool, colDom.Len())
	for i := range known {
		_, known[i] = modelDom.Index(colDom.Level(i))
	}
	var unseen []string
	seen := make([]bool, colDom.Len())
	for c := 0; c < vec.NChunks(); c++ {
		chk := vec.Chunk(c)
		for r := 0; r < chk.Len(); r++ {
			if chk.IsNA0(r) {
				continue
			}
			l := int(chk.At0(r))
			if l < 0 || l >= len(known) || known[l] || seen[l] {
				continue
			}
			seen[l] = true
			unseen = append(unseen, colDom.Level(l))
		}
	}
	for l := range known {
		if !known[l] && !seen[l] {
			unseen = append(unseen, colDom.Level(l))
		}
	}
	return unseen
}

// DomainMapping maps each level index of colDom to the index of the same label
// in modelDom, or -1 when the model does not know the label. The unmapped
// input labels are returned in colDom order. With logNonExact, labels present
// on only one side are logged. Model levels absent from the input simply leave
// gaps in the mapped index space.
func DomainMapping(colName string, modelDom, colDom *frame.Domain, logNonExact bool) ([]int, []string) {
	mapping := make([]int, colDom.Len())
	var unmapped []string
	used := make([]bool, modelDom.Len())
	for i := range mapping {
		label := colDom.Level(i)
		idx, ok := modelDom.Index(label)
		if !ok {
			mapping[i] = -1
			unmapped = append(unmapped, label)
			if logNonExact {
				logger.Warnf("Column %s: level '%s' was not seen in training", colName, label)
			}
			continue
		}
		mapping[i] = idx
		used[idx] = true
	}
	if logNonExact {
		for i, u := range used {
			if !u {
				logger.Debugf("Column %s: trained level '%s' is absent from the input", colName, modelDom.Level(i))
			}
		}
	}
	return mapping, unmapped
}
