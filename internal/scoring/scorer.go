// Package scoring applies a trained model to every row of a frame.
package scoring

import (
	"context"
	"fmt"
	"time"

	"scorekit/domain/frame"
	"scorekit/domain/model"
	"scorekit/internal/adapt"
	"scorekit/internal/logging"
	"scorekit/internal/metrics"
	"scorekit/ports"
)

var logger = logging.New("Scorer")

// PredictColumn names the first output column
const PredictColumn = "predict"

// cancelCheckRows is how often a chunk worker polls for cancellation.
const cancelCheckRows = 1024

// Options controls a scoring call
type Options struct {
	// ComputeMetrics records model metrics when the frame carries the response.
	ComputeMetrics bool
	// Exact selects strict categorical mapping during adaptation.
	Exact bool
}

// Result is the outcome of a successful scoring call
type Result struct {
	Predictions *frame.Frame
	// Metrics is nil unless requested and the response was present and
	// readable by the model.
	Metrics  *model.ModelMetrics
	Warnings []string
}

// Scorer scores frames chunk by chunk through an executor.
type Scorer struct {
	exec ports.ChunkExecutor
}

// NewScorer creates a scorer running on exec
func NewScorer(exec ports.ChunkExecutor) *Scorer {
	return &Scorer{exec: exec}
}

// Score adapts a copy of fr to m's trained schema and scores every row. The
// caller's frame is never restructured. The predictions frame has a "predict"
// column followed, for classifiers, by one probability column per class.
// Either every row is scored or an error is returned and no frame is.
func (s *Scorer) Score(ctx context.Context, m *model.Model, fr *frame.Frame, opts Options) (*Result, error) {
	start := time.Now()
	work := fr.Clone()

	var response *frame.Vec
	if m.IsSupervised() {
		if ri := work.Find(m.Output.ResponseName()); ri >= 0 {
			response = work.Remove(ri)
		}
	}
	warns, err := adapt.Reconcile(m.Output.Names, m.Output.Domains, work, m.MissingValue(), adapt.Options{
		Expensive:  true,
		Exact:      opts.Exact,
		Supervised: m.IsSupervised(),
		NoResponse: true,
	})
	if err != nil {
		return nil, err
	}

	var actual *frame.Vec
	if response != nil && opts.ComputeMetrics {
		var rwarns []string
		actual, rwarns = adaptActual(m, response, opts.Exact)
		warns = append(warns, rwarns...)
	}

	preds, err := s.predict(ctx, m, work)
	if err != nil {
		return nil, err
	}

	res := &Result{Predictions: preds, Warnings: warns}
	if opts.ComputeMetrics && actual != nil {
		mm, err := metrics.Compute(m, actual, preds, fr.Key(), fr.Checksum())
		if err != nil {
			return nil, err
		}
		m.Output.AddModelMetrics(mm.Key)
		res.Metrics = mm
	}

	for _, w := range warns {
		logger.Debugf("Model %s: %s", m.Key, w)
	}
	logger.Infof("Model %s scored %d rows in %d chunks (%v, %d warnings)",
		m.Key, preds.NumRows(), preds.NChunks(), time.Since(start), len(warns))
	return res, nil
}

// adaptActual reconciles the response on its own. A response the model cannot
// read only costs the metrics, never the predictions.
func adaptActual(m *model.Model, response *frame.Vec, exact bool) (*frame.Vec, []string) {
	name := m.Output.ResponseName()
	last := len(m.Output.Names) - 1
	fr, err := frame.New([]string{name}, []*frame.Vec{response})
	if err == nil {
		var warns []string
		warns, err = adapt.Reconcile(m.Output.Names[last:], m.Output.Domains[last:], fr, m.MissingValue(), adapt.Options{
			Expensive:  true,
			Exact:      exact,
			Supervised: true,
		})
		if err == nil {
			return fr.VecAt(0), warns
		}
	}
	logger.Warnf("Model %s: response column %s unusable, skipping metrics: %v", m.Key, name, err)
	return nil, []string{fmt.Sprintf("Test/Validation dataset response column '%s' cannot be compared with predictions, metrics skipped: %v", name, err)}
}

// predict runs the row scorer over features, which must already be in trained
// feature order.
func (s *Scorer) predict(ctx context.Context, m *model.Model, features *frame.Frame) (*frame.Frame, error) {
	tmpl := features.AnyVec()
	if tmpl == nil {
		return nil, fmt.Errorf("model %s: nothing to score", m.Key)
	}
	if features.NumCols() != m.Output.NFeatures() {
		return nil, fmt.Errorf("model %s: adapted frame has %d features, expected %d", m.Key, features.NumCols(), m.Output.NFeatures())
	}

	names, outs := allocateOutputs(m, tmpl)
	in := features.Vecs()
	classifier := m.Output.IsClassifier()
	npreds := m.NPreds()

	err := s.exec.DoAll(ctx, tmpl.NChunks(), func(ctx context.Context, c int) error {
		inChunks := make([]*frame.Chunk, len(in))
		for i, v := range in {
			inChunks[i] = v.Chunk(c)
		}
		outChunks := make([]*frame.Chunk, len(outs))
		for i, v := range outs {
			outChunks[i] = v.Chunk(c)
		}

		tmp := make([]float64, len(in))
		p := make([]float64, npreds)
		rows := inChunks[0].Len()
		for row := 0; row < rows; row++ {
			if row%cancelCheckRows == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			for i, ch := range inChunks {
				tmp[i] = ch.At0(row)
			}
			for k := range p {
				p[k] = 0
			}
			p = m.Scorer.Score0(tmp, p)
			if classifier {
				p[0] = float64(model.MaxIndex(p[1:]))
			}
			for i, ch := range outChunks {
				ch.Set0(row, p[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frame.New(names, outs)
}

// allocateOutputs creates the prediction vecs on the layout of tmpl.
func allocateOutputs(m *model.Model, tmpl *frame.Vec) ([]string, []*frame.Vec) {
	if !m.Output.IsClassifier() {
		return []string{PredictColumn}, []*frame.Vec{tmpl.MakeZero(nil)}
	}
	respDom := m.Output.Domains[len(m.Output.Domains)-1]
	names := append([]string{PredictColumn}, m.Output.ClassNames()...)
	vecs := append([]*frame.Vec{tmpl.MakeZero(respDom)}, tmpl.MakeZeros(m.Output.NClasses())...)
	return names, vecs
}
