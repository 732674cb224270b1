package model

import (
	"fmt"
	"math"
	"sync"

	"scorekit/domain/core"

	"gonum.org/v1/gonum/floats"
)

// RowScorer is the per-family scoring capability. Score0 receives one row in
// trained feature order and fills preds: preds[0] is the predicted label or
// value, preds[1:] the class probabilities for classifiers. Implementations
// must not retain either slice.
type RowScorer interface {
	Score0(data []float64, preds []float64) []float64
}

// MissingFiller lets a family override the value used to fill training
// columns that are absent from a scoring frame. The default is NaN.
type MissingFiller interface {
	MissingValue() float64
}

// Model composes exactly one Parameters and one Output with the family's
// row scorer. Nothing else holds references to its Parameters or Output.
type Model struct {
	Key    core.Key
	Params Parameters
	Output *Output
	Scorer RowScorer

	mu       sync.Mutex
	warnings []string
}

// New assembles a model; params, output and scorer are required.
func New(key core.Key, params Parameters, output *Output, scorer RowScorer) (*Model, error) {
	if params == nil || output == nil || scorer == nil {
		return nil, fmt.Errorf("model %s: params, output and scorer are required", key)
	}
	if key.IsEmpty() {
		key = core.NewPrefixedKey(string(params.Algo()))
	}
	return &Model{Key: key, Params: params, Output: output, Scorer: scorer}, nil
}

// Checksum is params.Checksum * output.Checksum. A persisted model whose stored
// checksum no longer matches is stale relative to its configuration. Like the
// parts it is built from, it is a heuristic fingerprint only.
func (m *Model) Checksum() (uint64, error) {
	pc, err := Checksum(m.Params)
	if err != nil {
		return 0, err
	}
	return core.NonZero(pc*m.Output.Checksum(), core.ZeroProductSentinel), nil
}

// IsSupervised reports whether a response column was used during training.
func (m *Model) IsSupervised() bool {
	return m.Output.Supervised
}

// AddWarning appends a build or scoring warning
func (m *Model) AddWarning(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings = append(m.warnings, s)
}

// Warnings returns a copy of the warnings
func (m *Model) Warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warnings...)
}

// MissingValue is the fill value for missing columns during adaptation.
func (m *Model) MissingValue() float64 {
	if mf, ok := m.Scorer.(MissingFiller); ok {
		return mf.MissingValue()
	}
	return math.NaN()
}

// NPreds returns the prediction vector length: 1 for regression and
// clustering, nclasses+1 for classifiers.
func (m *Model) NPreds() int {
	if m.Output.IsClassifier() {
		return m.Output.NClasses() + 1
	}
	return 1
}

// ScoreRow scores a single row already in trained feature order. For
// classifiers it returns the class index, otherwise the predicted value.
func (m *Model) ScoreRow(data []float64) float64 {
	preds := m.Scorer.Score0(data, make([]float64, m.NPreds()))
	if m.Output.IsClassifier() {
		return float64(MaxIndex(preds[1:]))
	}
	return preds[0]
}

// MaxIndex returns the index of the largest entry, the lowest index on ties,
// skipping NaNs. It returns -1 for an empty slice.
func MaxIndex(p []float64) int {
	if len(p) == 0 {
		return -1
	}
	return floats.MaxIdx(p)
}
