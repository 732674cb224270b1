// Package algos maps model families to their implementations and encodes the
// family-specific parts of a model for storage.
package algos

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"scorekit/domain/core"
	"scorekit/domain/model"
	"scorekit/internal/algos/glm"
	"scorekit/internal/algos/kmeans"
	"scorekit/internal/algos/tree"
	"scorekit/ports"
)

// Registry is a read-only set of families keyed by algo
type Registry struct {
	families map[model.Algo]ports.ModelFamily
}

var _ ports.ModelCodec = (*Registry)(nil)

// NewRegistry registers fams; a later family replaces an earlier one with the
// same algo.
func NewRegistry(fams ...ports.ModelFamily) *Registry {
	r := &Registry{families: make(map[model.Algo]ports.ModelFamily, len(fams))}
	for _, f := range fams {
		r.families[f.Algo()] = f
	}
	return r
}

// Default registers every built-in family
func Default() *Registry {
	return NewRegistry(glm.Family{}, tree.Family{}, kmeans.Family{})
}

// Get returns the family for algo
func (r *Registry) Get(algo model.Algo) (ports.ModelFamily, error) {
	f, ok := r.families[algo]
	if !ok {
		return nil, core.NewUnimplementedError(fmt.Sprintf("model family %q", algo))
	}
	return f, nil
}

// Algos lists the registered algos in name order
func (r *Registry) Algos() []model.Algo {
	out := make([]model.Algo, 0, len(r.families))
	for a := range r.families {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Encode serializes parameters (without frames) and the scorer as JSON.
func (r *Registry) Encode(m *model.Model) ([]byte, []byte, error) {
	params, err := json.Marshal(m.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding %s parameters: %w", m.Params.Algo(), err)
	}
	scorer, err := json.Marshal(m.Scorer)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding %s scorer: %w", m.Params.Algo(), err)
	}
	return params, scorer, nil
}

// Decode restores parameters and scorer written by Encode. The restored
// parameters carry no frames.
func (r *Registry) Decode(algo model.Algo, params []byte, scorer []byte) (model.Parameters, model.RowScorer, error) {
	f, err := r.Get(algo)
	if err != nil {
		return nil, nil, err
	}
	p := f.NewParameters()
	if err := json.Unmarshal(params, p); err != nil {
		return nil, nil, fmt.Errorf("decoding %s parameters: %w", algo, err)
	}
	s := f.NewScorer()
	if err := json.Unmarshal(scorer, s); err != nil {
		return nil, nil, fmt.Errorf("decoding %s scorer: %w", algo, err)
	}
	return p, s, nil
}

// ParseParameters decodes a JSON parameter object for algo on top of the
// family defaults. Empty raw yields the defaults.
func (r *Registry) ParseParameters(algo model.Algo, raw []byte) (model.Parameters, error) {
	f, err := r.Get(algo)
	if err != nil {
		return nil, err
	}
	p := f.NewParameters()
	if len(raw) == 0 {
		return p, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, core.NewInvalidParametersError(string(algo), err.Error())
	}
	return p, nil
}
