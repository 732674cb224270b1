package model

import (
	"fmt"
	"sort"

	"scorekit/domain/core"
	"scorekit/domain/frame"
)

// BaseParameters are the fields every model family shares. Parameters are
// immutable by contract once a build starts; nothing enforces it, so callers
// must not edit a value after handing it to a builder.
type BaseParameters struct {
	Destination core.Key     `json:"destination,omitempty"` // desired model key, generated when empty
	Train       *frame.Frame `json:"-"`                     // frame the model is trained on
	Valid       *frame.Frame `json:"-"`                     // optional validation frame
	// ResponseColumn names the supervised target; empty for unsupervised families.
	ResponseColumn     string   `json:"response_column,omitempty"`
	IgnoredColumns     []string `json:"ignored_columns,omitempty"`
	DropNA20Cols       bool     `json:"drop_na20_cols"` // drop columns with more than 20% missing values
	ScoreEachIteration bool     `json:"score_each_iteration"`
}

// TrainFrame returns the training frame
func (b *BaseParameters) TrainFrame() *frame.Frame {
	return b.Train
}

// ValidFrame returns the validation frame, or the training frame when no
// validation frame was given.
func (b *BaseParameters) ValidFrame() *frame.Frame {
	if b.Valid == nil {
		return b.Train
	}
	return b.Valid
}

// Field is one named, hashable configuration value.
type Field struct {
	Name  string
	Value interface{}
}

// Parameters is implemented by every family's configuration type. Each family
// lists its own hashable fields so no reflection is needed to fingerprint it.
type Parameters interface {
	Base() *BaseParameters
	Algo() Algo
	ChecksumFields() []Field
}

func baseFields(b *BaseParameters) []Field {
	return []Field{
		{Name: "response_column", Value: b.ResponseColumn},
		{Name: "drop_na20_cols", Value: b.DropNA20Cols},
		{Name: "score_each_iteration", Value: b.ScoreEachIteration},
	}
}

// Checksum fingerprints a build request: the product of every field hash, the
// training frame checksum, the validation frame checksum (or a sentinel) and
// the ignored column list hash. Zero factors are remapped to sentinels so no
// field can annihilate the product.
//
// Equal checksums mean "probably the same build request". This is a caching
// heuristic and must not be used as proof of equality or as a security check.
func Checksum(p Parameters) (uint64, error) {
	b := p.Base()
	if b == nil || b.Train == nil {
		return 0, core.NewInvalidParametersError("train", "training frame is required")
	}

	fields := append(baseFields(b), p.ChecksumFields()...)
	fieldProduct := core.NewProduct()
	fieldProduct.Mul(core.HashString(string(p.Algo())), core.ZeroFieldSentinel)
	for _, f := range fields {
		h, ok, err := hashField(f)
		if err != nil {
			return 0, err
		}
		if ok {
			fieldProduct.Mul(h, core.ZeroFieldSentinel)
		}
	}

	sum := core.NewProduct()
	sum.Mul(fieldProduct.Value(), core.ZeroProductSentinel)
	sum.Mul(b.Train.Checksum(), core.ZeroProductSentinel)
	if b.Valid == nil {
		sum.Mul(core.AbsentValidSentinel, core.ZeroProductSentinel)
	} else {
		sum.Mul(b.Valid.Checksum(), core.ZeroProductSentinel)
	}
	if b.IgnoredColumns == nil {
		sum.Mul(core.AbsentListSentinel, core.ZeroProductSentinel)
	} else {
		sum.Mul(core.HashStrings(b.IgnoredColumns), core.ZeroProductSentinel)
	}
	return core.NonZero(sum.Value(), core.ZeroProductSentinel), nil
}

// hashField returns ok=false for nil values, which do not contribute.
func hashField(f Field) (uint64, bool, error) {
	h := core.NewHasher().String(f.Name)
	switch v := f.Value.(type) {
	case nil:
		return 0, false, nil
	case bool:
		if v {
			h.Uint64(1)
		} else {
			h.Uint64(0)
		}
	case int:
		h.Uint64(uint64(v))
	case int64:
		h.Uint64(uint64(v))
	case float64:
		h.Float64(v)
	case string:
		h.String(v)
	case core.Key:
		h.String(string(v))
	case []string:
		if v == nil {
			return 0, false, nil
		}
		h.Strings(v)
	case []float64:
		if v == nil {
			return 0, false, nil
		}
		h.Uint64(uint64(len(v)))
		for _, x := range v {
			h.Float64(x)
		}
	case map[string]int:
		if v == nil {
			return 0, false, nil
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.String(k).Uint64(uint64(v[k]))
		}
	case fmt.Stringer:
		h.String(v.String())
	default:
		return 0, false, core.NewChecksumFieldError(f.Name, f.Value)
	}
	return h.Sum(), true, nil
}
