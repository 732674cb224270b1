package model

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"scorekit/domain/core"
	"scorekit/domain/frame"
)

// Output is the post-training description of a model: the data shape it is
// valid on and the metrics recorded against it. After construction only the
// metric list grows.
type Output struct {
	// Names are the training columns; for supervised models the response is last.
	Names   []string
	Domains []*frame.Domain
	// Supervised is true when the last column is a response.
	Supervised bool
	Category   Category

	State             JobState
	TrainingStartTime time.Time
	TrainingDuration  time.Duration

	mu           sync.Mutex
	modelMetrics []core.Key
}

// NewOutput captures the schema of the cleaned-up training frame.
func NewOutput(schema frame.Schema, supervised bool) (*Output, error) {
	if schema.NumCols() == 0 {
		return nil, core.NewInvalidParametersError("train", "training frame has no columns")
	}
	if supervised && schema.NumCols() < 2 {
		return nil, core.NewInvalidParametersError("train", "supervised model needs at least one feature and a response")
	}
	o := &Output{
		Names:      append([]string(nil), schema.Names...),
		Domains:    append([]*frame.Domain(nil), schema.Domains...),
		Supervised: supervised,
		State:      JobCreated,
	}
	o.Category = DeriveCategory(o.Domains, supervised)
	return o, nil
}

// DeriveCategory picks the category from the response domain.
func DeriveCategory(domains []*frame.Domain, supervised bool) Category {
	if !supervised {
		return CategoryClustering
	}
	if len(domains) == 0 {
		return CategoryUnknown
	}
	resp := domains[len(domains)-1]
	switch {
	case resp == nil:
		return CategoryRegression
	case resp.Len() > 2:
		return CategoryMultinomial
	default:
		return CategoryBinomial
	}
}

// AllNames returns every column name including the response
func (o *Output) AllNames() []string { return o.Names }

// NFeatures returns the number of input columns
func (o *Output) NFeatures() int {
	if o.Supervised {
		return len(o.Names) - 1
	}
	return len(o.Names)
}

// FeatureNames returns the input columns in trained order
func (o *Output) FeatureNames() []string {
	return o.Names[:o.NFeatures()]
}

// ResponseName returns the response column, "" when unsupervised.
func (o *Output) ResponseName() string {
	if !o.Supervised {
		return ""
	}
	return o.Names[len(o.Names)-1]
}

// ClassNames returns the response levels, nil for regression.
func (o *Output) ClassNames() []string {
	if !o.Supervised {
		return nil
	}
	return o.Domains[len(o.Domains)-1].Levels()
}

// IsClassifier reports whether the response is categorical
func (o *Output) IsClassifier() bool {
	return o.Supervised && o.Domains[len(o.Domains)-1] != nil
}

// NClasses returns the class count, 1 for regression and clustering.
func (o *Output) NClasses() int {
	if !o.IsClassifier() {
		return 1
	}
	return o.Domains[len(o.Domains)-1].Len()
}

// AddModelMetrics appends a metrics reference. Earlier references are kept.
func (o *Output) AddModelMetrics(key core.Key) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.modelMetrics = append(o.modelMetrics, key)
}

// ModelMetrics returns a copy of the metric references
func (o *Output) ModelMetrics() []core.Key {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]core.Key(nil), o.modelMetrics...)
}

// Checksum is hash(names) * hash(domains) * ordinal(category), with zero
// factors remapped. Any change to the trained schema changes it.
func (o *Output) Checksum() uint64 {
	p := core.NewProduct()
	if o.Names == nil {
		p.Mul(core.AbsentNamesSentinel, core.ZeroProductSentinel)
	} else {
		p.Mul(core.HashStrings(o.Names), core.ZeroProductSentinel)
	}
	if o.Domains == nil {
		p.Mul(core.ZeroFieldSentinel, core.ZeroProductSentinel)
	} else {
		h := core.NewHasher()
		for _, d := range o.Domains {
			h.Strings(d.Levels())
		}
		p.Mul(h.Sum(), core.ZeroFieldSentinel)
	}
	p.Mul(uint64(o.Category), core.ZeroProductSentinel)
	return p.Value()
}

type outputJSON struct {
	Names              []string   `json:"names"`
	Domains            [][]string `json:"domains"`
	Supervised         bool       `json:"supervised"`
	Category           string     `json:"category"`
	ModelMetrics       []core.Key `json:"model_metrics"`
	State              JobState   `json:"state"`
	TrainingStartTime  time.Time  `json:"training_start_time"`
	TrainingDurationMs int64      `json:"training_duration_ms"`
}

// MarshalJSON encodes domains as level lists, null for numeric columns.
func (o *Output) MarshalJSON() ([]byte, error) {
	doms := make([][]string, len(o.Domains))
	for i, d := range o.Domains {
		doms[i] = d.Levels()
	}
	return json.Marshal(outputJSON{
		Names:              o.Names,
		Domains:            doms,
		Supervised:         o.Supervised,
		Category:           o.Category.String(),
		ModelMetrics:       o.ModelMetrics(),
		State:              o.State,
		TrainingStartTime:  o.TrainingStartTime,
		TrainingDurationMs: o.TrainingDuration.Milliseconds(),
	})
}

// UnmarshalJSON restores an Output written by MarshalJSON.
func (o *Output) UnmarshalJSON(data []byte) error {
	var raw outputJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Domains) != len(raw.Names) {
		return fmt.Errorf("output has %d names but %d domains", len(raw.Names), len(raw.Domains))
	}
	o.Names = raw.Names
	o.Domains = make([]*frame.Domain, len(raw.Domains))
	for i, levels := range raw.Domains {
		if levels != nil {
			o.Domains[i] = frame.NewDomain(levels...)
		}
	}
	o.Supervised = raw.Supervised
	o.Category = ParseCategory(raw.Category)
	o.State = raw.State
	o.TrainingStartTime = raw.TrainingStartTime
	o.TrainingDuration = time.Duration(raw.TrainingDurationMs) * time.Millisecond
	o.mu.Lock()
	o.modelMetrics = raw.ModelMetrics
	o.mu.Unlock()
	return nil
}
