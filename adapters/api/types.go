package api

import (
	"encoding/json"
	"math"
	"time"

	"scorekit/domain/frame"
	"scorekit/domain/model"
	"scorekit/ports"
)

// TrainRequest asks for a model to be trained, or reused when an identical
// request was trained before.
type TrainRequest struct {
	Algo       model.Algo      `json:"algo"`
	TrainPath  string          `json:"train_path"`
	ValidPath  string          `json:"valid_path,omitempty"`
	Sheet      string          `json:"sheet,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// FrameRequest names a data file to score or adapt
type FrameRequest struct {
	Path  string `json:"path"`
	Sheet string `json:"sheet,omitempty"`
}

// ModelSummary describes a stored model
type ModelSummary struct {
	Key            string          `json:"key"`
	Algo           model.Algo      `json:"algo"`
	Category       string          `json:"category"`
	ParamsChecksum string          `json:"params_checksum"`
	ModelChecksum  string          `json:"model_checksum"`
	CreatedAt      time.Time       `json:"created_at"`
	Output         *model.Output   `json:"output,omitempty"`
	Parameters     json.RawMessage `json:"parameters,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// TrainResponse is the outcome of a train request
type TrainResponse struct {
	Model   ModelSummary          `json:"model"`
	Reused  bool                  `json:"reused"`
	Metrics []*model.ModelMetrics `json:"metrics"`
}

// Column is one predictions column. Missing values are null.
type Column struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
	Labels []string   `json:"labels,omitempty"`
}

// ScoreResponse carries the predictions frame
type ScoreResponse struct {
	Rows     int64               `json:"rows"`
	Columns  []Column            `json:"columns"`
	Metrics  *model.ModelMetrics `json:"metrics,omitempty"`
	Warnings []string            `json:"warnings"`
}

// AdaptResponse lists what scoring would change
type AdaptResponse struct {
	Warnings []string `json:"warnings"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func summarize(rec *ports.ModelRecord, detail bool) ModelSummary {
	m := rec.Model
	s := ModelSummary{
		Key:            m.Key.String(),
		Algo:           m.Params.Algo(),
		Category:       m.Output.Category.String(),
		ParamsChecksum: hex(rec.ParamsChecksum),
		ModelChecksum:  hex(rec.ModelChecksum),
		CreatedAt:      rec.CreatedAt,
	}
	if detail {
		s.Output = m.Output
		s.Warnings = m.Warnings()
		if raw, err := json.Marshal(m.Params); err == nil {
			s.Parameters = raw
		}
	}
	return s
}

func encodeFrame(fr *frame.Frame) []Column {
	cols := make([]Column, fr.NumCols())
	for i, name := range fr.Names() {
		v := fr.VecAt(i)
		values := v.Values()
		col := Column{Name: name, Values: make([]*float64, len(values))}
		dom := v.Domain()
		if dom != nil {
			col.Labels = make([]string, len(values))
		}
		for r, x := range values {
			if math.IsNaN(x) {
				continue
			}
			x := x
			col.Values[r] = &x
			if idx := int(x); dom != nil && idx >= 0 && idx < dom.Len() {
				col.Labels[r] = dom.Level(idx)
			}
		}
		cols[i] = col
	}
	return cols
}
