package model

import (
	"time"

	"scorekit/domain/core"
)

// ModelMetrics records how a model performed on one frame. Records are
// append-only: rescoring the same frame adds a new record.
type ModelMetrics struct {
	Key           core.Key  `json:"key"`
	ModelKey      core.Key  `json:"model_key"`
	FrameKey      core.Key  `json:"frame_key"`
	FrameChecksum uint64    `json:"frame_checksum"`
	Category      Category  `json:"category"`
	NObs          int64     `json:"nobs"`
	CreatedAt     time.Time `json:"created_at"`

	// Regression
	MSE  float64  `json:"mse"`
	RMSE float64  `json:"rmse"`
	R2   *float64 `json:"r2,omitempty"` // nil when the response is constant

	// Classification
	Domain          []string  `json:"domain,omitempty"`
	ConfusionMatrix [][]int64 `json:"confusion_matrix,omitempty"` // [actual][predicted]
	Error           float64   `json:"error"`                      // misclassification rate
	Logloss         float64   `json:"logloss"`
	HitRatios       []float64 `json:"hit_ratios,omitempty"`
	AUC             *float64  `json:"auc,omitempty"` // binomial only, nil when one class is absent
}

// NewModelMetrics creates an empty record for model m scored on a frame.
func NewModelMetrics(modelKey, frameKey core.Key, frameChecksum uint64, category Category) *ModelMetrics {
	return &ModelMetrics{
		Key:           core.NewPrefixedKey("metrics"),
		ModelKey:      modelKey,
		FrameKey:      frameKey,
		FrameChecksum: frameChecksum,
		Category:      category,
		CreatedAt:     time.Now(),
	}
}
