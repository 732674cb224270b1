package ports

import (
	"context"
	"time"

	"scorekit/domain/core"
	"scorekit/domain/model"
)

// ModelRecord is a persisted model with the checksums taken when it was saved.
type ModelRecord struct {
	Model          *model.Model
	ParamsChecksum uint64
	OutputChecksum uint64
	ModelChecksum  uint64
	CreatedAt      time.Time
}

// NewModelRecord snapshots m's checksums. It fails when the parameters cannot
// be fingerprinted, e.g. because the training frame is gone.
func NewModelRecord(m *model.Model) (*ModelRecord, error) {
	pc, err := model.Checksum(m.Params)
	if err != nil {
		return nil, err
	}
	mc, err := m.Checksum()
	if err != nil {
		return nil, err
	}
	return &ModelRecord{
		Model:          m,
		ParamsChecksum: pc,
		OutputChecksum: m.Output.Checksum(),
		ModelChecksum:  mc,
		CreatedAt:      time.Now(),
	}, nil
}

// Fresh reports whether the stored model still matches a request with the
// given parameter checksum. Checksums are heuristic fingerprints; a match is
// a reuse hint, not proof that the configurations are equal.
func (r *ModelRecord) Fresh(paramsChecksum uint64) bool {
	if r.ParamsChecksum != paramsChecksum {
		return false
	}
	return r.ModelChecksum == core.NonZero(paramsChecksum*r.OutputChecksum, core.ZeroProductSentinel)
}

// ModelRepository persists trained models
type ModelRepository interface {
	Save(ctx context.Context, rec *ModelRecord) error
	Get(ctx context.Context, key core.Key) (*ModelRecord, error)
	FindByParamsChecksum(ctx context.Context, checksum uint64) (*ModelRecord, error)
	List(ctx context.Context) ([]*ModelRecord, error)
	// Delete removes the model and every metrics record that references it.
	Delete(ctx context.Context, key core.Key) error
}

// MetricsRepository persists model metrics. Records are never updated.
type MetricsRepository interface {
	Save(ctx context.Context, mm *model.ModelMetrics) error
	Get(ctx context.Context, key core.Key) (*model.ModelMetrics, error)
	ListByModel(ctx context.Context, modelKey core.Key) ([]*model.ModelMetrics, error)
	DeleteByModel(ctx context.Context, modelKey core.Key) (int, error)
}

// ModelCodec restores the family-specific parts of a stored model.
type ModelCodec interface {
	Encode(m *model.Model) (params []byte, scorer []byte, err error)
	Decode(algo model.Algo, params []byte, scorer []byte) (model.Parameters, model.RowScorer, error)
}
