package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"scorekit/domain/core"
	"scorekit/domain/model"
	"scorekit/ports"

	"github.com/jmoiron/sqlx"
)

// metricsRepository implements the MetricsRepository interface
type metricsRepository struct {
	db *sqlx.DB
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(db *sqlx.DB) ports.MetricsRepository {
	return &metricsRepository{db: db}
}

// Save inserts a metrics record. The full record is kept as JSON; the keyed
// columns exist for lookups and the cascade from models.
func (r *metricsRepository) Save(ctx context.Context, mm *model.ModelMetrics) error {
	metricsJSON, err := json.Marshal(mm)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `INSERT INTO model_metrics (
		key, model_key, frame_key, frame_checksum, category, nobs, metrics, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8
	)`

	_, err = r.db.ExecContext(ctx, query,
		mm.Key, mm.ModelKey, mm.FrameKey, int64(mm.FrameChecksum),
		mm.Category.String(), mm.NObs, metricsJSON, mm.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save model metrics: %w", err)
	}
	return nil
}

// Get retrieves a metrics record by key
func (r *metricsRepository) Get(ctx context.Context, key core.Key) (*model.ModelMetrics, error) {
	var metricsJSON []byte
	err := r.db.QueryRowContext(ctx, `SELECT metrics FROM model_metrics WHERE key = $1`, key).Scan(&metricsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("model metrics", key)
		}
		return nil, fmt.Errorf("failed to get model metrics: %w", err)
	}
	return unmarshalMetrics(metricsJSON)
}

// ListByModel returns a model's metrics in the order they were recorded
func (r *metricsRepository) ListByModel(ctx context.Context, modelKey core.Key) ([]*model.ModelMetrics, error) {
	var blobs [][]byte
	err := r.db.SelectContext(ctx, &blobs,
		`SELECT metrics FROM model_metrics WHERE model_key = $1 ORDER BY created_at, key`, modelKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list model metrics: %w", err)
	}
	out := make([]*model.ModelMetrics, 0, len(blobs))
	for _, b := range blobs {
		mm, err := unmarshalMetrics(b)
		if err != nil {
			return nil, err
		}
		out = append(out, mm)
	}
	return out, nil
}

// DeleteByModel removes every metrics record of a model
func (r *metricsRepository) DeleteByModel(ctx context.Context, modelKey core.Key) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM model_metrics WHERE model_key = $1`, modelKey)
	if err != nil {
		return 0, fmt.Errorf("failed to delete model metrics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted metrics: %w", err)
	}
	return int(n), nil
}

func unmarshalMetrics(b []byte) (*model.ModelMetrics, error) {
	var mm model.ModelMetrics
	if err := json.Unmarshal(b, &mm); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model metrics: %w", err)
	}
	return &mm, nil
}
