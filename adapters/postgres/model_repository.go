package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"scorekit/domain/core"
	"scorekit/domain/model"
	"scorekit/ports"

	"github.com/jmoiron/sqlx"
)

// modelRepository implements the ModelRepository interface
type modelRepository struct {
	db    *sqlx.DB
	codec ports.ModelCodec
}

// NewModelRepository creates a model repository. The codec restores the
// family-specific parameters and scorer.
func NewModelRepository(db *sqlx.DB, codec ports.ModelCodec) ports.ModelRepository {
	return &modelRepository{db: db, codec: codec}
}

const modelColumns = `key, algo, params_checksum, output_checksum, model_checksum,
	params, output, scorer, warnings, created_at`

// modelRow mirrors a models row
type modelRow struct {
	Key            string    `db:"key"`
	Algo           string    `db:"algo"`
	ParamsChecksum int64     `db:"params_checksum"`
	OutputChecksum int64     `db:"output_checksum"`
	ModelChecksum  int64     `db:"model_checksum"`
	Params         []byte    `db:"params"`
	Output         []byte    `db:"output"`
	Scorer         []byte    `db:"scorer"`
	Warnings       []byte    `db:"warnings"`
	CreatedAt      time.Time `db:"created_at"`
}

// Save inserts the record or replaces the stored output and warnings of an
// existing one.
func (r *modelRepository) Save(ctx context.Context, rec *ports.ModelRecord) error {
	m := rec.Model
	params, scorer, err := r.codec.Encode(m)
	if err != nil {
		return fmt.Errorf("failed to encode model %s: %w", m.Key, err)
	}
	outputJSON, err := json.Marshal(m.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	warningsJSON, err := json.Marshal(m.Warnings())
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	query := `INSERT INTO models (
		key, algo, category, params_checksum, output_checksum, model_checksum,
		params, output, scorer, warnings, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW()
	)
	ON CONFLICT (key) DO UPDATE SET
		output = EXCLUDED.output,
		output_checksum = EXCLUDED.output_checksum,
		model_checksum = EXCLUDED.model_checksum,
		warnings = EXCLUDED.warnings,
		updated_at = NOW()`

	_, err = r.db.ExecContext(ctx, query,
		m.Key, m.Params.Algo(), m.Output.Category.String(),
		int64(rec.ParamsChecksum), int64(rec.OutputChecksum), int64(rec.ModelChecksum),
		params, outputJSON, scorer, warningsJSON, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}

// Get retrieves a model by key
func (r *modelRepository) Get(ctx context.Context, key core.Key) (*ports.ModelRecord, error) {
	var row modelRow
	err := r.db.GetContext(ctx, &row, `SELECT `+modelColumns+` FROM models WHERE key = $1`, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("model", key)
		}
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return r.decode(row)
}

// FindByParamsChecksum returns the newest model trained with a matching
// parameter checksum.
func (r *modelRepository) FindByParamsChecksum(ctx context.Context, checksum uint64) (*ports.ModelRecord, error) {
	var row modelRow
	err := r.db.GetContext(ctx, &row, `SELECT `+modelColumns+` FROM models
		WHERE params_checksum = $1 ORDER BY created_at DESC LIMIT 1`, int64(checksum))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to find model by checksum: %w", err)
	}
	return r.decode(row)
}

// List returns every stored model, oldest first
func (r *modelRepository) List(ctx context.Context) ([]*ports.ModelRecord, error) {
	var rows []modelRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+modelColumns+` FROM models ORDER BY created_at, key`); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	out := make([]*ports.ModelRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := r.decode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes the model and its metrics in one transaction
func (r *modelRepository) Delete(ctx context.Context, key core.Key) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM model_metrics WHERE model_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete model metrics: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM models WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.NewNotFoundError("model", key)
	}
	return tx.Commit()
}

func (r *modelRepository) decode(row modelRow) (*ports.ModelRecord, error) {
	params, scorer, err := r.codec.Decode(model.Algo(row.Algo), row.Params, row.Scorer)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", row.Key, err)
	}
	out := &model.Output{}
	if err := json.Unmarshal(row.Output, out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output of model %s: %w", row.Key, err)
	}
	m, err := model.New(core.Key(row.Key), params, out, scorer)
	if err != nil {
		return nil, err
	}
	if len(row.Warnings) > 0 {
		var warnings []string
		if err := json.Unmarshal(row.Warnings, &warnings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal warnings of model %s: %w", row.Key, err)
		}
		for _, w := range warnings {
			m.AddWarning(w)
		}
	}
	return &ports.ModelRecord{
		Model:          m,
		ParamsChecksum: uint64(row.ParamsChecksum),
		OutputChecksum: uint64(row.OutputChecksum),
		ModelChecksum:  uint64(row.ModelChecksum),
		CreatedAt:      row.CreatedAt,
	}, nil
}
