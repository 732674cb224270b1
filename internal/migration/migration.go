package migration

import (
	"context"

	"scorekit/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the model store schema
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. Every statement is
// idempotent, so Run is safe to call at each start.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createModelsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create models table")
	}

	if err := r.createModelMetricsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create model_metrics table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

// Checksums are uint64 fingerprints stored as their int64 bit pattern.
func (r *MigrationRunner) createModelsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS models (
			key VARCHAR(128) PRIMARY KEY,
			algo VARCHAR(32) NOT NULL,
			category VARCHAR(32) NOT NULL,
			params_checksum BIGINT NOT NULL,
			output_checksum BIGINT NOT NULL,
			model_checksum BIGINT NOT NULL,
			params JSONB NOT NULL,
			output JSONB NOT NULL,
			scorer JSONB NOT NULL,
			warnings JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createModelMetricsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS model_metrics (
			key VARCHAR(128) PRIMARY KEY,
			model_key VARCHAR(128) NOT NULL REFERENCES models(key) ON DELETE CASCADE,
			frame_key VARCHAR(128) NOT NULL,
			frame_checksum BIGINT NOT NULL,
			category VARCHAR(32) NOT NULL,
			nobs BIGINT NOT NULL DEFAULT 0,
			metrics JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_models_params_checksum ON models(params_checksum)`,
		`CREATE INDEX IF NOT EXISTS idx_models_created_at ON models(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_model_metrics_model_key ON model_metrics(model_key, created_at)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
