package container

import (
	"context"
	"fmt"

	"scorekit/adapters/excel"
	"scorekit/adapters/memory"
	"scorekit/adapters/postgres"
	"scorekit/app"
	"scorekit/internal/algos"
	"scorekit/internal/builder"
	"scorekit/internal/config"
	"scorekit/internal/errors"
	"scorekit/internal/exec"
	"scorekit/internal/logging"
	"scorekit/internal/migration"
	"scorekit/internal/scoring"
	"scorekit/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var logger = logging.New("Container")

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB       *sqlx.DB
	Executor *exec.ParallelExecutor

	// Repositories (data access layer)
	ModelRepo   ports.ModelRepository
	MetricsRepo ports.MetricsRepository

	// Model components
	Registry *algos.Registry
	Scorer   *scoring.Scorer
	Builder  *builder.Builder
	Reader   *excel.DataReader
	Service  *app.ModelService
}

// New wires the application. Without a database URL the repositories are
// in-memory and nothing outlives the process.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logging.SetLevel(cfg.LogLevel)
	c := &Container{
		Config:   cfg,
		Executor: exec.NewParallelExecutor(cfg.Scoring.Parallelism),
		Registry: algos.Default(),
		Reader:   excel.NewDataReader(),
	}
	c.Scorer = scoring.NewScorer(c.Executor)
	c.Builder = builder.New(c.Registry, c.Scorer)

	if cfg.UsesDatabase() {
		if err := c.initDatabase(ctx); err != nil {
			return nil, err
		}
	} else {
		c.initMemory()
	}

	c.Service = app.NewModelService(c.Builder, c.Scorer, c.ModelRepo, c.MetricsRepo, cfg.Scoring.StrictAdaptation)
	logger.Infof("Initialized (%d workers, algos %v)", c.Executor.Parallelism(), c.Registry.Algos())
	return c, nil
}

// initDatabase connects, migrates and creates the postgres repositories
func (c *Container) initDatabase(ctx context.Context) error {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		return errors.DatabaseError("failed to connect to database", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return errors.DatabaseError("database migration failed", err)
	}

	c.DB = db
	c.ModelRepo = postgres.NewModelRepository(db, c.Registry)
	c.MetricsRepo = postgres.NewMetricsRepository(db)
	logger.Infof("Using postgres model store")
	return nil
}

// initMemory creates the in-memory repositories
func (c *Container) initMemory() {
	metrics := memory.NewMetricsRepository()
	c.MetricsRepo = metrics
	c.ModelRepo = memory.NewModelRepository(metrics)
	logger.Infof("DATABASE_URL not set, using in-memory model store")
}

// Shutdown releases the database connection
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
