package postgres

import (
	"context"
	"os"
	"testing"

	"scorekit/domain/core"
	"scorekit/domain/frame"
	"scorekit/domain/model"
	"scorekit/internal/algos"
	"scorekit/internal/algos/tree"
	"scorekit/internal/migration"
	"scorekit/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping live test: TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	return db
}

func stumpModel(t *testing.T) *ports.ModelRecord {
	t.Helper()
	fr, err := frame.FromColumns(4,
		frame.NumericColumn("x", 1, 2, 3, 4, 5, 6),
		frame.NumericColumn("y", 1, 1, 1, 9, 9, 9),
	)
	require.NoError(t, err)
	p := tree.NewParameters()
	p.Train = fr
	p.ResponseColumn = "y"
	p.MaxDepth = 1
	p.MinRows = 1

	out, err := model.NewOutput(fr.Schema(), true)
	require.NoError(t, err)
	sc, err := tree.Family{}.Train(context.Background(), p, fr, out)
	require.NoError(t, err)
	m, err := model.New("", p, out, sc)
	require.NoError(t, err)
	m.AddWarning("stored warning")
	rec, err := ports.NewModelRecord(m)
	require.NoError(t, err)
	return rec
}

func TestModelRepository_RoundTrip(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	models := NewModelRepository(db, algos.Default())
	metrics := NewMetricsRepository(db)

	rec := stumpModel(t)
	require.NoError(t, models.Save(ctx, rec))
	t.Cleanup(func() { _ = models.Delete(ctx, rec.Model.Key) })

	got, err := models.Get(ctx, rec.Model.Key)
	require.NoError(t, err)
	assert.Equal(t, rec.ParamsChecksum, got.ParamsChecksum)
	assert.Equal(t, rec.ModelChecksum, got.ModelChecksum)
	assert.True(t, got.Fresh(rec.ParamsChecksum))
	assert.Equal(t, []string{"stored warning"}, got.Model.Warnings())
	assert.Equal(t, rec.Model.Output.Names, got.Model.Output.Names)

	assert.InDelta(t, 9, got.Model.ScoreRow([]float64{5.5}), 1e-9)

	found, err := models.FindByParamsChecksum(ctx, rec.ParamsChecksum)
	require.NoError(t, err)
	assert.Equal(t, rec.Model.Key, found.Model.Key)

	mm := model.NewModelMetrics(rec.Model.Key, "frame", 42, model.CategoryRegression)
	mm.MSE = 0.5
	require.NoError(t, metrics.Save(ctx, mm))
	list, err := metrics.ListByModel(ctx, rec.Model.Key)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint64(42), list[0].FrameChecksum)
	assert.Equal(t, 0.5, list[0].MSE)

	require.NoError(t, models.Delete(ctx, rec.Model.Key))
	_, err = metrics.Get(ctx, mm.Key)
	assert.True(t, core.IsNotFoundError(err))
	_, err = models.Get(ctx, rec.Model.Key)
	assert.True(t, core.IsNotFoundError(err))
}
