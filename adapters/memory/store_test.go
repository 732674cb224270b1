package memory

import (
	"context"
	"testing"
	"time"

	"scorekit/domain/core"
	"scorekit/domain/frame"
	"scorekit/domain/model"
	"scorekit/internal/algos/tree"
	"scorekit/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, checksum uint64, created time.Time) *ports.ModelRecord {
	t.Helper()
	out, err := model.NewOutput(frame.Schema{
		Names:   []string{"x", "y"},
		Domains: []*frame.Domain{nil, nil},
	}, true)
	require.NoError(t, err)
	m, err := model.New("", tree.NewParameters(), out, &tree.Scorer{})
	require.NoError(t, err)
	return &ports.ModelRecord{Model: m, ParamsChecksum: checksum, CreatedAt: created}
}

func TestModelRepository_SaveGetList(t *testing.T) {
	ctx := context.Background()
	repo := NewModelRepository(nil)
	now := time.Now()
	older := record(t, 1, now.Add(-time.Minute))
	newer := record(t, 1, now)
	other := record(t, 2, now.Add(time.Minute))
	for _, r := range []*ports.ModelRecord{newer, other, older} {
		require.NoError(t, repo.Save(ctx, r))
	}

	got, err := repo.Get(ctx, older.Model.Key)
	require.NoError(t, err)
	assert.Same(t, older, got)

	found, err := repo.FindByParamsChecksum(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, newer, found)

	_, err = repo.FindByParamsChecksum(ctx, 99)
	assert.True(t, core.IsNotFoundError(err))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Same(t, older, all[0])
	assert.Same(t, other, all[2])
}

func TestModelRepository_GetMissing(t *testing.T) {
	_, err := NewModelRepository(nil).Get(context.Background(), "nope")
	assert.True(t, core.IsNotFoundError(err))
}

func TestModelRepository_DeleteCascadesToMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := NewMetricsRepository()
	repo := NewModelRepository(metrics)
	keep := record(t, 1, time.Now())
	drop := record(t, 2, time.Now())
	require.NoError(t, repo.Save(ctx, keep))
	require.NoError(t, repo.Save(ctx, drop))

	for _, m := range []*ports.ModelRecord{keep, drop, drop} {
		mm := model.NewModelMetrics(m.Model.Key, "frame", 7, model.CategoryRegression)
		require.NoError(t, metrics.Save(ctx, mm))
	}

	require.NoError(t, repo.Delete(ctx, drop.Model.Key))

	_, err := repo.Get(ctx, drop.Model.Key)
	assert.True(t, core.IsNotFoundError(err))
	left, err := metrics.ListByModel(ctx, drop.Model.Key)
	require.NoError(t, err)
	assert.Empty(t, left)
	kept, err := metrics.ListByModel(ctx, keep.Model.Key)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	assert.True(t, core.IsNotFoundError(repo.Delete(ctx, drop.Model.Key)))
}

func TestMetricsRepository_AppendOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewMetricsRepository()
	first := model.NewModelMetrics("m1", "f1", 1, model.CategoryBinomial)
	second := model.NewModelMetrics("m1", "f1", 1, model.CategoryBinomial)
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))
	assert.Error(t, repo.Save(ctx, first))

	got, err := repo.Get(ctx, second.Key)
	require.NoError(t, err)
	assert.Same(t, second, got)

	list, err := repo.ListByModel(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Same(t, first, list[0])
	assert.Same(t, second, list[1])

	n, err := repo.DeleteByModel(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = repo.Get(ctx, first.Key)
	assert.True(t, core.IsNotFoundError(err))
}
