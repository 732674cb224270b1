// Package memory provides map-backed repositories for tests and for running
// without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"scorekit/domain/core"
	"scorekit/domain/model"
	"scorekit/ports"
)

// ModelRepository keeps model records in a map
type ModelRepository struct {
	mu      sync.RWMutex
	models  map[core.Key]*ports.ModelRecord
	metrics *MetricsRepository
}

// NewModelRepository creates a repository. Deleting a model also deletes its
// metrics from metrics, which may be nil.
func NewModelRepository(metrics *MetricsRepository) *ModelRepository {
	return &ModelRepository{models: make(map[core.Key]*ports.ModelRecord), metrics: metrics}
}

var _ ports.ModelRepository = (*ModelRepository)(nil)

func (r *ModelRepository) Save(ctx context.Context, rec *ports.ModelRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[rec.Model.Key] = rec
	return nil
}

func (r *ModelRepository) Get(ctx context.Context, key core.Key) (*ports.ModelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.models[key]
	if !ok {
		return nil, core.NewNotFoundError("model", key)
	}
	return rec, nil
}

// FindByParamsChecksum returns the most recent record with the checksum
func (r *ModelRepository) FindByParamsChecksum(ctx context.Context, checksum uint64) (*ports.ModelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *ports.ModelRecord
	for _, rec := range r.models {
		if rec.ParamsChecksum != checksum {
			continue
		}
		if found == nil || rec.CreatedAt.After(found.CreatedAt) {
			found = rec
		}
	}
	if found == nil {
		return nil, core.ErrModelNotFound
	}
	return found, nil
}

// List returns every record, oldest first
func (r *ModelRepository) List(ctx context.Context) ([]*ports.ModelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ports.ModelRecord, 0, len(r.models))
	for _, rec := range r.models {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Model.Key < out[j].Model.Key
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *ModelRepository) Delete(ctx context.Context, key core.Key) error {
	r.mu.Lock()
	if _, ok := r.models[key]; !ok {
		r.mu.Unlock()
		return core.NewNotFoundError("model", key)
	}
	delete(r.models, key)
	r.mu.Unlock()

	if r.metrics != nil {
		if _, err := r.metrics.DeleteByModel(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// MetricsRepository keeps metrics records in a map
type MetricsRepository struct {
	mu      sync.RWMutex
	metrics map[core.Key]*model.ModelMetrics
	order   []core.Key
}

// NewMetricsRepository creates an empty repository
func NewMetricsRepository() *MetricsRepository {
	return &MetricsRepository{metrics: make(map[core.Key]*model.ModelMetrics)}
}

var _ ports.MetricsRepository = (*MetricsRepository)(nil)

// Save appends a record; saving an existing key is an error since records
// are never updated.
func (r *MetricsRepository) Save(ctx context.Context, mm *model.ModelMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metrics[mm.Key]; ok {
		return core.NewInvalidParametersError("metrics", "record "+mm.Key.String()+" already exists")
	}
	r.metrics[mm.Key] = mm
	r.order = append(r.order, mm.Key)
	return nil
}

func (r *MetricsRepository) Get(ctx context.Context, key core.Key) (*model.ModelMetrics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mm, ok := r.metrics[key]
	if !ok {
		return nil, core.NewNotFoundError("model metrics", key)
	}
	return mm, nil
}

// ListByModel returns a model's records in insertion order
func (r *MetricsRepository) ListByModel(ctx context.Context, modelKey core.Key) ([]*model.ModelMetrics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.ModelMetrics
	for _, k := range r.order {
		if mm := r.metrics[k]; mm.ModelKey == modelKey {
			out = append(out, mm)
		}
	}
	return out, nil
}

func (r *MetricsRepository) DeleteByModel(ctx context.Context, modelKey core.Key) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	n := 0
	for _, k := range r.order {
		if r.metrics[k].ModelKey == modelKey {
			delete(r.metrics, k)
			n++
			continue
		}
		kept = append(kept, k)
	}
	r.order = kept
	return n, nil
}
