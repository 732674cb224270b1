package app

import (
	"context"

	"scorekit/domain/core"
	"scorekit/domain/frame"
	"scorekit/domain/model"
	"scorekit/internal/adapt"
	"scorekit/internal/builder"
	"scorekit/internal/errors"
	"scorekit/internal/logging"
	"scorekit/internal/scoring"
	"scorekit/ports"
)

var logger = logging.New("ModelService")

// ModelService trains, stores and scores models
type ModelService struct {
	builder *builder.Builder
	scorer  *scoring.Scorer
	models  ports.ModelRepository
	metrics ports.MetricsRepository
	strict  bool
}

// TrainResult is the outcome of TrainOrReuse
type TrainResult struct {
	Record  *ports.ModelRecord
	Metrics []*model.ModelMetrics
	// Reused is true when a stored model matched the request and no
	// training took place.
	Reused bool
}

// NewModelService creates a model service. strict selects exact categorical
// mapping when scoring.
func NewModelService(b *builder.Builder, scorer *scoring.Scorer, models ports.ModelRepository, metrics ports.MetricsRepository, strict bool) *ModelService {
	return &ModelService{
		builder: b,
		scorer:  scorer,
		models:  models,
		metrics: metrics,
		strict:  strict,
	}
}

// TrainOrReuse returns a stored model trained with the same parameters when
// it is not stale, and builds and stores a new one otherwise. The match is on
// checksums, which are heuristic fingerprints and not proof of equality.
func (s *ModelService) TrainOrReuse(ctx context.Context, params model.Parameters) (*TrainResult, error) {
	pc, err := model.Checksum(params)
	if err != nil {
		return nil, errors.Wrap(err, "fingerprinting parameters")
	}

	stored, err := s.models.FindByParamsChecksum(ctx, pc)
	switch {
	case err == nil && stored.Fresh(pc):
		logger.Infof("Reusing model %s for %s parameters %x", stored.Model.Key, params.Algo(), pc)
		mms, err := s.metrics.ListByModel(ctx, stored.Model.Key)
		if err != nil {
			return nil, errors.DatabaseError("failed to load model metrics", err)
		}
		return &TrainResult{Record: stored, Metrics: mms, Reused: true}, nil
	case err == nil:
		logger.Warnf("Stored model %s is stale, retraining", stored.Model.Key)
	case !core.IsNotFoundError(err):
		return nil, errors.DatabaseError("failed to look up model", err)
	}

	res, err := s.builder.Build(ctx, params)
	if err != nil {
		return nil, err
	}
	rec, err := ports.NewModelRecord(res.Model)
	if err != nil {
		return nil, errors.Wrap(err, "fingerprinting model")
	}
	if err := s.models.Save(ctx, rec); err != nil {
		return nil, errors.DatabaseError("failed to save model", err)
	}
	for _, mm := range res.Metrics {
		if err := s.metrics.Save(ctx, mm); err != nil {
			return nil, errors.DatabaseError("failed to save model metrics", err)
		}
	}
	logger.Infof("Stored model %s (%s, %d metrics)", rec.Model.Key, rec.Model.Output.Category, len(res.Metrics))
	return &TrainResult{Record: rec, Metrics: res.Metrics}, nil
}

// Score scores fr with a stored model. When fr carries the response the new
// metrics record is persisted and referenced from the model's output.
func (s *ModelService) Score(ctx context.Context, key core.Key, fr *frame.Frame) (*scoring.Result, error) {
	rec, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	res, err := s.scorer.Score(ctx, rec.Model, fr, scoring.Options{ComputeMetrics: true, Exact: s.strict})
	if err != nil {
		return nil, err
	}
	if res.Metrics != nil {
		if err := s.metrics.Save(ctx, res.Metrics); err != nil {
			return nil, errors.DatabaseError("failed to save model metrics", err)
		}
		if err := s.models.Save(ctx, rec); err != nil {
			return nil, errors.DatabaseError("failed to update model", err)
		}
	}
	return res, nil
}

// Adapt is a dry run of scoring-time adaptation. It reports what scoring
// would change without allocating columns or touching fr.
func (s *ModelService) Adapt(ctx context.Context, key core.Key, fr *frame.Frame) ([]string, error) {
	rec, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	m := rec.Model
	noResponse := !m.IsSupervised() || fr.Find(m.Output.ResponseName()) < 0
	return adapt.AdaptTestForTrain(m, fr.Clone(), false, noResponse)
}

// Get loads a stored model
func (s *ModelService) Get(ctx context.Context, key core.Key) (*ports.ModelRecord, error) {
	rec, err := s.models.Get(ctx, key)
	if err != nil {
		if core.IsNotFoundError(err) {
			return nil, errors.WithCode(errors.CodeNotFound, err)
		}
		return nil, errors.DatabaseError("failed to load model", err)
	}
	return rec, nil
}

// Metrics lists the metrics recorded for a model, oldest first
func (s *ModelService) Metrics(ctx context.Context, key core.Key) ([]*model.ModelMetrics, error) {
	if _, err := s.Get(ctx, key); err != nil {
		return nil, err
	}
	mms, err := s.metrics.ListByModel(ctx, key)
	if err != nil {
		return nil, errors.DatabaseError("failed to load model metrics", err)
	}
	return mms, nil
}

// List returns every stored model
func (s *ModelService) List(ctx context.Context) ([]*ports.ModelRecord, error) {
	recs, err := s.models.List(ctx)
	if err != nil {
		return nil, errors.DatabaseError("failed to list models", err)
	}
	return recs, nil
}

// Delete removes a model together with its metrics
func (s *ModelService) Delete(ctx context.Context, key core.Key) error {
	if err := s.models.Delete(ctx, key); err != nil {
		if core.IsNotFoundError(err) {
			return errors.WithCode(errors.CodeNotFound, err)
		}
		return errors.DatabaseError("failed to delete model", err)
	}
	logger.Infof("Deleted model %s", key)
	return nil
}
