// Package builder turns a Parameters value into a trained model: it cleans up
// the training frame, captures the Output schema, adapts the validation frame
// and dispatches training to the model family.
package builder

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"scorekit/domain/core"
	"scorekit/domain/frame"
	"scorekit/domain/model"
	"scorekit/internal/adapt"
	"scorekit/internal/errors"
	"scorekit/internal/logging"
	"scorekit/internal/scoring"
	"scorekit/ports"
)

var logger = logging.New("Builder")

const (
	// MaxClasses bounds the response domain of classifiers
	MaxClasses = 1000
	// naDropFraction is the missing-value share above which DropNA20Cols
	// removes a feature.
	naDropFraction = 0.2
)

// Families resolves an algo to its implementation
type Families interface {
	Get(algo model.Algo) (ports.ModelFamily, error)
}

// Result is a trained model with the metrics recorded while building it.
type Result struct {
	Model *model.Model
	// Metrics holds training metrics (when ScoreEachIteration is set) and
	// validation metrics (when a validation frame was given), in that order.
	Metrics []*model.ModelMetrics
}

// Builder trains models
type Builder struct {
	families Families
	scorer   *scoring.Scorer
}

// New creates a builder
func New(families Families, scorer *scoring.Scorer) *Builder {
	return &Builder{families: families, scorer: scorer}
}

// Build validates params, trains the model and scores it on the requested
// frames. Validation problems are all reported together as INVALID_INPUT.
func (b *Builder) Build(ctx context.Context, params model.Parameters) (*Result, error) {
	fam, err := b.families.Get(params.Algo())
	if err != nil {
		return nil, err
	}
	if problems := b.validate(params, fam); len(problems) > 0 {
		return nil, errors.WithCode(errors.CodeInvalidInput,
			core.NewInvalidParametersError(string(params.Algo()), strings.Join(problems, "; ")))
	}
	base := params.Base()

	train, warns, err := cleanup(base, fam.Supervised())
	if err != nil {
		return nil, err
	}
	out, err := model.NewOutput(train.Schema(), fam.Supervised())
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	if out.IsClassifier() && out.NClasses() > MaxClasses {
		return nil, errors.WithCode(errors.CodeInvalidInput, core.NewInvalidParametersError("response_column",
			fmt.Sprintf("response has %d classes, at most %d are supported", out.NClasses(), MaxClasses)))
	}

	// The validation frame is checked against the trained schema before any
	// training time is spent; it is scored later from the caller's frame.
	if base.Valid != nil {
		vw, err := adapt.Reconcile(out.Names, out.Domains, base.Valid.Clone(), math.NaN(), adapt.Options{
			Expensive:  true,
			Supervised: out.Supervised,
		})
		if err != nil {
			return nil, errors.Wrap(err, "adapting validation frame")
		}
		warns = append(warns, vw...)
	}

	out.State = model.JobRunning
	out.TrainingStartTime = time.Now()
	logger.Infof("Training %s on %d rows x %d columns", params.Algo(), train.NumRows(), train.NumCols())

	scorer, err := fam.Train(ctx, params, train, out)
	out.TrainingDuration = time.Since(out.TrainingStartTime)
	if err != nil {
		out.State = model.JobFailed
		if ctx.Err() != nil {
			out.State = model.JobCancelled
			return nil, fmt.Errorf("%w: %v", core.ErrScoringCancelled, ctx.Err())
		}
		return nil, errors.Wrapf(err, "training %s", params.Algo())
	}
	out.State = model.JobDone

	m, err := model.New(base.Destination, params, out, scorer)
	if err != nil {
		return nil, err
	}
	for _, w := range warns {
		m.AddWarning(w)
	}

	res := &Result{Model: m}
	if out.Supervised {
		if base.ScoreEachIteration {
			r, err := b.scorer.Score(ctx, m, train, scoring.Options{ComputeMetrics: true})
			if err != nil {
				return nil, errors.Wrap(err, "scoring training frame")
			}
			if r.Metrics != nil {
				res.Metrics = append(res.Metrics, r.Metrics)
			}
		}
		if base.Valid != nil {
			r, err := b.scorer.Score(ctx, m, base.Valid, scoring.Options{ComputeMetrics: true})
			if err != nil {
				return nil, errors.Wrap(err, "scoring validation frame")
			}
			if r.Metrics != nil {
				res.Metrics = append(res.Metrics, r.Metrics)
			}
		}
	}

	logger.Infof("Model %s built in %v with %d warnings", m.Key, out.TrainingDuration, len(warns))
	return res, nil
}

func (b *Builder) validate(params model.Parameters, fam ports.ModelFamily) []string {
	base := params.Base()
	var problems []string
	if base == nil || base.Train == nil {
		return []string{"training frame is required"}
	}
	if base.Train.NumRows() == 0 {
		problems = append(problems, "training frame has no rows")
	}
	if fam.Supervised() {
		switch {
		case base.ResponseColumn == "":
			problems = append(problems, "response_column is required")
		case base.Train.Find(base.ResponseColumn) < 0:
			problems = append(problems, fmt.Sprintf("response column %s not found in training frame", base.ResponseColumn))
		}
		for _, c := range base.IgnoredColumns {
			if c == base.ResponseColumn {
				problems = append(problems, fmt.Sprintf("response column %s cannot be ignored", c))
			}
		}
	}
	return append(problems, fam.Validate(params)...)
}

// cleanup returns a copy of the training frame with ignored and mostly
// missing features removed and the response moved last.
func cleanup(base *model.BaseParameters, supervised bool) (*frame.Frame, []string, error) {
	fr := base.Train.Clone()
	var warns []string

	for _, name := range base.IgnoredColumns {
		i := fr.Find(name)
		if i < 0 {
			warns = append(warns, fmt.Sprintf("Ignored column '%s' is not in the training frame", name))
			continue
		}
		fr.Remove(i)
	}

	if base.DropNA20Cols {
		nrows := float64(fr.NumRows())
		for _, name := range fr.Names() {
			if supervised && name == base.ResponseColumn {
				continue
			}
			v := fr.Vec(name)
			if nrows > 0 && float64(v.NACount())/nrows > naDropFraction {
				fr.Remove(fr.Find(name))
				warns = append(warns, fmt.Sprintf("Dropped column '%s': more than 20%% of its values are missing", name))
			}
		}
	}

	if supervised {
		i := fr.Find(base.ResponseColumn)
		resp := fr.Remove(i)
		if err := fr.Add(base.ResponseColumn, resp); err != nil {
			return nil, nil, err
		}
	}

	minCols := 1
	if supervised {
		minCols = 2
	}
	if fr.NumCols() < minCols {
		return nil, nil, errors.WithCode(errors.CodeInvalidInput,
			core.NewInvalidParametersError("train", "no feature columns left after cleanup"))
	}
	return fr, warns, nil
}
