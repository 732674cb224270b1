package ports

import (
	"context"

	"scorekit/domain/frame"
	"scorekit/domain/model"
)

// ModelFamily is the per-algorithm capability set the builder dispatches to.
type ModelFamily interface {
	Algo() model.Algo
	// Validate reports configuration problems before any frame is touched.
	Validate(params model.Parameters) []string
	// Train fits a scorer on train, whose columns are exactly out.Names with
	// the response last for supervised models.
	Train(ctx context.Context, params model.Parameters, train *frame.Frame, out *model.Output) (model.RowScorer, error)
	// Supervised reports whether the family needs a response column.
	Supervised() bool
	// NewParameters and NewScorer return zero values to decode stored models into.
	NewParameters() model.Parameters
	NewScorer() model.RowScorer
}
