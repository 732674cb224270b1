// Package glm fits generalized linear models: gaussian ridge regression solved
// in closed form, and multinomial logistic regression by gradient descent.
package glm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"scorekit/domain/core"
	"scorekit/domain/frame"
	"scorekit/domain/model"
	"scorekit/internal/algos/datainfo"
	"scorekit/internal/logging"
	"scorekit/ports"

	"gonum.org/v1/gonum/mat"
)

var logger = logging.New("GLM")

const (
	DefaultLambda        = 1e-4
	DefaultMaxIterations = 200
	DefaultLearningRate  = 0.5
)

// Parameters configure a GLM build
type Parameters struct {
	model.BaseParameters
	Lambda        float64 `json:"lambda"`
	MaxIterations int     `json:"max_iterations"`
	LearningRate  float64 `json:"learning_rate"`
	Standardize   bool    `json:"standardize"`
}

// NewParameters returns parameters with defaults
func NewParameters() *Parameters {
	return &Parameters{
		Lambda:        DefaultLambda,
		MaxIterations: DefaultMaxIterations,
		LearningRate:  DefaultLearningRate,
		Standardize:   true,
	}
}

func (p *Parameters) Base() *model.BaseParameters { return &p.BaseParameters }

func (p *Parameters) Algo() model.Algo { return model.AlgoGLM }

func (p *Parameters) ChecksumFields() []model.Field {
	return []model.Field{
		{Name: "lambda", Value: p.Lambda},
		{Name: "max_iterations", Value: p.MaxIterations},
		{Name: "learning_rate", Value: p.LearningRate},
		{Name: "standardize", Value: p.Standardize},
	}
}

// Scorer holds one coefficient row per linear predictor; the intercept is the
// last entry of each row.
type Scorer struct {
	Info         *datainfo.DataInfo `json:"info"`
	Coefficients [][]float64        `json:"coefficients"`
	NClasses     int                `json:"nclasses"`
}

// MissingValue fills absent columns with NaN, which expansion replaces with
// the training mean.
func (s *Scorer) MissingValue() float64 { return math.NaN() }

func (s *Scorer) Score0(data []float64, preds []float64) []float64 {
	x := s.Info.Expand(data, make([]float64, s.Info.Width()))
	if s.NClasses <= 1 {
		preds[0] = linear(s.Coefficients[0], x)
		return preds
	}
	for k, beta := range s.Coefficients {
		preds[k+1] = linear(beta, x)
	}
	softmax(preds[1:])
	return preds
}

func linear(beta, x []float64) float64 {
	eta := beta[len(beta)-1]
	for j, v := range x {
		eta += beta[j] * v
	}
	return eta
}

// softmax normalizes z in place
func softmax(z []float64) {
	max := math.Inf(-1)
	for _, v := range z {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	for i, v := range z {
		z[i] = math.Exp(v - max)
		sum += z[i]
	}
	for i := range z {
		z[i] /= sum
	}
}

// Family implements ports.ModelFamily for GLMs
type Family struct{}

var _ ports.ModelFamily = Family{}

func (Family) Algo() model.Algo { return model.AlgoGLM }

func (Family) Supervised() bool { return true }

func (Family) NewParameters() model.Parameters { return NewParameters() }

func (Family) NewScorer() model.RowScorer { return &Scorer{} }

func (Family) Validate(params model.Parameters) []string {
	p, ok := params.(*Parameters)
	if !ok {
		return []string{fmt.Sprintf("glm: unexpected parameters type %T", params)}
	}
	var errs []string
	if p.Lambda < 0 {
		errs = append(errs, "lambda must be >= 0")
	}
	if p.MaxIterations < 1 {
		errs = append(errs, "max_iterations must be >= 1")
	}
	if p.LearningRate <= 0 {
		errs = append(errs, "learning_rate must be > 0")
	}
	return errs
}

func (Family) Train(ctx context.Context, params model.Parameters, train *frame.Frame, out *model.Output) (model.RowScorer, error) {
	p, ok := params.(*Parameters)
	if !ok {
		return nil, core.NewInvalidParametersError("algo", fmt.Sprintf("glm: unexpected parameters type %T", params))
	}
	info, err := datainfo.New(train, out.FeatureNames(), out.Domains[:out.NFeatures()], p.Standardize)
	if err != nil {
		return nil, err
	}

	rows := info.Rows(train)
	response := train.VecAt(out.NFeatures()).Values()
	var xs [][]float64
	var ys []float64
	for i, y := range response {
		if !math.IsNaN(y) {
			xs = append(xs, rows[i])
			ys = append(ys, y)
		}
	}
	if len(xs) == 0 {
		return nil, core.NewInvalidParametersError("train", "response column has no values")
	}

	s := &Scorer{Info: info, NClasses: out.NClasses()}
	if out.IsClassifier() {
		s.Coefficients, err = fitSoftmax(ctx, xs, ys, out.NClasses(), p)
	} else {
		var beta []float64
		beta, err = fitRidge(xs, ys, p.Lambda)
		s.Coefficients = [][]float64{beta}
	}
	if err != nil {
		return nil, err
	}
	logger.Infof("Fitted %d predictor(s) over %d design columns on %d rows", len(s.Coefficients), info.Width(), len(xs))
	return s, nil
}

// fitRidge solves (X'X + lambda*I) beta = X'y with an unpenalized intercept.
func fitRidge(xs [][]float64, ys []float64, lambda float64) ([]float64, error) {
	n, w := len(xs), len(xs[0])+1
	data := make([]float64, 0, n*w)
	for _, r := range xs {
		data = append(data, r...)
		data = append(data, 1)
	}
	x := mat.NewDense(n, w, data)
	y := mat.NewVecDense(n, ys)

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for j := 0; j < w-1; j++ {
		xtx.Set(j, j, xtx.At(j, j)+lambda*float64(n))
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("glm: solving normal equations: %w", err)
		}
		logger.Warnf("Normal equations are ill-conditioned (%v)", err)
	}
	out := make([]float64, w)
	for j := range out {
		out[j] = beta.AtVec(j)
	}
	return out, nil
}

// fitSoftmax runs full-batch gradient descent on the L2-penalized multinomial
// log likelihood. Binomial models use the same two-class parameterization.
func fitSoftmax(ctx context.Context, xs [][]float64, ys []float64, nclasses int, p *Parameters) ([][]float64, error) {
	n, w := len(xs), len(xs[0])+1
	beta := make([][]float64, nclasses)
	grad := make([][]float64, nclasses)
	for k := range beta {
		beta[k] = make([]float64, w)
		grad[k] = make([]float64, w)
	}
	probs := make([]float64, nclasses)

	for it := 0; it < p.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for k := range grad {
			for j := range grad[k] {
				grad[k][j] = 0
			}
		}
		for i, x := range xs {
			for k := range beta {
				probs[k] = linear(beta[k], x)
			}
			softmax(probs)
			yi := int(ys[i])
			for k := range beta {
				r := probs[k]
				if k == yi {
					r -= 1
				}
				for j, v := range x {
					grad[k][j] += r * v
				}
				grad[k][w-1] += r
			}
		}
		for k := range beta {
			for j := range beta[k] {
				g := grad[k][j] / float64(n)
				if j < w-1 {
					g += p.Lambda * beta[k][j]
				}
				beta[k][j] -= p.LearningRate * g
			}
		}
	}
	return beta, nil
}
