// Package kmeans is the unsupervised clustering family.
package kmeans

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"scorekit/domain/core"
	"scorekit/domain/frame"
	"scorekit/domain/model"
	"scorekit/internal/algos/datainfo"
	"scorekit/internal/logging"
	"scorekit/ports"

	"github.com/montanaflynn/stats"
)

var logger = logging.New("KMeans")

const (
	DefaultK             = 3
	DefaultMaxIterations = 100
)

// Parameters configure a k-means build
type Parameters struct {
	model.BaseParameters
	K             int   `json:"k"`
	MaxIterations int   `json:"max_iterations"`
	Seed          int64 `json:"seed"`
	Standardize   bool  `json:"standardize"`
}

// NewParameters returns parameters with defaults
func NewParameters() *Parameters {
	return &Parameters{K: DefaultK, MaxIterations: DefaultMaxIterations, Seed: 42, Standardize: true}
}

func (p *Parameters) Base() *model.BaseParameters { return &p.BaseParameters }

func (p *Parameters) Algo() model.Algo { return model.AlgoKMeans }

func (p *Parameters) ChecksumFields() []model.Field {
	return []model.Field{
		{Name: "k", Value: p.K},
		{Name: "max_iterations", Value: p.MaxIterations},
		{Name: "seed", Value: p.Seed},
		{Name: "standardize", Value: p.Standardize},
	}
}

// Scorer assigns rows to the nearest centroid in expanded space.
type Scorer struct {
	Info      *datainfo.DataInfo `json:"info"`
	Centroids [][]float64        `json:"centroids"`
	Inertia   float64            `json:"inertia"`
}

// Score0 writes the cluster index to preds[0]
func (s *Scorer) Score0(data []float64, preds []float64) []float64 {
	x := s.Info.Expand(data, make([]float64, s.Info.Width()))
	preds[0] = float64(nearest(s.Centroids, x))
	return preds
}

func nearest(centroids [][]float64, x []float64) int {
	best, bestD := 0, math.Inf(1)
	for k, c := range centroids {
		d, err := stats.EuclideanDistance(x, c)
		if err != nil {
			continue
		}
		if d < bestD {
			best, bestD = k, d
		}
	}
	return best
}

// Family implements ports.ModelFamily for k-means
type Family struct{}

var _ ports.ModelFamily = Family{}

func (Family) Algo() model.Algo { return model.AlgoKMeans }

func (Family) Supervised() bool { return false }

func (Family) NewParameters() model.Parameters { return NewParameters() }

func (Family) NewScorer() model.RowScorer { return &Scorer{} }

func (Family) Validate(params model.Parameters) []string {
	p, ok := params.(*Parameters)
	if !ok {
		return []string{fmt.Sprintf("kmeans: unexpected parameters type %T", params)}
	}
	var errs []string
	if p.K < 1 {
		errs = append(errs, "k must be >= 1")
	}
	if p.MaxIterations < 1 {
		errs = append(errs, "max_iterations must be >= 1")
	}
	if p.ResponseColumn != "" {
		errs = append(errs, "kmeans is unsupervised; response_column must be empty")
	}
	return errs
}

// Train runs Lloyd's algorithm from a k-means++ seeding.
func (Family) Train(ctx context.Context, params model.Parameters, train *frame.Frame, out *model.Output) (model.RowScorer, error) {
	p, ok := params.(*Parameters)
	if !ok {
		return nil, core.NewInvalidParametersError("algo", fmt.Sprintf("kmeans: unexpected parameters type %T", params))
	}
	info, err := datainfo.New(train, out.FeatureNames(), out.Domains[:out.NFeatures()], p.Standardize)
	if err != nil {
		return nil, err
	}
	xs := info.Rows(train)
	if len(xs) < p.K {
		return nil, core.NewInvalidParametersError("k", fmt.Sprintf("%d rows cannot form %d clusters", len(xs), p.K))
	}

	rng := rand.New(rand.NewSource(p.Seed))
	centroids := seed(xs, p.K, rng)
	assign := make([]int, len(xs))
	for i := range assign {
		assign[i] = -1
	}

	iters := 0
	for ; iters < p.MaxIterations; iters++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		changed := false
		for i, x := range xs {
			k := nearest(centroids, x)
			if k != assign[i] {
				assign[i] = k
				changed = true
			}
		}
		if !changed {
			break
		}
		centroids = update(xs, assign, centroids)
	}

	inertia := 0.0
	for i, x := range xs {
		d, _ := stats.EuclideanDistance(x, centroids[assign[i]])
		inertia += d * d
	}
	logger.Infof("%d clusters after %d iterations, inertia %.4f", p.K, iters, inertia)
	return &Scorer{Info: info, Centroids: centroids, Inertia: inertia}, nil
}

// seed picks k starting centroids with probability proportional to the
// squared distance from the ones already chosen.
func seed(xs [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := [][]float64{append([]float64(nil), xs[rng.Intn(len(xs))]...)}
	d2 := make([]float64, len(xs))
	for len(centroids) < k {
		total := 0.0
		for i, x := range xs {
			c := centroids[nearest(centroids, x)]
			d, _ := stats.EuclideanDistance(x, c)
			d2[i] = d * d
			total += d2[i]
		}
		pick := 0
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range d2 {
				r -= d
				if r <= 0 {
					pick = i
					break
				}
			}
		} else {
			pick = rng.Intn(len(xs))
		}
		centroids = append(centroids, append([]float64(nil), xs[pick]...))
	}
	return centroids
}

// update moves each centroid to the mean of its rows; empty clusters stay put.
func update(xs [][]float64, assign []int, prev [][]float64) [][]float64 {
	w := len(xs[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for k := range sums {
		sums[k] = make([]float64, w)
	}
	for i, x := range xs {
		k := assign[i]
		counts[k]++
		for j, v := range x {
			sums[k][j] += v
		}
	}
	for k := range sums {
		if counts[k] == 0 {
			sums[k] = prev[k]
			continue
		}
		for j := range sums[k] {
			sums[k][j] /= float64(counts[k])
		}
	}
	return sums
}
