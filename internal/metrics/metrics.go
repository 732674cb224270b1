// Package metrics turns a scored frame and its actual response into a
// model.ModelMetrics record.
package metrics

import (
	"fmt"
	"math"

	"scorekit/domain/core"
	"scorekit/domain/frame"
	"scorekit/domain/model"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// MaxHitRatioK caps the number of hit ratios reported for multinomial models.
const MaxHitRatioK = 10

const loglossEps = 1e-15

// Compute builds metrics for m from the actual response and the predictions
// frame (column 0 the prediction, then one probability column per class for
// classifiers). Rows with a missing actual value are skipped.
//
// Binomial adds AUC on top of the multinomial metrics, which in turn add the
// confusion matrix to the squared error every supervised category reports.
// Clustering and unknown categories are not supported and fail loudly.
func Compute(m *model.Model, actual *frame.Vec, preds *frame.Frame, frameKey core.Key, frameChecksum uint64) (*model.ModelMetrics, error) {
	category := m.Output.Category
	mm := model.NewModelMetrics(m.Key, frameKey, frameChecksum, category)

	if actual == nil || preds == nil || preds.NumCols() == 0 {
		return nil, fmt.Errorf("metrics for model %s: actual and predictions are required", m.Key)
	}
	if actual.Len() != preds.NumRows() {
		return nil, fmt.Errorf("metrics for model %s: %d actual rows but %d predictions", m.Key, actual.Len(), preds.NumRows())
	}

	switch category {
	case model.CategoryBinomial:
		probs := probabilities(preds, m.Output.NClasses())
		auc, err := AUC(actual.Values(), probs[1])
		if err != nil {
			return nil, err
		}
		mm.AUC = auc
		fallthrough
	case model.CategoryMultinomial:
		if err := classification(mm, m.Output.NClasses(), actual, preds); err != nil {
			return nil, err
		}
		fallthrough
	case model.CategoryRegression:
		if !m.Output.IsClassifier() {
			if err := regression(mm, actual.Values(), preds.VecAt(0).Values()); err != nil {
				return nil, err
			}
		}
	default:
		return nil, core.NewUnimplementedError(fmt.Sprintf("metrics for %s models", category))
	}
	return mm, nil
}

// probabilities returns the class probability columns as plain slices.
func probabilities(preds *frame.Frame, nclasses int) [][]float64 {
	out := make([][]float64, nclasses)
	for k := 0; k < nclasses && k+1 < preds.NumCols(); k++ {
		out[k] = preds.VecAt(k + 1).Values()
	}
	return out
}

func classification(mm *model.ModelMetrics, nclasses int, actual *frame.Vec, preds *frame.Frame) error {
	if preds.NumCols() < nclasses+1 {
		return fmt.Errorf("classifier predictions have %d columns, expected %d", preds.NumCols(), nclasses+1)
	}
	act := actual.Values()
	predicted := preds.VecAt(0).Values()
	probs := probabilities(preds, nclasses)

	nActual := nclasses
	if d := actual.Domain(); d != nil && d.Len() > nActual {
		nActual = d.Len()
	}
	if d := actual.Domain(); d != nil {
		mm.Domain = d.Levels()
	}

	cm := ConfusionMatrix(act, predicted, nActual, nclasses)
	mm.ConfusionMatrix = cm

	var n, wrong int64
	var sqErr, logloss float64
	row := make([]float64, nclasses)
	for i, a := range act {
		if math.IsNaN(a) {
			continue
		}
		n++
		ai := int(a)
		if math.IsNaN(predicted[i]) || int(predicted[i]) != ai {
			wrong++
		}
		for k := range row {
			row[k] = probs[k][i]
		}
		p := 0.0
		if ai < nclasses {
			p = row[ai]
		}
		sqErr += (1 - p) * (1 - p)
		logloss -= math.Log(math.Max(p, loglossEps))
	}
	mm.NObs = n
	if n == 0 {
		return nil
	}
	mm.Error = float64(wrong) / float64(n)
	mm.MSE = sqErr / float64(n)
	mm.RMSE = math.Sqrt(mm.MSE)
	mm.Logloss = logloss / float64(n)

	k := nclasses
	if k > MaxHitRatioK {
		k = MaxHitRatioK
	}
	mm.HitRatios = HitRatios(act, probs, k)
	return nil
}

func regression(mm *model.ModelMetrics, actual, predicted []float64) error {
	var sq, ys []float64
	for i, a := range actual {
		if math.IsNaN(a) || math.IsNaN(predicted[i]) {
			continue
		}
		d := a - predicted[i]
		sq = append(sq, d*d)
		ys = append(ys, a)
	}
	mm.NObs = int64(len(sq))
	if len(sq) == 0 {
		return nil
	}
	mse, err := stats.Mean(sq)
	if err != nil {
		return fmt.Errorf("mean squared error: %w", err)
	}
	mm.MSE = mse
	mm.RMSE = math.Sqrt(mse)
	mm.R2 = R2(ys, mse)
	return nil
}

// R2 is 1 - mse/var(actual); nil when the actual values are constant.
func R2(actual []float64, mse float64) *float64 {
	v, err := stats.PopulationVariance(actual)
	if err != nil || v == 0 {
		return nil
	}
	r2 := 1 - mse/v
	return &r2
}

// ConfusionMatrix counts [actual][predicted] pairs. Rows with a missing
// actual or prediction, or an index outside the matrix, are not counted.
func ConfusionMatrix(actual, predicted []float64, nActual, nPredicted int) [][]int64 {
	cm := make([][]int64, nActual)
	for i := range cm {
		cm[i] = make([]int64, nPredicted)
	}
	for i, a := range actual {
		p := predicted[i]
		if math.IsNaN(a) || math.IsNaN(p) {
			continue
		}
		ai, pi := int(a), int(p)
		if ai < 0 || ai >= nActual || pi < 0 || pi >= nPredicted {
			continue
		}
		cm[ai][pi]++
	}
	return cm
}

// HitRatios returns, for k = 1..maxK, the fraction of rows whose actual class
// is among the k most probable classes. Ties rank the lower class index first.
func HitRatios(actual []float64, probs [][]float64, maxK int) []float64 {
	hits := make([]int64, maxK)
	var n int64
	for i, a := range actual {
		if math.IsNaN(a) {
			continue
		}
		n++
		ai := int(a)
		if ai < 0 || ai >= len(probs) {
			continue
		}
		pa := probs[ai][i]
		rank := 0
		for k := range probs {
			p := probs[k][i]
			if p > pa || (p == pa && k < ai) {
				rank++
			}
		}
		for k := rank; k < maxK; k++ {
			hits[k]++
		}
	}
	out := make([]float64, maxK)
	if n == 0 {
		return out
	}
	for k := range hits {
		out[k] = float64(hits[k]) / float64(n)
	}
	return out
}

// AUC is the area under the ROC curve of score as a predictor of class 1.
// It returns nil when either class is absent, where the curve is undefined.
func AUC(actual, score []float64) (*float64, error) {
	if len(actual) != len(score) {
		return nil, fmt.Errorf("auc: %d actual values but %d scores", len(actual), len(score))
	}
	var y []float64
	var classes []bool
	var pos, neg int
	for i, a := range actual {
		if math.IsNaN(a) || math.IsNaN(score[i]) || (a != 0 && a != 1) {
			continue
		}
		y = append(y, score[i])
		classes = append(classes, a == 1)
		if a == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return nil, nil
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	auc := integrate.Trapezoidal(fpr, tpr)
	return &auc, nil
}
