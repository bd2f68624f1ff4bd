package diagnostics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
)

// RMSE is the root mean squared error. It is NaN for empty input.
func RMSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return math.NaN()
	}
	return floats.Distance(yTrue, yPred, 2) / math.Sqrt(float64(len(yTrue)))
}

// MAE is the mean absolute error. It is NaN for empty input.
func MAE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return math.NaN()
	}
	return floats.Distance(yTrue, yPred, 1) / float64(len(yTrue))
}

// Align flattens predictions and targets row by row into equal-length
// vectors. Extra rows are dropped and each row is cut to the narrower of the
// two, so values stay paired by window. Any mismatch is described by the
// returned error, which is informational.
func Align(pred, truth [][]float64) (p, t []float64, mismatch *model.ShapeMismatchError) {
	rows := min(len(pred), len(truth))
	ragged := len(pred) != len(truth)
	for i := range rows {
		n := min(len(pred[i]), len(truth[i]))
		if n != len(pred[i]) || n != len(truth[i]) {
			ragged = true
		}
		p = append(p, pred[i][:n]...)
		t = append(t, truth[i][:n]...)
	}
	if ragged {
		mismatch = &model.ShapeMismatchError{
			PredRows: len(pred), PredCols: width(pred),
			TruthRows: len(truth), TruthCols: width(truth),
		}
	}
	return p, t, mismatch
}

func width(m [][]float64) int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}
