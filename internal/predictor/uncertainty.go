package predictor

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// DefaultMCIterations is the number of stochastic passes per estimate.
const DefaultMCIterations = 50

// StochasticPredictor produces a different forecast sample on every call.
type StochasticPredictor interface {
	PredictStochastic(X [][][]float64) ([][]float64, error)
}

// Uncertainty is the elementwise Monte-Carlo mean and population standard
// deviation of nIter stochastic forecasts. The spread reflects dropout
// variability only and is not a calibrated interval.
type Uncertainty struct {
	Mean       [][]float64
	Std        [][]float64
	Iterations int
}

// MeanStd averages Std over all elements.
func (u Uncertainty) MeanStd() float64 {
	var s float64
	var n int
	for _, row := range u.Std {
		for _, v := range row {
			s += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return s / float64(n)
}

// Estimate runs nIter stochastic passes over X.
func Estimate(m StochasticPredictor, X [][][]float64, nIter int) (Uncertainty, error) {
	if nIter < 1 {
		return Uncertainty{}, fmt.Errorf("iterations must be positive, got %d", nIter)
	}
	samples := make([][][]float64, nIter)
	for i := range samples {
		s, err := m.PredictStochastic(X)
		if err != nil {
			return Uncertainty{}, fmt.Errorf("pass %d: %w", i+1, err)
		}
		samples[i] = s
	}

	u := Uncertainty{
		Mean:       make([][]float64, len(X)),
		Std:        make([][]float64, len(X)),
		Iterations: nIter,
	}
	draws := make([]float64, nIter)
	for b := range X {
		width := len(samples[0][b])
		u.Mean[b] = make([]float64, width)
		u.Std[b] = make([]float64, width)
		for j := range width {
			for i := range samples {
				draws[i] = samples[i][b][j]
			}
			u.Mean[b][j], u.Std[b][j] = stat.PopMeanStdDev(draws, nil)
		}
	}
	return u, nil
}
