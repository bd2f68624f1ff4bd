package diagnostics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
)

// NormalityAlpha is the significance level of the normality decision.
const NormalityAlpha = 0.05

// Report summarizes the residual distribution of one forecast.
type Report struct {
	N        int     `json:"n"`
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"` // excess
	ShapiroW float64 `json:"shapiro_w"`
	ShapiroP float64 `json:"shapiro_p"`
	Normal   bool    `json:"normal"`

	// Instability is set when non-finite residuals were dropped.
	Instability *model.NumericInstabilityError `json:"-"`
	Notes       []string                       `json:"notes,omitempty"`
}

// Residuals returns yTrue - yPred elementwise.
func Residuals(yTrue, yPred []float64) ([]float64, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("residuals: %d targets but %d predictions", len(yTrue), len(yPred))
	}
	r := make([]float64, len(yTrue))
	for i := range r {
		r[i] = yTrue[i] - yPred[i]
	}
	return r, nil
}

// Analyze tests the residuals of yPred against yTrue for normality.
// Non-finite residuals are filtered and recorded, not treated as failure.
// Moments use population (biased) estimators.
func Analyze(yTrue, yPred []float64) (Report, error) {
	all, err := Residuals(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}

	res := finite(all)
	var rep Report
	if dropped := len(all) - len(res); dropped > 0 {
		rep.Instability = &model.NumericInstabilityError{Dropped: dropped, Total: len(all)}
		rep.Notes = append(rep.Notes, rep.Instability.Error())
	}
	if len(res) == 0 {
		return rep, &model.InsufficientDataError{What: "residual analysis (finite residuals)", Need: 1, Got: 0}
	}

	rep.N = len(res)
	rep.Mean, rep.Std = stat.PopMeanStdDev(res, nil)
	rep.Skewness, rep.Kurtosis = math.NaN(), math.NaN()
	if m2 := stat.Moment(2, res, nil); m2 > 0 {
		rep.Skewness = stat.Moment(3, res, nil) / math.Pow(m2, 1.5)
		rep.Kurtosis = stat.Moment(4, res, nil)/(m2*m2) - 3
	}

	rep.ShapiroW, rep.ShapiroP, err = ShapiroWilk(res)
	switch {
	case errors.Is(err, ErrConstantSample):
		rep.Notes = append(rep.Notes, "residuals are constant, normality test undefined")
	case err != nil:
		rep.Notes = append(rep.Notes, err.Error())
	}
	if len(res) > MaxShapiroN {
		rep.Notes = append(rep.Notes, fmt.Sprintf("normality tested on the first %d of %d residuals", MaxShapiroN, len(res)))
	}
	rep.Normal = rep.ShapiroP > NormalityAlpha
	return rep, nil
}

func finite(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}
