// Package diagnostics scores forecasts and checks whether their residuals
// look normally distributed.
package diagnostics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// MaxShapiroN is the largest sample the Shapiro-Wilk approximation is
// valid for. Longer inputs are truncated to their first MaxShapiroN values.
const MaxShapiroN = 5000

// ErrConstantSample is returned when all values are identical.
var ErrConstantSample = errors.New("shapiro-wilk: all values are identical")

// Royston (1995) polynomial coefficients.
var (
	swC1 = []float64{0, 0.221157, -0.147981, -2.071190, 4.434685, -2.706056}
	swC2 = []float64{0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633}
	swC3 = []float64{0.544, -0.39978, 0.025054, -6.714e-4}
	swC4 = []float64{1.3822, -0.77857, 0.062767, -0.0020322}
	swC5 = []float64{-1.5861, -0.31082, -0.083751, 0.0038915}
	swC6 = []float64{-0.4803, -0.082676, 0.0030302}
	swG  = []float64{-2.273, 0.459}
)

// ShapiroWilk computes the W statistic and its p-value using Royston's
// algorithm AS R94. x needs at least 3 values; at most MaxShapiroN are used.
func ShapiroWilk(x []float64) (w, p float64, err error) {
	if len(x) > MaxShapiroN {
		x = x[:MaxShapiroN]
	}
	n := len(x)
	if n < 3 {
		return math.NaN(), math.NaN(), fmt.Errorf("shapiro-wilk: need at least 3 values, got %d", n)
	}

	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	if sorted[n-1]-sorted[0] == 0 {
		return math.NaN(), math.NaN(), ErrConstantSample
	}

	a := swCoefficients(n)

	var mean float64
	for _, v := range sorted {
		mean += v
	}
	mean /= float64(n)
	var ss, num float64
	for _, v := range sorted {
		ss += (v - mean) * (v - mean)
	}
	for i := 1; i < len(a); i++ {
		num += a[i] * (sorted[n-i] - sorted[i-1])
	}
	w = math.Min(num*num/ss, 1)

	return w, swPValue(w, n), nil
}

// swCoefficients returns the antisymmetric weights a[1..n/2] (a[0] unused).
func swCoefficients(n int) []float64 {
	nn2 := n / 2
	a := make([]float64, nn2+1)
	if n == 3 {
		a[1] = math.Sqrt(0.5)
		return a
	}

	an := float64(n)
	m := make([]float64, nn2+1)
	var summ2 float64
	for i := 1; i <= nn2; i++ {
		m[i] = distuv.UnitNormal.Quantile((float64(i) - 0.375) / (an + 0.25))
		summ2 += m[i] * m[i]
	}
	summ2 *= 2
	ssumm2 := math.Sqrt(summ2)
	rsn := 1 / math.Sqrt(an)

	a1 := poly(swC1, rsn) - m[1]/ssumm2
	first := 2
	var fac float64
	if n > 5 {
		first = 3
		a2 := -m[2]/ssumm2 + poly(swC2, rsn)
		fac = math.Sqrt((summ2 - 2*m[1]*m[1] - 2*m[2]*m[2]) / (1 - 2*a1*a1 - 2*a2*a2))
		a[2] = a2
	} else {
		fac = math.Sqrt((summ2 - 2*m[1]*m[1]) / (1 - 2*a1*a1))
	}
	a[1] = a1
	for i := first; i <= nn2; i++ {
		a[i] = -m[i] / fac
	}
	return a
}

func swPValue(w float64, n int) float64 {
	if n == 3 {
		const pi6, stqr = 1.90985931710274, 1.04719755119660
		return math.Max(0, math.Min(1, pi6*(math.Asin(math.Sqrt(w))-stqr)))
	}

	an := float64(n)
	y := math.Log(1 - w)
	var mu, sigma float64
	if n <= 11 {
		gamma := poly(swG, an)
		if y >= gamma {
			return 0
		}
		y = -math.Log(gamma - y)
		mu = poly(swC3, an)
		sigma = math.Exp(poly(swC4, an))
	} else {
		ln := math.Log(an)
		mu = poly(swC5, ln)
		sigma = math.Exp(poly(swC6, ln))
	}
	return distuv.UnitNormal.Survival((y - mu) / sigma)
}

// poly evaluates c[0] + c[1]x + c[2]x^2 + ...
func poly(c []float64, x float64) float64 {
	var r float64
	for i := len(c) - 1; i >= 0; i-- {
		r = r*x + c[i]
	}
	return r
}
