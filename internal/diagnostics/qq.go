package diagnostics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// QQ holds normal probability plot coordinates and the least-squares
// reference line through them.
type QQ struct {
	Theoretical []float64
	Ordered     []float64
	Slope       float64
	Intercept   float64
}

// QQPoints pairs sorted residuals with normal quantiles at Filliben's
// order statistic medians.
func QQPoints(residuals []float64) QQ {
	x := finite(residuals)
	n := len(x)
	if n == 0 {
		return QQ{}
	}
	sort.Float64s(x)

	q := QQ{Theoretical: make([]float64, n), Ordered: x}
	last := math.Pow(0.5, 1/float64(n))
	for i := range n {
		var m float64
		switch i {
		case 0:
			m = 1 - last
		case n - 1:
			m = last
		default:
			m = (float64(i+1) - 0.3175) / (float64(n) + 0.365)
		}
		q.Theoretical[i] = distuv.UnitNormal.Quantile(m)
	}
	if n > 1 {
		q.Intercept, q.Slope = stat.LinearRegression(q.Theoretical, q.Ordered, nil, false)
	}
	return q
}
