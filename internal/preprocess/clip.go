package preprocess

import (
	"fmt"
	"math"
	"sort"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
)

// Default clipping percentiles.
const (
	DefaultLowerPercentile = 0.01
	DefaultUpperPercentile = 0.99
)

// Bounds is a closed clamp interval.
type Bounds struct {
	Lower float64
	Upper float64
}

// Clipper clamps raw error columns to percentile bounds learned from a
// reference slice of readings. A fitted Clipper is never mutated.
type Clipper struct {
	bounds map[model.Column]Bounds
}

// FitClipper learns [lower, upper] percentile bounds for each column from
// rows. Non-finite values are ignored.
func FitClipper(rows []model.Reading, cols []model.Column, lower, upper float64) (*Clipper, error) {
	if lower < 0 || upper > 1 || lower >= upper {
		return nil, fmt.Errorf("invalid clip percentiles [%g, %g]", lower, upper)
	}
	if len(rows) == 0 {
		return nil, &model.InsufficientDataError{What: "clipper fit", Need: 1, Got: 0}
	}

	bounds := make(map[model.Column]Bounds, len(cols))
	for _, col := range cols {
		vals := make([]float64, 0, len(rows))
		for _, r := range rows {
			v, ok := r.Value(col)
			if !ok {
				return nil, fmt.Errorf("column %q cannot be clipped", col)
			}
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			return nil, &model.InsufficientDataError{What: fmt.Sprintf("clipper fit on %s", col), Need: 1, Got: 0}
		}
		sort.Float64s(vals)
		bounds[col] = Bounds{Lower: Quantile(vals, lower), Upper: Quantile(vals, upper)}
	}
	return &Clipper{bounds: bounds}, nil
}

// Bounds returns the learned interval for col.
func (c *Clipper) Bounds(col model.Column) (Bounds, bool) {
	b, ok := c.bounds[col]
	return b, ok
}

// Apply returns a copy of s with every fitted column clamped.
func (c *Clipper) Apply(s Series) Series {
	rows := make([]model.Reading, len(s.Rows))
	for i, r := range s.Rows {
		for col, b := range c.bounds {
			v, _ := r.Value(col)
			setRaw(&r, col, clamp(v, b))
		}
		rows[i] = r
	}
	return Series{Cadence: s.Cadence, Rows: rows}
}

// ClipOutliers fits a clipper on the whole series and applies it.
func ClipOutliers(s Series, cols []model.Column) (Series, error) {
	c, err := FitClipper(s.Rows, cols, DefaultLowerPercentile, DefaultUpperPercentile)
	if err != nil {
		return Series{}, err
	}
	return c.Apply(s), nil
}

func clamp(v float64, b Bounds) float64 {
	switch {
	case v < b.Lower:
		return b.Lower
	case v > b.Upper:
		return b.Upper
	}
	return v
}

func setRaw(r *model.Reading, col model.Column, v float64) {
	switch col {
	case model.ColXError:
		r.XError = v
	case model.ColYError:
		r.YError = v
	case model.ColZError:
		r.ZError = v
	case model.ColClockError:
		r.ClockError = v
	}
}

// Quantile returns the q-quantile of sorted using linear interpolation
// between closest ranks: h = (n-1)q, x[floor h] + frac(h)(x[floor h+1]-x[floor h]).
// sorted must be ascending and non-empty.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * q
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}
