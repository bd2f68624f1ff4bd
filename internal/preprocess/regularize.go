// Package preprocess turns raw telemetry into a regular, feature-engineered
// series ready for windowing.
package preprocess

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
)

// MaxGridRows bounds the grid Regularize will allocate, about 30 years at a
// 15 minute cadence.
const MaxGridRows = 1 << 20

// Series is telemetry on a fixed time grid: timestamps strictly increasing,
// one row per cadence step, no gaps.
type Series struct {
	Cadence time.Duration
	Rows    []model.Reading
}

// Len returns the number of grid rows.
func (s Series) Len() int { return len(s.Rows) }

// TimeRange returns the first and last grid timestamps.
func (s Series) TimeRange() (model.TimeRange, bool) {
	if len(s.Rows) == 0 {
		return model.TimeRange{}, false
	}
	return model.TimeRange{Start: s.Rows[0].Timestamp, End: s.Rows[len(s.Rows)-1].Timestamp}, true
}

// Regularize resamples readings onto a cadence grid. Readings falling into
// the same cell are averaged (non-finite values ignored); empty cells are
// linearly interpolated in time. Leading cells that cannot be interpolated
// are dropped, trailing ones carry the last observed value forward.
//
// Linear interpolation assumes the error evolves smoothly inside a gap,
// which does not hold across long outages.
func Regularize(readings []model.Reading, cadence time.Duration) (Series, error) {
	if cadence <= 0 {
		return Series{}, fmt.Errorf("cadence must be positive, got %s", cadence)
	}
	if len(readings) == 0 {
		return Series{}, &model.DataFormatError{Column: model.TimeColumn, Err: errors.New("no readings")}
	}

	sorted := make([]model.Reading, 0, len(readings))
	for _, r := range readings {
		if r.Timestamp.IsZero() {
			return Series{}, &model.DataFormatError{Column: model.TimeColumn, Err: errors.New("zero timestamp")}
		}
		sorted = append(sorted, r)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	start := sorted[0].Timestamp.Truncate(cadence)
	end := sorted[len(sorted)-1].Timestamp.Truncate(cadence)
	steps := int64(end.Sub(start) / cadence)
	if steps >= MaxGridRows {
		return Series{}, &model.DataFormatError{
			Column: model.TimeColumn,
			Err: fmt.Errorf("readings span %s to %s, more than %d rows at %s cadence",
				start.Format(time.RFC3339), end.Format(time.RFC3339), MaxGridRows, cadence),
		}
	}
	n := int(steps) + 1

	// cells[col][i] accumulates values of column col in grid cell i.
	var sums, counts [4][]float64
	for c := range sums {
		sums[c] = make([]float64, n)
		counts[c] = make([]float64, n)
	}
	for _, r := range sorted {
		i := int(r.Timestamp.Truncate(cadence).Sub(start) / cadence)
		for c, col := range model.RawColumns {
			v, _ := r.Value(col)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			sums[c][i] += v
			counts[c][i]++
		}
	}

	var cols [4][]float64
	for c := range cols {
		cols[c] = make([]float64, n)
		for i := range n {
			if counts[c][i] > 0 {
				cols[c][i] = sums[c][i] / counts[c][i]
			} else {
				cols[c][i] = math.NaN()
			}
		}
		interpolateLinear(cols[c])
	}

	// Drop leading cells some column could not fill.
	first := 0
	for first < n && anyNaN(cols, first) {
		first++
	}
	if first == n {
		return Series{}, &model.InsufficientDataError{What: "regularize (finite readings)", Need: 1, Got: 0}
	}

	rows := make([]model.Reading, 0, n-first)
	for i := first; i < n; i++ {
		rows = append(rows, model.Reading{
			Timestamp:  start.Add(time.Duration(i) * cadence),
			XError:     cols[0][i],
			YError:     cols[1][i],
			ZError:     cols[2][i],
			ClockError: cols[3][i],
		})
	}
	return Series{Cadence: cadence, Rows: rows}, nil
}

// interpolateLinear fills NaN runs between finite values in place. Values on
// the grid are equally spaced so index-linear equals time-linear. Trailing
// NaNs take the last finite value; leading NaNs are left alone.
func interpolateLinear(v []float64) {
	last := -1
	for i, x := range v {
		if math.IsNaN(x) {
			continue
		}
		if last >= 0 && i-last > 1 {
			step := (x - v[last]) / float64(i-last)
			for j := last + 1; j < i; j++ {
				v[j] = v[last] + step*float64(j-last)
			}
		}
		last = i
	}
	if last >= 0 {
		for j := last + 1; j < len(v); j++ {
			v[j] = v[last]
		}
	}
}

func anyNaN(cols [4][]float64, i int) bool {
	for c := range cols {
		if math.IsNaN(cols[c][i]) {
			return true
		}
	}
	return false
}
