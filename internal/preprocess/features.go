package preprocess

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
)

// warmup is the number of leading rows without a full 6-step rolling window.
const warmup = 5

// FeatureRow is a regularized reading extended with derived columns.
type FeatureRow struct {
	model.Reading

	Radial float64

	DX, DY, DZ, DClock float64

	RadialLag1  float64
	RadialDiff1 float64
	RadialRoll3 float64
	RadialRoll6 float64

	HourSin   float64
	HourCos   float64
	DaySin    float64
	DayCos    float64
	IsWeekend float64
}

// Value returns column c of the row, raw or derived.
func (r FeatureRow) Value(c model.Column) (float64, bool) {
	if v, ok := r.Reading.Value(c); ok {
		return v, true
	}
	switch c {
	case model.ColRadialError:
		return r.Radial, true
	case model.ColDX:
		return r.DX, true
	case model.ColDY:
		return r.DY, true
	case model.ColDZ:
		return r.DZ, true
	case model.ColDClock:
		return r.DClock, true
	case model.ColRadialLag1:
		return r.RadialLag1, true
	case model.ColRadialDiff1:
		return r.RadialDiff1, true
	case model.ColRadialRoll3:
		return r.RadialRoll3, true
	case model.ColRadialRoll6:
		return r.RadialRoll6, true
	case model.ColHourSin:
		return r.HourSin, true
	case model.ColHourCos:
		return r.HourCos, true
	case model.ColDaySin:
		return r.DaySin, true
	case model.ColDayCos:
		return r.DayCos, true
	case model.ColIsWeekend:
		return r.IsWeekend, true
	}
	return 0, false
}

// RadialError is the Euclidean norm of the three axis errors.
func RadialError(r model.Reading) float64 {
	return math.Sqrt(r.XError*r.XError + r.YError*r.YError + r.ZError*r.ZError)
}

// AddFeatures derives every feature column from a regularized series. The
// first rows, which lack a full lag and rolling history, are dropped.
func AddFeatures(s Series) []FeatureRow {
	if len(s.Rows) <= warmup {
		return nil
	}

	radial := make([]float64, len(s.Rows))
	for i, r := range s.Rows {
		radial[i] = RadialError(r)
	}

	out := make([]FeatureRow, 0, len(s.Rows)-warmup)
	for i := warmup; i < len(s.Rows); i++ {
		cur, prev := s.Rows[i], s.Rows[i-1]
		row := FeatureRow{
			Reading:     cur,
			Radial:      radial[i],
			DX:          cur.XError - prev.XError,
			DY:          cur.YError - prev.YError,
			DZ:          cur.ZError - prev.ZError,
			DClock:      cur.ClockError - prev.ClockError,
			RadialLag1:  radial[i-1],
			RadialDiff1: radial[i] - radial[i-1],
			RadialRoll3: stat.Mean(radial[i-2:i+1], nil),
			RadialRoll6: stat.Mean(radial[i-5:i+1], nil),
		}
		setTemporal(&row, cur.Timestamp)
		out = append(out, row)
	}
	return out
}

// AddClockFeatures derives radial error and axis/clock differences for every
// row, with the first row's differences set to zero. Lag and rolling columns
// are not computed and hold NaN.
func AddClockFeatures(s Series) []FeatureRow {
	out := make([]FeatureRow, len(s.Rows))
	nan := math.NaN()
	for i, cur := range s.Rows {
		row := FeatureRow{
			Reading:     cur,
			Radial:      RadialError(cur),
			RadialLag1:  nan,
			RadialDiff1: nan,
			RadialRoll3: nan,
			RadialRoll6: nan,
		}
		if i > 0 {
			prev := s.Rows[i-1]
			row.DX = cur.XError - prev.XError
			row.DY = cur.YError - prev.YError
			row.DZ = cur.ZError - prev.ZError
			row.DClock = cur.ClockError - prev.ClockError
		}
		setTemporal(&row, cur.Timestamp)
		out[i] = row
	}
	return out
}

// setTemporal fills cyclical hour and day-of-week encodings. Days count from
// Monday = 0.
func setTemporal(row *FeatureRow, ts time.Time) {
	ts = ts.UTC()
	hour := float64(ts.Hour())
	dow := (int(ts.Weekday()) + 6) % 7

	row.HourSin = math.Sin(2 * math.Pi * hour / 24)
	row.HourCos = math.Cos(2 * math.Pi * hour / 24)
	row.DaySin = math.Sin(2 * math.Pi * float64(dow) / 7)
	row.DayCos = math.Cos(2 * math.Pi * float64(dow) / 7)
	if dow >= 5 {
		row.IsWeekend = 1
	}
}
