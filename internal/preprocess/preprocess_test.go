package preprocess

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
)

var t0 = time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC) // a Monday

func reading(offset time.Duration, x, y, z, clk float64) model.Reading {
	return model.Reading{Timestamp: t0.Add(offset), XError: x, YError: y, ZError: z, ClockError: clk}
}

func TestRegularize_AveragesAndInterpolates(t *testing.T) {
	readings := []model.Reading{
		reading(50*time.Minute, 4, 0, 0, 40), // out of order on purpose
		reading(0, 0, 0, 0, 0),
		reading(5*time.Minute, 2, 0, 0, 2),
		// 15-30 and 30-45 cells are empty
	}

	s, err := Regularize(readings, 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 4, s.Len())

	for i, r := range s.Rows {
		assert.Equal(t, t0.Add(time.Duration(i)*15*time.Minute), r.Timestamp)
	}
	// cell 0 averages 0 and 2; cell 3 holds 4; cells 1 and 2 interpolate.
	assert.InDelta(t, 1.0, s.Rows[0].XError, 1e-12)
	assert.InDelta(t, 2.0, s.Rows[1].XError, 1e-12)
	assert.InDelta(t, 3.0, s.Rows[2].XError, 1e-12)
	assert.InDelta(t, 4.0, s.Rows[3].XError, 1e-12)
	assert.InDelta(t, 27.0, s.Rows[2].ClockError, 1e-12)
}

func TestRegularize_ConstantStep(t *testing.T) {
	var readings []model.Reading
	for i := range 100 {
		// irregular sampling: 7 to 23 minutes apart
		readings = append(readings, reading(time.Duration(i*15+(i%3-1)*8)*time.Minute+10*time.Minute, float64(i), 1, 1, 1))
	}

	s, err := Regularize(readings, time.Hour)
	require.NoError(t, err)
	for i := 1; i < s.Len(); i++ {
		assert.Equal(t, time.Hour, s.Rows[i].Timestamp.Sub(s.Rows[i-1].Timestamp))
	}
	rng, ok := s.TimeRange()
	require.True(t, ok)
	assert.True(t, rng.End.After(rng.Start))
}

func TestRegularize_SkipsNonFiniteAndLeadingGaps(t *testing.T) {
	readings := []model.Reading{
		reading(0, math.NaN(), 1, 1, 1),
		reading(15*time.Minute, 3, 1, 1, 1),
		reading(30*time.Minute, math.Inf(1), 1, 1, 1),
	}

	s, err := Regularize(readings, 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len(), "leading cell with no finite x is dropped")
	assert.InDelta(t, 3.0, s.Rows[0].XError, 1e-12)
	assert.InDelta(t, 3.0, s.Rows[1].XError, 1e-12, "trailing cell carries last value")
}

func TestRegularize_Errors(t *testing.T) {
	_, err := Regularize(nil, 15*time.Minute)
	var dfe *model.DataFormatError
	assert.True(t, errors.As(err, &dfe))

	_, err = Regularize([]model.Reading{{XError: 1}}, 15*time.Minute)
	assert.True(t, errors.As(err, &dfe))

	_, err = Regularize([]model.Reading{reading(0, 1, 1, 1, 1)}, 0)
	assert.Error(t, err)
}

func TestRegularize_StrayFarTimestamp(t *testing.T) {
	stray := reading(76*365*24*time.Hour, 1, 1, 1, 1)
	_, err := Regularize([]model.Reading{reading(0, 1, 1, 1, 1), reading(15*time.Minute, 2, 2, 2, 2), stray}, 15*time.Minute)

	var dfe *model.DataFormatError
	require.True(t, errors.As(err, &dfe), err)
	assert.Equal(t, model.TimeColumn, dfe.Column)
	assert.Contains(t, err.Error(), "2100-")

	// The same span is fine at a coarser cadence.
	s, err := Regularize([]model.Reading{reading(0, 1, 1, 1, 1), stray}, 24*time.Hour)
	require.NoError(t, err)
	assert.Less(t, s.Len(), MaxGridRows)
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	// numpy.percentile(range(1, 11), [1, 25, 50, 99])
	assert.InDelta(t, 1.09, Quantile(sorted, 0.01), 1e-12)
	assert.InDelta(t, 3.25, Quantile(sorted, 0.25), 1e-12)
	assert.InDelta(t, 5.5, Quantile(sorted, 0.5), 1e-12)
	assert.InDelta(t, 9.91, Quantile(sorted, 0.99), 1e-12)
	assert.InDelta(t, 10.0, Quantile(sorted, 1), 1e-12)
	assert.InDelta(t, 7.0, Quantile([]float64{7}, 0.3), 1e-12)
}

func TestClipper_BoundsContainClippedValues(t *testing.T) {
	var rows []model.Reading
	for i := range 200 {
		x := float64(i)
		if i == 100 {
			x = 1e6
		}
		rows = append(rows, reading(time.Duration(i)*15*time.Minute, x, -x, 0, x/2))
	}
	s := Series{Cadence: 15 * time.Minute, Rows: rows}

	clipped, err := ClipOutliers(s, model.RawColumns)
	require.NoError(t, err)
	require.Equal(t, s.Len(), clipped.Len())

	c, err := FitClipper(s.Rows, model.RawColumns, DefaultLowerPercentile, DefaultUpperPercentile)
	require.NoError(t, err)
	for _, col := range model.RawColumns {
		b, ok := c.Bounds(col)
		require.True(t, ok)
		for _, r := range clipped.Rows {
			v, _ := r.Value(col)
			assert.GreaterOrEqual(t, v, b.Lower)
			assert.LessOrEqual(t, v, b.Upper)
		}
	}
	assert.Less(t, clipped.Rows[100].XError, 1e6)
	// input untouched
	assert.InDelta(t, 1e6, s.Rows[100].XError, 0)
}

func TestClipper_FitOnSliceAppliesToWhole(t *testing.T) {
	var rows []model.Reading
	for i := range 10 {
		rows = append(rows, reading(time.Duration(i)*time.Hour, float64(i), 0, 0, 0))
	}
	c, err := FitClipper(rows[:5], []model.Column{model.ColXError}, 0, 1)
	require.NoError(t, err)

	out := c.Apply(Series{Cadence: time.Hour, Rows: rows})
	assert.InDelta(t, 4.0, out.Rows[9].XError, 0)
	assert.InDelta(t, 0.0, out.Rows[0].XError, 0)
}

func TestFitClipper_Errors(t *testing.T) {
	_, err := FitClipper(nil, model.RawColumns, 0.01, 0.99)
	assert.True(t, errors.Is(err, model.ErrInsufficientData))

	_, err = FitClipper([]model.Reading{reading(0, 1, 1, 1, 1)}, model.RawColumns, 0.9, 0.1)
	assert.Error(t, err)

	_, err = FitClipper([]model.Reading{reading(0, 1, 1, 1, 1)}, []model.Column{model.ColRadialError}, 0.01, 0.99)
	assert.Error(t, err)
}

func hourlySeries(n int) Series {
	rows := make([]model.Reading, n)
	for i := range rows {
		rows[i] = reading(time.Duration(i)*time.Hour, 3, 4, 0, float64(i))
	}
	return Series{Cadence: time.Hour, Rows: rows}
}

func TestAddFeatures(t *testing.T) {
	s := hourlySeries(30)
	rows := AddFeatures(s)
	require.Len(t, rows, 25, "first five rows lack rolling history")

	first := rows[0]
	assert.Equal(t, s.Rows[5].Timestamp, first.Timestamp)
	assert.InDelta(t, 5.0, first.Radial, 1e-12)
	assert.InDelta(t, 1.0, first.DClock, 1e-12)
	assert.InDelta(t, 0.0, first.DX, 1e-12)
	assert.InDelta(t, 5.0, first.RadialLag1, 1e-12)
	assert.InDelta(t, 0.0, first.RadialDiff1, 1e-12)
	assert.InDelta(t, 5.0, first.RadialRoll3, 1e-12)
	assert.InDelta(t, 5.0, first.RadialRoll6, 1e-12)

	// 05:00 on a Monday
	assert.InDelta(t, math.Sin(2*math.Pi*5/24), first.HourSin, 1e-12)
	assert.InDelta(t, math.Cos(2*math.Pi*5/24), first.HourCos, 1e-12)
	assert.InDelta(t, 0.0, first.DaySin, 1e-12)
	assert.InDelta(t, 1.0, first.DayCos, 1e-12)
	assert.InDelta(t, 0.0, first.IsWeekend, 0)

	for _, r := range rows {
		for col := range model.ColumnCatalog {
			v, ok := r.Value(col)
			require.True(t, ok, col)
			assert.False(t, math.IsNaN(v), col)
		}
	}
}

func TestAddFeatures_RollingMeans(t *testing.T) {
	rows := make([]model.Reading, 8)
	for i := range rows {
		rows[i] = reading(time.Duration(i)*time.Hour, float64(i), 0, 0, 0)
	}
	out := AddFeatures(Series{Cadence: time.Hour, Rows: rows})
	require.Len(t, out, 3)

	// row 7: radial = 7; roll3 = mean(5,6,7); roll6 = mean(2..7)
	last := out[2]
	assert.InDelta(t, 6.0, last.RadialRoll3, 1e-12)
	assert.InDelta(t, 4.5, last.RadialRoll6, 1e-12)
	assert.InDelta(t, 1.0, last.RadialDiff1, 1e-12)
	assert.InDelta(t, 6.0, last.RadialLag1, 1e-12)
}

func TestAddFeatures_ShortSeries(t *testing.T) {
	assert.Empty(t, AddFeatures(hourlySeries(5)))
}

func TestAddFeatures_Weekend(t *testing.T) {
	sat := time.Date(2024, 9, 7, 12, 0, 0, 0, time.UTC)
	rows := make([]model.Reading, 6)
	for i := range rows {
		rows[i] = model.Reading{Timestamp: sat.Add(time.Duration(i-5) * time.Hour)}
	}
	out := AddFeatures(Series{Cadence: time.Hour, Rows: rows})
	require.Len(t, out, 1)
	assert.InDelta(t, 1.0, out[0].IsWeekend, 0)
	assert.InDelta(t, math.Sin(2*math.Pi*5/7), out[0].DaySin, 1e-12)
}

func TestAddClockFeatures(t *testing.T) {
	s := hourlySeries(4)
	rows := AddClockFeatures(s)
	require.Len(t, rows, 4)

	assert.InDelta(t, 0.0, rows[0].DClock, 0)
	assert.InDelta(t, 1.0, rows[1].DClock, 1e-12)
	assert.InDelta(t, 5.0, rows[3].Radial, 1e-12)
	assert.True(t, math.IsNaN(rows[2].RadialRoll6))
}
