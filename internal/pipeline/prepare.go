package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/Hrishi-524/DeepOrbit/internal/config"
	"github.com/Hrishi-524/DeepOrbit/internal/ingest"
	"github.com/Hrishi-524/DeepOrbit/internal/model"
	"github.com/Hrishi-524/DeepOrbit/internal/preprocess"
	"github.com/Hrishi-524/DeepOrbit/internal/window"
)

// loadSeries parses a telemetry CSV and regularizes it onto cadence.
func loadSeries(path string, cadence time.Duration) (preprocess.Series, error) {
	readings, err := (&ingest.TelemetryParser{}).ParseFile(path)
	if err != nil {
		return preprocess.Series{}, err
	}
	s, err := preprocess.Regularize(readings, cadence)
	if err != nil {
		return preprocess.Series{}, fmt.Errorf("regularizing %s: %w", path, err)
	}
	return s, nil
}

// clipSeries clamps the raw error columns according to scope. For
// config.ClipTrain the bounds are learned from the rows before cut only.
func clipSeries(s preprocess.Series, scope string, lower, upper float64, cut time.Time) (preprocess.Series, error) {
	var ref []model.Reading
	switch scope {
	case config.ClipNone, "":
		return s, nil
	case config.ClipSeries:
		ref = s.Rows
	case config.ClipTrain:
		for _, r := range s.Rows {
			if !r.Timestamp.Before(cut) {
				break
			}
			ref = append(ref, r)
		}
	default:
		return s, fmt.Errorf("unknown clip scope %q", scope)
	}
	c, err := preprocess.FitClipper(ref, model.RawColumns, lower, upper)
	if err != nil {
		return s, fmt.Errorf("fitting clipper: %w", err)
	}
	return c.Apply(s), nil
}

// partition builds feature rows and splits them. With train-scoped clipping
// the split is computed once to find where the test rows begin, the series
// is clipped with bounds from the earlier rows, and features are rebuilt.
// Clipping does not move timestamps, so the second split matches the first.
func partition(s preprocess.Series, p config.Preprocess) (window.Partition, error) {
	mode := window.SplitMode(p.SplitMode)
	split := func(s preprocess.Series) (window.Partition, error) {
		return window.Split(preprocess.AddFeatures(s), mode, p.TrainRatio)
	}

	part, err := split(s)
	if err != nil {
		return part, err
	}
	if p.ClipScope == config.ClipNone || p.ClipScope == "" {
		return part, nil
	}
	clipped, err := clipSeries(s, p.ClipScope, p.ClipLower, p.ClipUpper, part.Test[0].Timestamp)
	if err != nil {
		return part, err
	}
	return split(clipped)
}

// steps converts a duration in hours to a number of cadence steps.
func steps(hours float64, cadence time.Duration) (int, error) {
	n := int(math.Round(hours * float64(time.Hour) / float64(cadence)))
	if n < 1 {
		return 0, fmt.Errorf("%gh is shorter than one %s step", hours, cadence)
	}
	return n, nil
}

// toMeters maps scaled target values back to physical units.
func toMeters(s window.Scaler, v []float64) []float64 {
	return window.FromColumn(s.InverseTransform(window.ToColumn(v)))
}

// spreadToMeters maps scaled standard deviations to meters. The scalers are
// affine, so a spread transforms by the scale factor alone.
func spreadToMeters(s window.Scaler, std []float64) []float64 {
	origin := toMeters(s, make([]float64, len(std)))
	out := toMeters(s, std)
	for i := range out {
		out[i] = math.Abs(out[i] - origin[i])
	}
	return out
}
