package window

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
	"github.com/Hrishi-524/DeepOrbit/internal/preprocess"
)

// Scaler is a fitted per-column affine transform. Implementations are
// immutable after fitting and safe for concurrent use.
type Scaler interface {
	Kind() string
	Transform(X [][]float64) [][]float64
	InverseTransform(X [][]float64) [][]float64
}

// Fitter learns a Scaler from training rows.
type Fitter func(X [][]float64) (Scaler, error)

// affine maps x to (x - center) / scale column by column.
type affine struct {
	kind   string
	center []float64
	scale  []float64
}

func (a *affine) Kind() string { return a.kind }

// Center returns the per-column offset.
func (a *affine) Center() []float64 { return append([]float64(nil), a.center...) }

// Scale returns the per-column divisor.
func (a *affine) Scale() []float64 { return append([]float64(nil), a.scale...) }

func (a *affine) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		o := make([]float64, len(row))
		for j, v := range row {
			o[j] = (v - a.center[j]) / a.scale[j]
		}
		out[i] = o
	}
	return out
}

func (a *affine) InverseTransform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		o := make([]float64, len(row))
		for j, v := range row {
			o[j] = v*a.scale[j] + a.center[j]
		}
		out[i] = o
	}
	return out
}

// RobustScaler centres on the median and scales by the interquartile range.
type RobustScaler struct{ affine }

// FitRobust fits a RobustScaler. Columns with zero IQR get scale 1.
func FitRobust(X [][]float64) (Scaler, error) {
	cols, err := columns(X)
	if err != nil {
		return nil, err
	}
	s := &RobustScaler{affine{kind: "robust", center: make([]float64, len(cols)), scale: make([]float64, len(cols))}}
	for j, col := range cols {
		sort.Float64s(col)
		s.center[j] = preprocess.Quantile(col, 0.5)
		s.scale[j] = nonZero(preprocess.Quantile(col, 0.75) - preprocess.Quantile(col, 0.25))
	}
	return s, nil
}

// MinMaxScaler maps the training range of each column onto [0, 1].
type MinMaxScaler struct{ affine }

// FitMinMax fits a MinMaxScaler. Constant columns get scale 1.
func FitMinMax(X [][]float64) (Scaler, error) {
	cols, err := columns(X)
	if err != nil {
		return nil, err
	}
	s := &MinMaxScaler{affine{kind: "minmax", center: make([]float64, len(cols)), scale: make([]float64, len(cols))}}
	for j, col := range cols {
		lo, hi := floats.Min(col), floats.Max(col)
		s.center[j] = lo
		s.scale[j] = nonZero(hi - lo)
	}
	return s, nil
}

// FitterFor returns the Fitter registered under name ("robust" or "minmax").
func FitterFor(name string) (Fitter, error) {
	switch name {
	case "", "robust":
		return FitRobust, nil
	case "minmax":
		return FitMinMax, nil
	}
	return nil, fmt.Errorf("unknown scaler %q", name)
}

func nonZero(v float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return 1
	}
	return v
}

// columns transposes X, checking it is rectangular and non-empty.
func columns(X [][]float64) ([][]float64, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return nil, &model.InsufficientDataError{What: "scaler fit", Need: 1, Got: 0}
	}
	w := len(X[0])
	cols := make([][]float64, w)
	for j := range cols {
		cols[j] = make([]float64, len(X))
	}
	for i, row := range X {
		if len(row) != w {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), w)
		}
		for j, v := range row {
			cols[j][i] = v
		}
	}
	return cols, nil
}

// ScaledSplit holds scaled train/test matrices and the scalers fitted on
// the train rows.
type ScaledSplit struct {
	XTrain, XTest [][]float64
	YTrain, YTest []float64

	FeatureScaler Scaler
	TargetScaler  Scaler
}

// InverseTargets maps scaled target values back to physical units.
func (s ScaledSplit) InverseTargets(y []float64) []float64 {
	return FromColumn(s.TargetScaler.InverseTransform(ToColumn(y)))
}

// Scale extracts feature and target columns, fits one scaler for features
// and one for the target on the train rows, and transforms both partitions.
func Scale(p Partition, featureCols []model.Column, targetCol model.Column, fit Fitter) (ScaledSplit, error) {
	xTrain, err := Matrix(p.Train, featureCols)
	if err != nil {
		return ScaledSplit{}, fmt.Errorf("train features: %w", err)
	}
	xTest, err := Matrix(p.Test, featureCols)
	if err != nil {
		return ScaledSplit{}, fmt.Errorf("test features: %w", err)
	}
	yTrain, err := Matrix(p.Train, []model.Column{targetCol})
	if err != nil {
		return ScaledSplit{}, fmt.Errorf("train target: %w", err)
	}
	yTest, err := Matrix(p.Test, []model.Column{targetCol})
	if err != nil {
		return ScaledSplit{}, fmt.Errorf("test target: %w", err)
	}

	fs, err := fit(xTrain)
	if err != nil {
		return ScaledSplit{}, fmt.Errorf("fitting feature scaler: %w", err)
	}
	ts, err := fit(yTrain)
	if err != nil {
		return ScaledSplit{}, fmt.Errorf("fitting target scaler: %w", err)
	}

	return ScaledSplit{
		XTrain:        fs.Transform(xTrain),
		XTest:         fs.Transform(xTest),
		YTrain:        FromColumn(ts.Transform(yTrain)),
		YTest:         FromColumn(ts.Transform(yTest)),
		FeatureScaler: fs,
		TargetScaler:  ts,
	}, nil
}

// Matrix extracts the given columns of rows. Unknown columns and non-finite
// values are errors.
func Matrix(rows []preprocess.FeatureRow, cols []model.Column) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		row := make([]float64, len(cols))
		for j, c := range cols {
			v, ok := r.Value(c)
			if !ok {
				return nil, fmt.Errorf("unknown column %q", c)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("column %q at %s is not finite", c, r.Timestamp.Format("2006-01-02 15:04"))
			}
			row[j] = v
		}
		out[i] = row
	}
	return out, nil
}

// ToColumn wraps a vector as a single-column matrix.
func ToColumn(y []float64) [][]float64 {
	out := make([][]float64, len(y))
	for i, v := range y {
		out[i] = []float64{v}
	}
	return out
}

// FromColumn flattens a single-column matrix.
func FromColumn(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = row[0]
	}
	return out
}
