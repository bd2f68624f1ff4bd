package nn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// Activation of a Dense layer.
type Activation int

const (
	Linear Activation = iota
	ReLU
)

// Dense is a fully-connected layer applied to every row of the sequence.
type Dense struct {
	In, Out    int
	Activation Activation

	W *Param // [Out][In], row-major
	B *Param

	inputs  [][]float64
	outputs [][]float64
}

// NewDense creates a Dense layer with He-normal weights and zero biases.
func NewDense(in, out int, act Activation, rng *rand.Rand) *Dense {
	d := &Dense{
		In:         in,
		Out:        out,
		Activation: act,
		W:          newParam("dense.w", in*out),
		B:          newParam("dense.b", out),
	}
	d.W.heNormal(in, rng)
	return d
}

func (d *Dense) row(j int) []float64 { return d.W.W[j*d.In : (j+1)*d.In] }

func (d *Dense) Forward(xs [][]float64, _ bool) [][]float64 {
	d.inputs = xs
	d.outputs = make([][]float64, len(xs))
	for t, x := range xs {
		y := make([]float64, d.Out)
		for j := range y {
			y[j] = d.B.W[j] + floats.Dot(d.row(j), x)
			if d.Activation == ReLU && y[j] < 0 {
				y[j] = 0
			}
		}
		d.outputs[t] = y
	}
	return d.outputs
}

func (d *Dense) Backward(dys [][]float64) [][]float64 {
	dxs := newMatrix(len(dys), d.In)
	dz := make([]float64, d.Out)
	for t, dy := range dys {
		copy(dz, dy)
		if d.Activation == ReLU {
			for j := range dz {
				if d.outputs[t][j] <= 0 {
					dz[j] = 0
				}
			}
		}
		x := d.inputs[t]
		for j, g := range dz {
			if g == 0 {
				continue
			}
			d.B.Grad[j] += g
			floats.AddScaled(d.W.Grad[j*d.In:(j+1)*d.In], g, x)
			floats.AddScaled(dxs[t], g, d.row(j))
		}
	}
	return dxs
}

func (d *Dense) Params() []*Param { return []*Param{d.W, d.B} }
