// Package nn implements the small set of neural network layers the
// forecasting models are assembled from. Layers process one sample at a
// time: a sequence of T feature rows in, a sequence of rows out. Gradients
// accumulate in each Param until ZeroGrad, so a mini-batch is a loop of
// Forward/Backward pairs followed by one optimizer step.
package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// Param is a flat trainable tensor with its gradient and Adam moments.
type Param struct {
	Name string
	W    []float64
	Grad []float64

	m, v []float64
}

func newParam(name string, n int) *Param {
	return &Param{
		Name: name,
		W:    make([]float64, n),
		Grad: make([]float64, n),
		m:    make([]float64, n),
		v:    make([]float64, n),
	}
}

// heNormal fills p with N(0, 2/fanIn) samples.
func (p *Param) heNormal(fanIn int, rng *rand.Rand) {
	stddev := math.Sqrt(2.0 / float64(fanIn))
	for i := range p.W {
		p.W[i] = rng.NormFloat64() * stddev
	}
}

// glorotUniform fills p with U(-l, l), l = sqrt(6/(fanIn+fanOut)).
func (p *Param) glorotUniform(fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range p.W {
		p.W[i] = (rng.Float64()*2 - 1) * limit
	}
}

// ZeroGrad resets the accumulated gradient.
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// ZeroGrads resets the gradients of all params.
func ZeroGrads(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// Snapshot copies the current weights of params.
func Snapshot(params []*Param) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = append([]float64(nil), p.W...)
	}
	return out
}

// Restore writes weights captured by Snapshot back into params.
func Restore(params []*Param, weights [][]float64) {
	for i, p := range params {
		copy(p.W, weights[i])
	}
}

// ClipGradNorm rescales all gradients so their global L2 norm does not
// exceed maxNorm. It returns the norm before clipping.
func ClipGradNorm(params []*Param, maxNorm float64) float64 {
	var sq float64
	for _, p := range params {
		sq += floats.Dot(p.Grad, p.Grad)
	}
	norm := math.Sqrt(sq)
	if maxNorm > 0 && norm > maxNorm {
		scale := maxNorm / norm
		for _, p := range params {
			floats.Scale(scale, p.Grad)
		}
	}
	return norm
}

// Adam is the Adam optimizer with bias correction.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	step int
}

// NewAdam returns Adam with the usual defaults.
func NewAdam(lr float64) *Adam {
	return &Adam{LearningRate: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7}
}

// Step applies one update using the accumulated gradients.
func (a *Adam) Step(params []*Param) {
	a.step++
	c1 := 1 - math.Pow(a.Beta1, float64(a.step))
	c2 := 1 - math.Pow(a.Beta2, float64(a.step))
	for _, p := range params {
		for i, g := range p.Grad {
			p.m[i] = a.Beta1*p.m[i] + (1-a.Beta1)*g
			p.v[i] = a.Beta2*p.v[i] + (1-a.Beta2)*g*g
			mHat := p.m[i] / c1
			vHat := p.v[i] / c2
			p.W[i] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int { return a.step }

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}
