package nn

import "math/rand/v2"

// Dropout zeroes a fraction Rate of activations while training and scales
// the survivors by 1/(1-Rate). At inference it is the identity.
type Dropout struct {
	Rate float64

	rng  *rand.Rand
	mask [][]float64
}

// NewDropout creates a Dropout layer drawing masks from rng.
func NewDropout(rate float64, rng *rand.Rand) *Dropout {
	return &Dropout{Rate: rate, rng: rng}
}

func (d *Dropout) Forward(xs [][]float64, training bool) [][]float64 {
	if !training || d.Rate <= 0 {
		d.mask = nil
		return xs
	}
	keep := 1 / (1 - d.Rate)
	d.mask = newMatrix(len(xs), len(xs[0]))
	out := newMatrix(len(xs), len(xs[0]))
	for t, row := range xs {
		for j, v := range row {
			if d.rng.Float64() >= d.Rate {
				d.mask[t][j] = keep
				out[t][j] = v * keep
			}
		}
	}
	return out
}

func (d *Dropout) Backward(dys [][]float64) [][]float64 {
	if d.mask == nil {
		return dys
	}
	out := newMatrix(len(dys), len(dys[0]))
	for t, row := range dys {
		for j, g := range row {
			out[t][j] = g * d.mask[t][j]
		}
	}
	return out
}

func (d *Dropout) Params() []*Param { return nil }
