package nn

import "math"

// LayerNorm normalizes each row to zero mean and unit variance, then
// applies a learned gain and bias.
type LayerNorm struct {
	Dim     int
	Epsilon float64

	Gamma *Param
	Beta  *Param

	xhat   [][]float64
	invStd []float64
}

// NewLayerNorm creates a LayerNorm over rows of width dim.
func NewLayerNorm(dim int) *LayerNorm {
	ln := &LayerNorm{
		Dim:     dim,
		Epsilon: 1e-3,
		Gamma:   newParam("layernorm.gamma", dim),
		Beta:    newParam("layernorm.beta", dim),
	}
	for i := range ln.Gamma.W {
		ln.Gamma.W[i] = 1
	}
	return ln
}

func (ln *LayerNorm) Forward(xs [][]float64, _ bool) [][]float64 {
	n := float64(ln.Dim)
	ln.xhat = newMatrix(len(xs), ln.Dim)
	ln.invStd = make([]float64, len(xs))
	out := newMatrix(len(xs), ln.Dim)
	for t, x := range xs {
		var mean, variance float64
		for _, v := range x {
			mean += v
		}
		mean /= n
		for _, v := range x {
			variance += (v - mean) * (v - mean)
		}
		variance /= n
		inv := 1 / math.Sqrt(variance+ln.Epsilon)
		ln.invStd[t] = inv
		for j, v := range x {
			xh := (v - mean) * inv
			ln.xhat[t][j] = xh
			out[t][j] = ln.Gamma.W[j]*xh + ln.Beta.W[j]
		}
	}
	return out
}

func (ln *LayerNorm) Backward(dys [][]float64) [][]float64 {
	n := float64(ln.Dim)
	dxs := newMatrix(len(dys), ln.Dim)
	dxhat := make([]float64, ln.Dim)
	for t, dy := range dys {
		var sum, dot float64
		for j, g := range dy {
			ln.Gamma.Grad[j] += g * ln.xhat[t][j]
			ln.Beta.Grad[j] += g
			dxhat[j] = g * ln.Gamma.W[j]
			sum += dxhat[j]
			dot += dxhat[j] * ln.xhat[t][j]
		}
		for j := range dxs[t] {
			dxs[t][j] = ln.invStd[t] / n * (n*dxhat[j] - sum - ln.xhat[t][j]*dot)
		}
	}
	return dxs
}

func (ln *LayerNorm) Params() []*Param { return []*Param{ln.Gamma, ln.Beta} }

// PositionalEncoding adds fixed sinusoidal position signals: even columns
// sin(t / 10000^(2i/d)), odd columns cos of the same angle.
type PositionalEncoding struct {
	Dim int

	table [][]float64
}

// NewPositionalEncoding precomputes encodings for up to maxLen steps.
func NewPositionalEncoding(maxLen, dim int) *PositionalEncoding {
	pe := &PositionalEncoding{Dim: dim, table: newMatrix(maxLen, dim)}
	for t := range maxLen {
		for j := range dim {
			angle := float64(t) / math.Pow(10000, float64(2*(j/2))/float64(dim))
			if j%2 == 0 {
				pe.table[t][j] = math.Sin(angle)
			} else {
				pe.table[t][j] = math.Cos(angle)
			}
		}
	}
	return pe
}

// At returns the encoding of step t.
func (pe *PositionalEncoding) At(t int) []float64 { return pe.table[t] }

func (pe *PositionalEncoding) Forward(xs [][]float64, _ bool) [][]float64 {
	out := newMatrix(len(xs), pe.Dim)
	for t, x := range xs {
		for j, v := range x {
			out[t][j] = v + pe.table[t][j]
		}
	}
	return out
}

func (pe *PositionalEncoding) Backward(dys [][]float64) [][]float64 { return dys }

func (pe *PositionalEncoding) Params() []*Param { return nil }
