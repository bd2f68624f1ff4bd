package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// MultiHeadAttention is scaled dot-product self-attention with Heads heads
// of width KeyDim, projected back to the model width.
type MultiHeadAttention struct {
	Dim, Heads, KeyDim int

	Query, Key, Value, Output *Dense

	q, k, v [][]float64
	attn    [][][]float64 // [head][t][s]
}

// NewMultiHeadAttention creates self-attention over rows of width dim.
func NewMultiHeadAttention(dim, heads, keyDim int, rng *rand.Rand) *MultiHeadAttention {
	inner := heads * keyDim
	m := &MultiHeadAttention{
		Dim:    dim,
		Heads:  heads,
		KeyDim: keyDim,
		Query:  NewDense(dim, inner, Linear, rng),
		Key:    NewDense(dim, inner, Linear, rng),
		Value:  NewDense(dim, inner, Linear, rng),
		Output: NewDense(inner, dim, Linear, rng),
	}
	for _, d := range []*Dense{m.Query, m.Key, m.Value, m.Output} {
		d.W.glorotUniform(d.In, d.Out, rng)
	}
	return m
}

func (m *MultiHeadAttention) head(row []float64, h int) []float64 {
	return row[h*m.KeyDim : (h+1)*m.KeyDim]
}

func (m *MultiHeadAttention) Forward(xs [][]float64, training bool) [][]float64 {
	T := len(xs)
	scale := 1 / math.Sqrt(float64(m.KeyDim))
	m.q = m.Query.Forward(xs, training)
	m.k = m.Key.Forward(xs, training)
	m.v = m.Value.Forward(xs, training)

	concat := newMatrix(T, m.Heads*m.KeyDim)
	m.attn = make([][][]float64, m.Heads)
	for h := range m.Heads {
		a := newMatrix(T, T)
		for t := range T {
			qt := m.head(m.q[t], h)
			for s := range T {
				a[t][s] = floats.Dot(qt, m.head(m.k[s], h)) * scale
			}
			softmax(a[t])
			out := m.head(concat[t], h)
			for s := range T {
				floats.AddScaled(out, a[t][s], m.head(m.v[s], h))
			}
		}
		m.attn[h] = a
	}
	return m.Output.Forward(concat, training)
}

func (m *MultiHeadAttention) Backward(dys [][]float64) [][]float64 {
	T := len(dys)
	scale := 1 / math.Sqrt(float64(m.KeyDim))
	dConcat := m.Output.Backward(dys)

	dq := newMatrix(T, m.Heads*m.KeyDim)
	dk := newMatrix(T, m.Heads*m.KeyDim)
	dv := newMatrix(T, m.Heads*m.KeyDim)
	dA := make([]float64, T)
	for h := range m.Heads {
		a := m.attn[h]
		for t := range T {
			dOut := m.head(dConcat[t], h)
			var weighted float64
			for s := range T {
				dA[s] = floats.Dot(dOut, m.head(m.v[s], h))
				weighted += a[t][s] * dA[s]
				floats.AddScaled(m.head(dv[s], h), a[t][s], dOut)
			}
			qt := m.head(m.q[t], h)
			for s := range T {
				dScore := a[t][s] * (dA[s] - weighted) * scale
				if dScore == 0 {
					continue
				}
				floats.AddScaled(m.head(dq[t], h), dScore, m.head(m.k[s], h))
				floats.AddScaled(m.head(dk[s], h), dScore, qt)
			}
		}
	}

	dx := m.Query.Backward(dq)
	dxK := m.Key.Backward(dk)
	dxV := m.Value.Backward(dv)
	for t := range dx {
		floats.Add(dx[t], dxK[t])
		floats.Add(dx[t], dxV[t])
	}
	return dx
}

func (m *MultiHeadAttention) Params() []*Param {
	var ps []*Param
	for _, d := range []*Dense{m.Query, m.Key, m.Value, m.Output} {
		ps = append(ps, d.Params()...)
	}
	return ps
}

// softmax normalizes v in place.
func softmax(v []float64) {
	hi := floats.Max(v)
	var sum float64
	for i, x := range v {
		v[i] = math.Exp(x - hi)
		sum += v[i]
	}
	floats.Scale(1/sum, v)
}
