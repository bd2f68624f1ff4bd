package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// LSTM is a single long short-term memory layer trained with
// backpropagation through time. Gate blocks are laid out input, forget,
// cell, output.
type LSTM struct {
	In, Hidden      int
	ReturnSequences bool

	Wx *Param // [4H][In]
	Wh *Param // [4H][H]
	B  *Param // [4H]

	// per-step caches
	xs    [][]float64
	hs    [][]float64 // hs[t+1] is the hidden state after step t
	cs    [][]float64
	gates [][]float64 // activated gates per step, [4H]
}

// NewLSTM creates an LSTM with Glorot-uniform weights and forget-gate bias 1.
func NewLSTM(in, hidden int, returnSequences bool, rng *rand.Rand) *LSTM {
	l := &LSTM{
		In:              in,
		Hidden:          hidden,
		ReturnSequences: returnSequences,
		Wx:              newParam("lstm.wx", 4*hidden*in),
		Wh:              newParam("lstm.wh", 4*hidden*hidden),
		B:               newParam("lstm.b", 4*hidden),
	}
	l.Wx.glorotUniform(in, 4*hidden, rng)
	l.Wh.glorotUniform(hidden, 4*hidden, rng)
	for j := hidden; j < 2*hidden; j++ {
		l.B.W[j] = 1
	}
	return l
}

func (l *LSTM) Forward(xs [][]float64, _ bool) [][]float64 {
	T, H := len(xs), l.Hidden
	l.xs = xs
	l.hs = newMatrix(T+1, H)
	l.cs = newMatrix(T+1, H)
	l.gates = make([][]float64, T)

	for t, x := range xs {
		z := make([]float64, 4*H)
		hPrev := l.hs[t]
		for k := range z {
			z[k] = l.B.W[k] +
				floats.Dot(l.Wx.W[k*l.In:(k+1)*l.In], x) +
				floats.Dot(l.Wh.W[k*H:(k+1)*H], hPrev)
		}
		for j := range H {
			z[j] = sigmoid(z[j])           // input
			z[H+j] = sigmoid(z[H+j])       // forget
			z[2*H+j] = math.Tanh(z[2*H+j]) // cell candidate
			z[3*H+j] = sigmoid(z[3*H+j])   // output
			c := z[H+j]*l.cs[t][j] + z[j]*z[2*H+j]
			l.cs[t+1][j] = c
			l.hs[t+1][j] = z[3*H+j] * math.Tanh(c)
		}
		l.gates[t] = z
	}

	if l.ReturnSequences {
		return l.hs[1:]
	}
	return [][]float64{l.hs[T]}
}

func (l *LSTM) Backward(dys [][]float64) [][]float64 {
	T, H := len(l.xs), l.Hidden
	dxs := newMatrix(T, l.In)
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	dz := make([]float64, 4*H)

	for t := T - 1; t >= 0; t-- {
		dh := make([]float64, H)
		copy(dh, dhNext)
		switch {
		case l.ReturnSequences:
			floats.Add(dh, dys[t])
		case t == T-1:
			floats.Add(dh, dys[0])
		}

		g := l.gates[t]
		for j := range H {
			i, f, cand, o := g[j], g[H+j], g[2*H+j], g[3*H+j]
			tc := math.Tanh(l.cs[t+1][j])
			dc := dh[j]*o*(1-tc*tc) + dcNext[j]

			dz[j] = dc * cand * i * (1 - i)
			dz[H+j] = dc * l.cs[t][j] * f * (1 - f)
			dz[2*H+j] = dc * i * (1 - cand*cand)
			dz[3*H+j] = dh[j] * tc * o * (1 - o)
			dcNext[j] = dc * f
		}

		for k := range dhNext {
			dhNext[k] = 0
		}
		x, hPrev := l.xs[t], l.hs[t]
		for k, d := range dz {
			if d == 0 {
				continue
			}
			l.B.Grad[k] += d
			floats.AddScaled(l.Wx.Grad[k*l.In:(k+1)*l.In], d, x)
			floats.AddScaled(l.Wh.Grad[k*H:(k+1)*H], d, hPrev)
			floats.AddScaled(dxs[t], d, l.Wx.W[k*l.In:(k+1)*l.In])
			floats.AddScaled(dhNext, d, l.Wh.W[k*H:(k+1)*H])
		}
	}
	return dxs
}

func (l *LSTM) Params() []*Param { return []*Param{l.Wx, l.Wh, l.B} }

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
