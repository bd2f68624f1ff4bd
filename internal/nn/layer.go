package nn

// Layer maps a sequence of rows to a sequence of rows. Forward caches what
// Backward needs, so each Backward must follow the Forward of the same
// sample. Backward accumulates parameter gradients and returns the gradient
// with respect to the layer input.
type Layer interface {
	Forward(xs [][]float64, training bool) [][]float64
	Backward(dys [][]float64) [][]float64
	Params() []*Param
}

// Sequential chains layers.
type Sequential struct {
	Layers []Layer
}

// NewSequential builds a Sequential from layers.
func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{Layers: layers}
}

func (s *Sequential) Forward(xs [][]float64, training bool) [][]float64 {
	for _, l := range s.Layers {
		xs = l.Forward(xs, training)
	}
	return xs
}

func (s *Sequential) Backward(dys [][]float64) [][]float64 {
	for i := len(s.Layers) - 1; i >= 0; i-- {
		dys = s.Layers[i].Backward(dys)
	}
	return dys
}

func (s *Sequential) Params() []*Param {
	var ps []*Param
	for _, l := range s.Layers {
		ps = append(ps, l.Params()...)
	}
	return ps
}

// Residual computes x + inner(x). inner must preserve the input shape.
type Residual struct {
	Inner Layer
}

func (r *Residual) Forward(xs [][]float64, training bool) [][]float64 {
	ys := r.Inner.Forward(xs, training)
	out := newMatrix(len(xs), len(xs[0]))
	for t := range xs {
		for j := range xs[t] {
			out[t][j] = xs[t][j] + ys[t][j]
		}
	}
	return out
}

func (r *Residual) Backward(dys [][]float64) [][]float64 {
	dInner := r.Inner.Backward(dys)
	out := newMatrix(len(dys), len(dys[0]))
	for t := range dys {
		for j := range dys[t] {
			out[t][j] = dys[t][j] + dInner[t][j]
		}
	}
	return out
}

func (r *Residual) Params() []*Param { return r.Inner.Params() }

// GlobalAveragePool averages over time, producing a single row.
type GlobalAveragePool struct {
	steps int
}

func (g *GlobalAveragePool) Forward(xs [][]float64, _ bool) [][]float64 {
	g.steps = len(xs)
	out := make([]float64, len(xs[0]))
	for _, row := range xs {
		for j, v := range row {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(len(xs))
	}
	return [][]float64{out}
}

func (g *GlobalAveragePool) Backward(dys [][]float64) [][]float64 {
	dx := newMatrix(g.steps, len(dys[0]))
	for t := range dx {
		for j, d := range dys[0] {
			dx[t][j] = d / float64(g.steps)
		}
	}
	return dx
}

func (g *GlobalAveragePool) Params() []*Param { return nil }

var (
	_ Layer = (*Dense)(nil)
	_ Layer = (*LSTM)(nil)
	_ Layer = (*Dropout)(nil)
	_ Layer = (*LayerNorm)(nil)
	_ Layer = (*PositionalEncoding)(nil)
	_ Layer = (*MultiHeadAttention)(nil)
	_ Layer = (*Residual)(nil)
	_ Layer = (*GlobalAveragePool)(nil)
	_ Layer = (*Sequential)(nil)
)
