package window

import "fmt"

// WindowSet holds stride-1 (input, target) pairs. Inputs[i] has SeqLength
// rows of features; Targets[i] has NFuture target values immediately
// following the input window.
type WindowSet struct {
	Inputs  [][][]float64
	Targets [][]float64

	SeqLength int
	NFuture   int
	// Shrunk is true when NFuture was reduced because the series is
	// shorter than SeqLength + requested horizon.
	Shrunk bool
}

// Len returns the number of windows.
func (w WindowSet) Len() int { return len(w.Inputs) }

// Features returns the width of one input row, or 0 for an empty set.
func (w WindowSet) Features() int {
	if len(w.Inputs) == 0 || len(w.Inputs[0]) == 0 {
		return 0
	}
	return len(w.Inputs[0][0])
}

// Window slices X (N rows) and y (N values) into windows of seqLength inputs
// and nFuture targets. When N < seqLength + nFuture the horizon shrinks to
// max(1, N - seqLength - 1); if no window fits the set is empty. Windows
// share backing arrays with X and y.
func Window(X [][]float64, y []float64, seqLength, nFuture int) (WindowSet, error) {
	if len(X) != len(y) {
		return WindowSet{}, fmt.Errorf("features have %d rows, target has %d", len(X), len(y))
	}
	if seqLength < 1 || nFuture < 1 {
		return WindowSet{}, fmt.Errorf("sequence length and horizon must be positive, got %d and %d", seqLength, nFuture)
	}

	n := len(X)
	ws := WindowSet{SeqLength: seqLength, NFuture: nFuture}
	if n < seqLength+nFuture {
		ws.NFuture = max(1, n-seqLength-1)
		ws.Shrunk = true
	}

	count := n - seqLength - ws.NFuture + 1
	if count <= 0 {
		return ws, nil
	}
	ws.Inputs = make([][][]float64, count)
	ws.Targets = make([][]float64, count)
	for i := range count {
		ws.Inputs[i] = X[i : i+seqLength]
		ws.Targets[i] = y[i+seqLength : i+seqLength+ws.NFuture]
	}
	return ws, nil
}
