package predictor

import "fmt"

// SqueezeTargets drops a trailing singleton dimension: (batch, steps, 1)
// becomes (batch, steps).
func SqueezeTargets(y [][][]float64) ([][]float64, error) {
	out := make([][]float64, len(y))
	for i, steps := range y {
		row := make([]float64, len(steps))
		for j, v := range steps {
			if len(v) != 1 {
				return nil, fmt.Errorf("target [%d][%d] has trailing dimension %d, want 1", i, j, len(v))
			}
			row[j] = v[0]
		}
		out[i] = row
	}
	return out, nil
}
