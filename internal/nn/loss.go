package nn

import (
	"fmt"
	"math"
)

// Loss scores a prediction row against a target row.
type Loss interface {
	Name() string
	// Value returns the mean loss over elements.
	Value(pred, target []float64) float64
	// Grad returns dLoss/dpred for the mean loss.
	Grad(pred, target []float64) []float64
}

// MSE is the mean squared error.
type MSE struct{}

func (MSE) Name() string { return "mse" }

func (MSE) Value(pred, target []float64) float64 {
	var s float64
	for i := range pred {
		d := pred[i] - target[i]
		s += d * d
	}
	return s / float64(len(pred))
}

func (MSE) Grad(pred, target []float64) []float64 {
	g := make([]float64, len(pred))
	n := float64(len(pred))
	for i := range pred {
		g[i] = 2 * (pred[i] - target[i]) / n
	}
	return g
}

// Huber is quadratic within Delta of the target and linear outside.
type Huber struct {
	Delta float64
}

func (Huber) Name() string { return "huber" }

func (h Huber) Value(pred, target []float64) float64 {
	var s float64
	for i := range pred {
		d := math.Abs(pred[i] - target[i])
		if d <= h.Delta {
			s += 0.5 * d * d
		} else {
			s += h.Delta * (d - 0.5*h.Delta)
		}
	}
	return s / float64(len(pred))
}

func (h Huber) Grad(pred, target []float64) []float64 {
	g := make([]float64, len(pred))
	n := float64(len(pred))
	for i := range pred {
		d := pred[i] - target[i]
		switch {
		case d > h.Delta:
			g[i] = h.Delta / n
		case d < -h.Delta:
			g[i] = -h.Delta / n
		default:
			g[i] = d / n
		}
	}
	return g
}

// LossByName returns "mse" or "huber" (delta 1).
func LossByName(name string) (Loss, error) {
	switch name {
	case "", "mse":
		return MSE{}, nil
	case "huber":
		return Huber{Delta: 1}, nil
	}
	return nil, fmt.Errorf("unknown loss %q", name)
}
