// Package pipeline runs the forecasting experiments: every configured
// dataset through every architecture, and the quick clock-error run.
package pipeline

import (
	"fmt"
	"time"

	"github.com/Hrishi-524/DeepOrbit/internal/diagnostics"
	"github.com/Hrishi-524/DeepOrbit/internal/predictor"
)

// Result is the evaluation of one (dataset, architecture) pair. Targets,
// predictions and uncertainty are in meters, flattened window by window.
type Result struct {
	RunID   string
	Dataset string
	Arch    predictor.Arch

	YTrue []float64
	YPred []float64
	RMSE  float64
	MAE   float64

	Residuals   diagnostics.Report
	History     predictor.History
	Uncertainty *Uncertainty

	SeqLength    int
	Horizon      int
	TrainWindows int
	TestWindows  int
	Duration     time.Duration

	// Notes collects informational decisions (horizon shrink, truncation,
	// dropped residuals).
	Notes []string
	// Checkpoint is the serialized trained model; nil if it could not be
	// encoded.
	Checkpoint []byte
}

// Errors returns YTrue - YPred.
func (r Result) Errors() []float64 {
	out := make([]float64, len(r.YTrue))
	for i := range out {
		out[i] = r.YTrue[i] - r.YPred[i]
	}
	return out
}

// Uncertainty is a Monte-Carlo dropout estimate aligned with YTrue.
type Uncertainty struct {
	Iterations int
	Mean       []float64
	Std        []float64
	MeanStd    float64
}

// DatasetError records a dataset, or one architecture of it, that failed.
type DatasetError struct {
	Dataset string
	Arch    string // empty when the whole dataset failed
	Err     error
}

func (e DatasetError) Error() string {
	if e.Arch != "" {
		return fmt.Sprintf("%s/%s: %v", e.Dataset, e.Arch, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Dataset, e.Err)
}

func (e DatasetError) Unwrap() error { return e.Err }

// Run is the outcome of a batch.
type Run struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Results  []Result
	Failures []DatasetError
}

// Datasets lists the datasets with at least one result, in run order.
func (r Run) Datasets() []string {
	var out []string
	seen := make(map[string]bool)
	for _, res := range r.Results {
		if !seen[res.Dataset] {
			seen[res.Dataset] = true
			out = append(out, res.Dataset)
		}
	}
	return out
}

// ForDataset returns the results of one dataset in architecture order.
func (r Run) ForDataset(name string) []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Dataset == name {
			out = append(out, res)
		}
	}
	return out
}
