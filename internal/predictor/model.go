// Package predictor builds, trains and persists the sequence forecasting
// models: a stacked LSTM, a single-block transformer encoder and a
// dropout-heavy LSTM used for Monte-Carlo uncertainty.
package predictor

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/Hrishi-524/DeepOrbit/internal/nn"
)

// ForecastModel maps input windows (batch, steps, features) to forecasts
// (batch, outputSteps).
type ForecastModel interface {
	Arch() Arch
	Train(ctx context.Context, X [][][]float64, Y [][]float64, cfg TrainConfig) (History, error)
	Predict(X [][][]float64) ([][]float64, error)
	PredictStochastic(X [][][]float64) ([][]float64, error)
	Save() ([]byte, error)
}

// ModelConfig holds architecture options. Zero values select the defaults
// of the architecture.
type ModelConfig struct {
	Dropout   float64 `json:"dropout" yaml:"dropout"`
	HeadUnits int     `json:"head_units" yaml:"head_units"`
	Loss      string  `json:"loss" yaml:"loss"`
}

func (c ModelConfig) withDefaults(arch Arch) ModelConfig {
	if c.Dropout == 0 {
		switch arch {
		case ArchRecurrent:
			c.Dropout = 0.2
		case ArchProbabilistic:
			c.Dropout = 0.3
		}
	}
	if c.HeadUnits == 0 {
		c.HeadUnits = 32
		if arch == ArchAttention {
			c.HeadUnits = 64
		}
	}
	if c.Loss == "" {
		c.Loss = "mse"
	}
	return c
}

// Layer widths.
const (
	lstmUnits1 = 64
	lstmUnits2 = 32

	modelDim  = 64
	numHeads  = 4
	keyDim    = 16
	ffnHidden = 128
)

// Model is the ForecastModel implementation shared by all architectures.
type Model struct {
	arch        Arch
	seqLength   int
	features    int
	outputSteps int
	cfg         ModelConfig

	net  *nn.Sequential
	loss nn.Loss
	rng  *rand.Rand
}

// Build creates an untrained model for windows of seqLength x features
// predicting outputSteps values.
func Build(arch Arch, seqLength, features, outputSteps int, cfg ModelConfig, rng *rand.Rand) (*Model, error) {
	if seqLength < 1 || features < 1 || outputSteps < 1 {
		return nil, fmt.Errorf("invalid model shape: seq=%d features=%d outputs=%d", seqLength, features, outputSteps)
	}
	cfg = cfg.withDefaults(arch)
	loss, err := nn.LossByName(cfg.Loss)
	if err != nil {
		return nil, err
	}

	var net *nn.Sequential
	switch arch {
	case ArchRecurrent, ArchProbabilistic:
		net = nn.NewSequential(
			nn.NewLSTM(features, lstmUnits1, true, rng),
			nn.NewDropout(cfg.Dropout, rng),
			nn.NewLSTM(lstmUnits1, lstmUnits2, false, rng),
			nn.NewDropout(cfg.Dropout, rng),
			nn.NewDense(lstmUnits2, cfg.HeadUnits, nn.ReLU, rng),
			nn.NewDense(cfg.HeadUnits, outputSteps, nn.Linear, rng),
		)
	case ArchAttention:
		net = nn.NewSequential(
			nn.NewDense(features, modelDim, nn.Linear, rng),
			nn.NewPositionalEncoding(seqLength, modelDim),
			&nn.Residual{Inner: nn.NewMultiHeadAttention(modelDim, numHeads, keyDim, rng)},
			nn.NewLayerNorm(modelDim),
			&nn.Residual{Inner: nn.NewSequential(
				nn.NewDense(modelDim, ffnHidden, nn.ReLU, rng),
				nn.NewDense(ffnHidden, modelDim, nn.Linear, rng),
			)},
			nn.NewLayerNorm(modelDim),
			&nn.GlobalAveragePool{},
			nn.NewDense(modelDim, cfg.HeadUnits, nn.ReLU, rng),
			nn.NewDense(cfg.HeadUnits, outputSteps, nn.Linear, rng),
		)
	default:
		return nil, fmt.Errorf("unknown architecture %v", arch)
	}

	return &Model{
		arch:        arch,
		seqLength:   seqLength,
		features:    features,
		outputSteps: outputSteps,
		cfg:         cfg,
		net:         net,
		loss:        loss,
		rng:         rng,
	}, nil
}

func (m *Model) Arch() Arch { return m.arch }

// OutputSteps returns the forecast horizon.
func (m *Model) OutputSteps() int { return m.outputSteps }

// Config returns the resolved architecture options.
func (m *Model) Config() ModelConfig { return m.cfg }

// Params returns the trainable parameters.
func (m *Model) Params() []*nn.Param { return m.net.Params() }

// Predict runs inference with dropout disabled. Windows must match the
// shape the model was built for.
func (m *Model) Predict(X [][][]float64) ([][]float64, error) {
	if err := m.checkInput(X); err != nil {
		return nil, err
	}
	return m.predict(X, false), nil
}

// PredictStochastic runs inference with dropout active, so repeated calls
// sample different sub-networks.
func (m *Model) PredictStochastic(X [][][]float64) ([][]float64, error) {
	if err := m.checkInput(X); err != nil {
		return nil, err
	}
	return m.predict(X, true), nil
}

func (m *Model) predict(X [][][]float64, training bool) [][]float64 {
	out := make([][]float64, len(X))
	for i, xs := range X {
		y := m.net.Forward(xs, training)
		out[i] = append([]float64(nil), y[0]...)
	}
	return out
}

func (m *Model) checkInput(X [][][]float64) error {
	for i, xs := range X {
		if len(xs) != m.seqLength {
			return fmt.Errorf("window %d has %d steps, model expects %d", i, len(xs), m.seqLength)
		}
		for _, row := range xs {
			if len(row) != m.features {
				return fmt.Errorf("window %d has %d features, model expects %d", i, len(row), m.features)
			}
		}
	}
	return nil
}
