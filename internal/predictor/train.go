package predictor

import (
	"context"
	"fmt"
	"math"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
	"github.com/Hrishi-524/DeepOrbit/internal/nn"
)

// TrainConfig holds training hyperparameters.
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64

	// ValSplit holds out the trailing fraction of the windows, unshuffled,
	// for validation. Ignored when ValX is set.
	ValSplit float64
	ValX     [][][]float64
	ValY     [][]float64

	// Patience is the number of epochs without validation improvement
	// before stopping; 0 disables early stopping.
	Patience int
	// LRPatience epochs without an improvement of at least MinDelta halve
	// (LRFactor) the learning rate; 0 disables the schedule.
	LRPatience int
	LRFactor   float64
	MinDelta   float64
	MinLR      float64

	// ClipNorm bounds the global gradient norm; 0 disables clipping.
	ClipNorm float64

	OnEpoch func(EpochStats)
}

// DefaultTrainConfig returns the per-model training defaults.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:       30,
		BatchSize:    16,
		LearningRate: 1e-3,
		ValSplit:     0.15,
		Patience:     10,
		LRPatience:   5,
		LRFactor:     0.5,
		MinDelta:     1e-4,
		ClipNorm:     5,
	}
}

// EpochStats is reported after every epoch.
type EpochStats struct {
	Epoch        int // 1-based
	TrainLoss    float64
	ValLoss      float64 // NaN without validation data
	LearningRate float64
}

// History records a training run.
type History struct {
	TrainLoss    []float64 `json:"train_loss"`
	ValLoss      []float64 `json:"val_loss,omitempty"`
	LearningRate []float64 `json:"learning_rate"`
	BestEpoch    int       `json:"best_epoch"`
	BestLoss     float64   `json:"best_loss"`
	StoppedEarly bool      `json:"stopped_early"`
}

// Epochs returns the number of completed epochs.
func (h History) Epochs() int { return len(h.TrainLoss) }

// Train fits the model with mini-batch Adam. The best weights by validation
// loss (training loss without validation data) are restored before return.
// The context is checked between epochs.
func (m *Model) Train(ctx context.Context, X [][][]float64, Y [][]float64, cfg TrainConfig) (History, error) {
	if len(X) == 0 {
		return History{}, &model.InsufficientDataError{What: "training windows", Need: 1, Got: 0}
	}
	if len(X) != len(Y) {
		return History{}, fmt.Errorf("%d input windows but %d targets", len(X), len(Y))
	}
	if err := m.checkInput(X); err != nil {
		return History{}, err
	}
	for i, y := range Y {
		if len(y) != m.outputSteps {
			return History{}, fmt.Errorf("target %d has %d steps, model predicts %d", i, len(y), m.outputSteps)
		}
	}
	if cfg.Epochs < 1 || cfg.BatchSize < 1 {
		return History{}, fmt.Errorf("epochs and batch size must be positive")
	}

	trainX, trainY, valX, valY := X, Y, cfg.ValX, cfg.ValY
	if valX == nil && cfg.ValSplit > 0 {
		at := int(float64(len(X)) * (1 - cfg.ValSplit))
		if at > 0 && at < len(X) {
			trainX, trainY, valX, valY = X[:at], Y[:at], X[at:], Y[at:]
		}
	}
	if err := m.checkInput(valX); err != nil {
		return History{}, fmt.Errorf("validation: %w", err)
	}
	if len(valX) != len(valY) {
		return History{}, fmt.Errorf("%d validation windows but %d targets", len(valX), len(valY))
	}

	params := m.net.Params()
	opt := nn.NewAdam(cfg.LearningRate)
	stopper := newEarlyStopper(cfg.Patience, params)
	plateau := &lrPlateau{patience: cfg.LRPatience, factor: cfg.LRFactor, minDelta: cfg.MinDelta, minLR: cfg.MinLR, best: math.Inf(1)}

	idx := make([]int, len(trainX))
	for i := range idx {
		idx[i] = i
	}

	var h History
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			stopper.restore()
			h.BestEpoch, h.BestLoss = stopper.bestEpoch, stopper.best
			return h, fmt.Errorf("training interrupted after %d epochs: %w", epoch-1, err)
		}

		m.rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		var trainLoss float64
		for start := 0; start < len(idx); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(idx))
			batch := float64(end - start)

			nn.ZeroGrads(params)
			for _, i := range idx[start:end] {
				pred := m.net.Forward(trainX[i], true)[0]
				trainLoss += m.loss.Value(pred, trainY[i])
				grad := m.loss.Grad(pred, trainY[i])
				for j := range grad {
					grad[j] /= batch
				}
				m.net.Backward([][]float64{grad})
			}
			if cfg.ClipNorm > 0 {
				nn.ClipGradNorm(params, cfg.ClipNorm)
			}
			opt.Step(params)
		}
		trainLoss /= float64(len(idx))

		valLoss := math.NaN()
		monitor := trainLoss
		if len(valX) > 0 {
			valLoss = m.Evaluate(valX, valY)
			monitor = valLoss
		}

		h.TrainLoss = append(h.TrainLoss, trainLoss)
		if len(valX) > 0 {
			h.ValLoss = append(h.ValLoss, valLoss)
		}
		h.LearningRate = append(h.LearningRate, opt.LearningRate)
		if cfg.OnEpoch != nil {
			cfg.OnEpoch(EpochStats{Epoch: epoch, TrainLoss: trainLoss, ValLoss: valLoss, LearningRate: opt.LearningRate})
		}

		stop := stopper.observe(epoch, monitor)
		opt.LearningRate = plateau.observe(monitor, opt.LearningRate)
		if stop {
			h.StoppedEarly = true
			break
		}
	}

	stopper.restore()
	h.BestEpoch, h.BestLoss = stopper.bestEpoch, stopper.best
	return h, nil
}

// Evaluate returns the mean loss over (X, Y) with dropout disabled.
func (m *Model) Evaluate(X [][][]float64, Y [][]float64) float64 {
	if len(X) == 0 {
		return math.NaN()
	}
	var s float64
	for i, pred := range m.predict(X, false) {
		s += m.loss.Value(pred, Y[i])
	}
	return s / float64(len(X))
}

// earlyStopper tracks the best monitored loss and the weights that produced
// it. Any strict improvement resets the wait counter.
type earlyStopper struct {
	patience int
	params   []*nn.Param

	best      float64
	bestEpoch int
	weights   [][]float64
	wait      int
}

func newEarlyStopper(patience int, params []*nn.Param) *earlyStopper {
	return &earlyStopper{patience: patience, params: params, best: math.Inf(1)}
}

func (s *earlyStopper) observe(epoch int, loss float64) bool {
	if loss < s.best {
		s.best = loss
		s.bestEpoch = epoch
		s.weights = nn.Snapshot(s.params)
		s.wait = 0
		return false
	}
	s.wait++
	return s.patience > 0 && s.wait >= s.patience
}

func (s *earlyStopper) restore() {
	if s.weights != nil {
		nn.Restore(s.params, s.weights)
	}
}

// lrPlateau multiplies the learning rate by factor after patience epochs
// without an improvement larger than minDelta.
type lrPlateau struct {
	patience int
	factor   float64
	minDelta float64
	minLR    float64

	best float64
	wait int
}

func (p *lrPlateau) observe(loss, lr float64) float64 {
	if p.patience <= 0 {
		return lr
	}
	if loss < p.best-p.minDelta {
		p.best = loss
		p.wait = 0
		return lr
	}
	p.wait++
	if p.wait >= p.patience {
		p.wait = 0
		return math.Max(lr*p.factor, p.minLR)
	}
	return lr
}
