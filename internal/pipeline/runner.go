package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/Hrishi-524/DeepOrbit/internal/config"
	"github.com/Hrishi-524/DeepOrbit/internal/diagnostics"
	"github.com/Hrishi-524/DeepOrbit/internal/metrics"
	"github.com/Hrishi-524/DeepOrbit/internal/model"
	"github.com/Hrishi-524/DeepOrbit/internal/predictor"
	"github.com/Hrishi-524/DeepOrbit/internal/window"
)

// MinTrainWindows is the window count below which training is considered
// unreliable. Training still runs, with a warning.
const MinTrainWindows = 10

// Runner trains and evaluates every configured architecture on every
// configured dataset.
type Runner struct {
	cfg   config.Config
	archs []predictor.Arch
	log   *zap.SugaredLogger
	cb    Callback
}

// NewRunner validates cfg and returns a Runner. cb may be nil.
func NewRunner(cfg config.Config, log *zap.SugaredLogger, cb Callback) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	archs, err := cfg.Archs()
	if err != nil {
		return nil, err
	}
	if cb == nil {
		cb = Callbacks{}
	}
	return &Runner{cfg: cfg, archs: archs, log: log, cb: cb}, nil
}

// RunAll processes the configured datasets in order. A failing dataset is
// logged, counted and skipped; the error return is reserved for context
// cancellation, in which case the partial run is returned as well.
func (r *Runner) RunAll(ctx context.Context) (Run, error) {
	run := Run{ID: uuid.NewString(), Started: time.Now().UTC()}

	archNames := make([]string, len(r.archs))
	for i, a := range r.archs {
		archNames[i] = a.String()
	}
	r.cb.OnRunStart(RunInfo{RunID: run.ID, Datasets: r.cfg.DatasetNames(), Archs: archNames, Started: run.Started})

	var err error
	for i, ds := range r.cfg.Datasets {
		if err = ctx.Err(); err != nil {
			break
		}
		var results []Result
		var failures []DatasetError
		results, failures, err = r.runDataset(ctx, run.ID, i, ds)
		run.Results = append(run.Results, results...)
		run.Failures = append(run.Failures, failures...)
		if err != nil {
			break
		}
	}

	run.Finished = time.Now().UTC()
	r.cb.OnRunComplete(run)
	return run, err
}

// runDataset returns the results and failures of one dataset. The error is
// non-nil only when ctx was cancelled.
func (r *Runner) runDataset(ctx context.Context, runID string, index int, ds config.Dataset) ([]Result, []DatasetError, error) {
	fail := func(arch string, err error) DatasetError {
		de := DatasetError{Dataset: ds.Name, Arch: arch, Err: err}
		metrics.DatasetFailed(ds.Name)
		r.cb.OnDatasetError(de)
		return de
	}

	prep, err := r.prepare(ds)
	if err != nil {
		return nil, []DatasetError{fail("", err)}, nil
	}

	var results []Result
	var failures []DatasetError
	for _, arch := range r.archs {
		seed := uint64(index)<<8 | uint64(arch)
		res, err := r.trainArch(ctx, runID, ds.Name, arch, prep, rand.New(rand.NewPCG(r.cfg.Training.Seed, seed)))
		if err != nil {
			if ctx.Err() != nil {
				return results, failures, err
			}
			failures = append(failures, fail(arch.String(), err))
			continue
		}
		results = append(results, res)
		r.cb.OnResult(res)
	}
	return results, failures, nil
}

// prepared is a dataset ready for training.
type prepared struct {
	split window.ScaledSplit
	train window.WindowSet
	test  window.WindowSet
	notes []string
}

func (r *Runner) prepare(ds config.Dataset) (prepared, error) {
	p := r.cfg.Preprocess
	seqLength, err := steps(ds.SeqHours, p.Cadence)
	if err != nil {
		return prepared{}, fmt.Errorf("sequence length: %w", err)
	}
	horizon, err := steps(ds.HorizonHours, p.Cadence)
	if err != nil {
		return prepared{}, fmt.Errorf("horizon: %w", err)
	}

	series, err := loadSeries(ds.Path(r.cfg.DataDir), p.Cadence)
	if err != nil {
		return prepared{}, err
	}
	part, err := partition(series, p)
	if err != nil {
		return prepared{}, fmt.Errorf("splitting: %w", err)
	}

	fit, err := window.FitterFor(p.Scaler)
	if err != nil {
		return prepared{}, err
	}
	split, err := window.Scale(part, r.cfg.FeatureColumns(), model.Column(p.TargetColumn), fit)
	if err != nil {
		return prepared{}, fmt.Errorf("scaling: %w", err)
	}

	out := prepared{split: split}
	out.train, err = window.Window(split.XTrain, split.YTrain, seqLength, horizon)
	if err != nil {
		return prepared{}, err
	}
	out.test, err = window.Window(split.XTest, split.YTest, seqLength, horizon)
	if err != nil {
		return prepared{}, err
	}
	if out.train.Len() == 0 {
		return prepared{}, &model.InsufficientDataError{What: "training windows", Need: seqLength + 2, Got: len(split.XTrain)}
	}
	if out.test.Len() == 0 {
		return prepared{}, &model.InsufficientDataError{What: "test windows", Need: seqLength + 2, Got: len(split.XTest)}
	}

	out.notes = append(out.notes, horizonNotes(horizon, out.train, out.test)...)
	if out.train.Len() < MinTrainWindows {
		out.notes = append(out.notes, fmt.Sprintf("only %d training windows", out.train.Len()))
	}

	r.log.Infow("dataset prepared",
		"dataset", ds.Name,
		"rows", series.Len(),
		"train_rows", len(part.Train),
		"test_rows", len(part.Test),
		"seq_length", seqLength,
		"horizon", out.train.NFuture,
		"train_windows", out.train.Len(),
		"test_windows", out.test.Len(),
	)
	return out, nil
}

func (r *Runner) trainArch(ctx context.Context, runID, dataset string, arch predictor.Arch, prep prepared, rng *rand.Rand) (Result, error) {
	t := r.cfg.Training
	m, err := predictor.Build(arch, prep.train.SeqLength, prep.train.Features(), prep.train.NFuture, t.Model, rng)
	if err != nil {
		return Result{}, err
	}

	tc := predictor.TrainConfig{
		Epochs:       t.Epochs,
		BatchSize:    t.BatchSize,
		LearningRate: t.LearningRate,
		ValSplit:     t.ValSplit,
		Patience:     t.Patience,
		LRPatience:   t.LRPatience,
		LRFactor:     t.LRFactor,
		MinDelta:     t.MinDelta,
		ClipNorm:     t.ClipNorm,
		OnEpoch: func(s predictor.EpochStats) {
			metrics.ObserveEpoch(dataset, arch.String())
			r.cb.OnEpoch(EpochEvent{RunID: runID, Dataset: dataset, Arch: arch, Epochs: t.Epochs, EpochStats: s})
		},
	}

	start := time.Now()
	hist, err := m.Train(ctx, prep.train.Inputs, prep.train.Targets, tc)
	if err != nil {
		return Result{}, fmt.Errorf("training: %w", err)
	}
	elapsed := time.Since(start)
	metrics.ObserveTraining(dataset, arch.String(), elapsed)

	mcIter := 0
	if arch == predictor.ArchProbabilistic {
		mcIter = t.MCIterations
	}
	res, err := evaluate(m, prep.test, prep.split.TargetScaler, mcIter)
	if err != nil {
		return Result{}, err
	}
	res.RunID = runID
	res.Dataset = dataset
	res.History = hist
	res.SeqLength = prep.train.SeqLength
	res.Horizon = prep.train.NFuture
	res.TrainWindows = prep.train.Len()
	res.Duration = elapsed
	res.Notes = append(append([]string(nil), prep.notes...), res.Notes...)

	metrics.SetEvaluation(dataset, arch.String(), res.RMSE, res.MAE, res.Residuals.ShapiroP)
	return res, nil
}

// horizonNotes reports every window set whose horizon was shrunk, train
// first.
func horizonNotes(horizon int, train, test window.WindowSet) []string {
	var notes []string
	for _, set := range []struct {
		name string
		ws   window.WindowSet
	}{{"train", train}, {"test", test}} {
		if set.ws.Shrunk {
			notes = append(notes, fmt.Sprintf("%s horizon shrunk from %d to %d steps", set.name, horizon, set.ws.NFuture))
		}
	}
	return notes
}

// evaluate predicts the test windows, maps everything to meters and
// computes metrics, residual diagnostics and, when mcIter > 0, Monte-Carlo
// uncertainty.
func evaluate(m *predictor.Model, test window.WindowSet, target window.Scaler, mcIter int) (Result, error) {
	res := Result{Arch: m.Arch(), TestWindows: test.Len()}

	raw, err := m.Predict(test.Inputs)
	if err != nil {
		return Result{}, fmt.Errorf("predicting test windows: %w", err)
	}
	pred, truth, mismatch := diagnostics.Align(raw, test.Targets)
	if mismatch != nil {
		res.Notes = append(res.Notes, mismatch.Error()+", truncated to common prefix")
	}
	res.YTrue = toMeters(target, truth)
	res.YPred = toMeters(target, pred)
	res.RMSE = diagnostics.RMSE(res.YTrue, res.YPred)
	res.MAE = diagnostics.MAE(res.YTrue, res.YPred)

	rep, err := diagnostics.Analyze(res.YTrue, res.YPred)
	if err != nil {
		if !errors.Is(err, model.ErrInsufficientData) {
			return Result{}, fmt.Errorf("residual analysis: %w", err)
		}
		res.Notes = append(res.Notes, err.Error())
		rep.ShapiroP = math.NaN()
	}
	res.Residuals = rep
	res.Notes = append(res.Notes, rep.Notes...)

	if mcIter > 0 {
		u, err := predictor.Estimate(m, test.Inputs, mcIter)
		if err != nil {
			return Result{}, fmt.Errorf("uncertainty: %w", err)
		}
		mean, _, _ := diagnostics.Align(u.Mean, test.Targets)
		std, _, _ := diagnostics.Align(u.Std, test.Targets)
		res.Uncertainty = &Uncertainty{
			Iterations: u.Iterations,
			Mean:       toMeters(target, mean),
			Std:        spreadToMeters(target, std),
		}
		if len(std) > 0 {
			res.Uncertainty.MeanStd = stat.Mean(res.Uncertainty.Std, nil)
		}
	}

	if data, err := m.Save(); err != nil {
		res.Notes = append(res.Notes, fmt.Sprintf("checkpoint not encoded: %v", err))
	} else {
		res.Checkpoint = data
	}
	return res, nil
}
