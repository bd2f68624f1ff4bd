package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hrishi-524/DeepOrbit/internal/config"
	"github.com/Hrishi-524/DeepOrbit/internal/metrics"
	"github.com/Hrishi-524/DeepOrbit/internal/model"
	"github.com/Hrishi-524/DeepOrbit/internal/predictor"
	"github.com/Hrishi-524/DeepOrbit/internal/preprocess"
	"github.com/Hrishi-524/DeepOrbit/internal/window"
)

// ClockFeatures are the inputs of the quick clock-error model.
var ClockFeatures = []model.Column{
	model.ColXError, model.ColYError, model.ColZError, model.ColRadialError,
	model.ColDX, model.ColDY, model.ColDZ, model.ColDClock,
}

// clockMetricsModel labels quick-run series in Prometheus.
const clockMetricsModel = "clock"

// ClockResult is the outcome of the quick clock-error run.
type ClockResult struct {
	Result
	// Times holds the timestamp of every YTrue element.
	Times []time.Time
}

// RunClock trains the recurrent model on satellite clock error: hourly
// series, min-max scaling fitted on the leading train rows, short lookback,
// Huber loss, and Monte-Carlo dropout on the held-out windows, which also
// serve as validation data.
func RunClock(ctx context.Context, cfg config.Config, log *zap.SugaredLogger, cb Callback) (ClockResult, error) {
	if cb == nil {
		cb = Callbacks{}
	}
	c := cfg.Clock
	ds, ok := cfg.Dataset(c.Dataset)
	if !ok {
		return ClockResult{}, fmt.Errorf("clock dataset %q is not configured", c.Dataset)
	}

	runID := uuid.NewString()
	started := time.Now().UTC()
	arch := predictor.ArchRecurrent
	cb.OnRunStart(RunInfo{RunID: runID, Datasets: []string{ds.Name}, Archs: []string{arch.String()}, Started: started})

	res, err := runClock(ctx, cfg, ds, runID, log, cb)
	run := Run{ID: runID, Started: started, Finished: time.Now().UTC()}
	if err != nil {
		de := DatasetError{Dataset: ds.Name, Arch: arch.String(), Err: err}
		metrics.DatasetFailed(ds.Name)
		cb.OnDatasetError(de)
		run.Failures = []DatasetError{de}
		cb.OnRunComplete(run)
		return ClockResult{}, err
	}

	cb.OnResult(res.Result)
	run.Results = []Result{res.Result}
	cb.OnRunComplete(run)
	return res, nil
}

// clockWindowSplit splits n windows over rows whose first k rows are the
// scaler's training rows. Test windows start at the ratio cut. Training
// windows end earlier if needed so that no target reaches row k.
func clockWindowSplit(n, k, seq, horizon int, ratio float64) (trainEnd, testStart int) {
	testStart = window.SplitIndex(n, ratio)
	trainEnd = max(0, min(testStart, k-seq-horizon+1))
	return trainEnd, testStart
}

func runClock(ctx context.Context, cfg config.Config, ds config.Dataset, runID string, log *zap.SugaredLogger, cb Callback) (ClockResult, error) {
	c := cfg.Clock
	series, err := loadSeries(ds.Path(cfg.DataDir), c.Cadence)
	if err != nil {
		return ClockResult{}, err
	}

	k := window.SplitIndex(series.Len(), c.TrainRatio)
	if k < 1 || k >= series.Len() {
		return ClockResult{}, &model.InsufficientDataError{What: "clock train/test rows", Need: 2, Got: series.Len()}
	}
	series, err = clipSeries(series, c.ClipScope, cfg.Preprocess.ClipLower, cfg.Preprocess.ClipUpper, series.Rows[k].Timestamp)
	if err != nil {
		return ClockResult{}, err
	}

	rows := preprocess.AddClockFeatures(series)
	split, err := window.Scale(window.Partition{Train: rows[:k], Test: rows[k:]}, ClockFeatures, model.ColClockError, window.FitMinMax)
	if err != nil {
		return ClockResult{}, fmt.Errorf("scaling: %w", err)
	}

	X := append(append([][]float64(nil), split.XTrain...), split.XTest...)
	y := append(append([]float64(nil), split.YTrain...), split.YTest...)
	ws, err := window.Window(X, y, c.Lookback, c.Horizon)
	if err != nil {
		return ClockResult{}, err
	}
	trainEnd, wk := clockWindowSplit(ws.Len(), k, ws.SeqLength, ws.NFuture, c.TrainRatio)
	if trainEnd < 1 || wk >= ws.Len() {
		return ClockResult{}, &model.InsufficientDataError{What: "clock windows", Need: 2, Got: ws.Len()}
	}
	train := window.WindowSet{Inputs: ws.Inputs[:trainEnd], Targets: ws.Targets[:trainEnd], SeqLength: ws.SeqLength, NFuture: ws.NFuture}
	test := window.WindowSet{Inputs: ws.Inputs[wk:], Targets: ws.Targets[wk:], SeqLength: ws.SeqLength, NFuture: ws.NFuture}

	log.Infow("clock series prepared",
		"dataset", ds.Name,
		"rows", series.Len(),
		"train_rows", k,
		"train_windows", train.Len(),
		"test_windows", test.Len(),
	)

	arch := predictor.ArchRecurrent
	rng := rand.New(rand.NewPCG(cfg.Training.Seed, uint64(arch)))
	m, err := predictor.Build(arch, ws.SeqLength, ws.Features(), ws.NFuture,
		predictor.ModelConfig{HeadUnits: c.HeadUnits, Loss: "huber"}, rng)
	if err != nil {
		return ClockResult{}, err
	}

	tc := predictor.TrainConfig{
		Epochs:       c.Epochs,
		BatchSize:    c.BatchSize,
		LearningRate: cfg.Training.LearningRate,
		ValX:         test.Inputs,
		ValY:         test.Targets,
		Patience:     c.Patience,
		ClipNorm:     cfg.Training.ClipNorm,
		OnEpoch: func(s predictor.EpochStats) {
			metrics.ObserveEpoch(ds.Name, clockMetricsModel)
			cb.OnEpoch(EpochEvent{RunID: runID, Dataset: ds.Name, Arch: arch, Epochs: c.Epochs, EpochStats: s})
		},
	}
	start := time.Now()
	hist, err := m.Train(ctx, train.Inputs, train.Targets, tc)
	if err != nil {
		return ClockResult{}, fmt.Errorf("training: %w", err)
	}
	elapsed := time.Since(start)
	metrics.ObserveTraining(ds.Name, clockMetricsModel, elapsed)

	res, err := evaluate(m, test, split.TargetScaler, c.MCIterations)
	if err != nil {
		return ClockResult{}, err
	}
	res.RunID = runID
	res.Dataset = ds.Name
	res.History = hist
	res.SeqLength = ws.SeqLength
	res.Horizon = ws.NFuture
	res.TrainWindows = train.Len()
	res.Duration = elapsed
	metrics.SetEvaluation(ds.Name, clockMetricsModel, res.RMSE, res.MAE, res.Residuals.ShapiroP)

	times := make([]time.Time, 0, len(res.YTrue))
	for i := range test.Len() {
		first := wk + i + ws.SeqLength
		for h := range ws.NFuture {
			times = append(times, rows[first+h].Timestamp)
		}
	}
	return ClockResult{Result: res, Times: times[:min(len(times), len(res.YTrue))]}, nil
}
