package pipeline

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Hrishi-524/DeepOrbit/internal/predictor"
)

// RunInfo describes a batch about to start.
type RunInfo struct {
	RunID    string
	Datasets []string
	Archs    []string
	Started  time.Time
}

// EpochEvent is one finished training epoch of a (dataset, architecture).
type EpochEvent struct {
	RunID   string
	Dataset string
	Arch    predictor.Arch
	Epochs  int // configured maximum
	predictor.EpochStats
}

// Callback receives pipeline events. Calls are made from the goroutine
// running the pipeline.
type Callback interface {
	OnRunStart(info RunInfo)
	OnEpoch(ev EpochEvent)
	OnResult(res Result)
	OnDatasetError(err DatasetError)
	OnRunComplete(run Run)
}

// Callbacks fans events out to every element in order.
type Callbacks []Callback

func (cs Callbacks) OnRunStart(info RunInfo) {
	for _, c := range cs {
		c.OnRunStart(info)
	}
}

func (cs Callbacks) OnEpoch(ev EpochEvent) {
	for _, c := range cs {
		c.OnEpoch(ev)
	}
}

func (cs Callbacks) OnResult(res Result) {
	for _, c := range cs {
		c.OnResult(res)
	}
}

func (cs Callbacks) OnDatasetError(err DatasetError) {
	for _, c := range cs {
		c.OnDatasetError(err)
	}
}

func (cs Callbacks) OnRunComplete(run Run) {
	for _, c := range cs {
		c.OnRunComplete(run)
	}
}

// LogCallback writes pipeline events to a zap logger. Epochs are logged at
// debug level except every tenth, the first and the last.
type LogCallback struct {
	Log *zap.SugaredLogger
}

func (l LogCallback) OnRunStart(info RunInfo) {
	l.Log.Infow("run started", "run_id", info.RunID, "datasets", info.Datasets, "archs", info.Archs)
}

func (l LogCallback) OnEpoch(ev EpochEvent) {
	kv := []any{
		"dataset", ev.Dataset,
		"model", ev.Arch.String(),
		"epoch", ev.Epoch,
		"train_loss", ev.TrainLoss,
		"lr", ev.LearningRate,
	}
	if !math.IsNaN(ev.ValLoss) {
		kv = append(kv, "val_loss", ev.ValLoss)
	}
	if ev.Epoch == 1 || ev.Epoch%10 == 0 || ev.Epoch == ev.Epochs {
		l.Log.Infow("epoch", kv...)
		return
	}
	l.Log.Debugw("epoch", kv...)
}

func (l LogCallback) OnResult(res Result) {
	l.Log.Infow("model evaluated",
		"dataset", res.Dataset,
		"model", res.Arch.String(),
		"rmse_m", res.RMSE,
		"mae_m", res.MAE,
		"shapiro_p", res.Residuals.ShapiroP,
		"normal", res.Residuals.Normal,
		"epochs", res.History.Epochs(),
		"duration", res.Duration.Round(time.Millisecond),
	)
	for _, n := range res.Notes {
		l.Log.Warnw(n, "dataset", res.Dataset, "model", res.Arch.String())
	}
}

func (l LogCallback) OnDatasetError(err DatasetError) {
	l.Log.Errorw("dataset skipped", "dataset", err.Dataset, "model", err.Arch, "error", err.Err)
}

func (l LogCallback) OnRunComplete(run Run) {
	l.Log.Infow("run complete",
		"run_id", run.ID,
		"results", len(run.Results),
		"failures", len(run.Failures),
		"elapsed", run.Finished.Sub(run.Started).Round(time.Second),
	)
}
