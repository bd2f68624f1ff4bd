package artifact

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Hrishi-524/DeepOrbit/internal/config"
	"github.com/Hrishi-524/DeepOrbit/internal/pipeline"
)

// ClockModel names the quick clock model in artifact file names.
const ClockModel = "clock"

// Writer turns pipeline output into stored artifacts. Plot failures are
// logged and skipped; storage failures are collected and returned.
type Writer struct {
	sink Sink
	log  *zap.SugaredLogger
}

func NewWriter(sink Sink, log *zap.SugaredLogger) *Writer {
	return &Writer{sink: sink, log: log}
}

// WriteRun stores per-pair predictions, checkpoints and residual plots,
// per-dataset comparison plots, the metrics summary and the run manifest.
func (w *Writer) WriteRun(ctx context.Context, cfg config.Config, run pipeline.Run) error {
	var errs []error
	put := func(kind Kind, name string, data []byte) {
		if err := w.sink.Put(ctx, kind, name, data); err != nil {
			errs = append(errs, err)
			return
		}
		w.log.Debugw("artifact written", "kind", kind, "name", name, "bytes", len(data))
	}

	for _, r := range run.Results {
		model := r.Arch.DisplayName()
		data, err := EncodePredictions(r.YTrue, r.YPred)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s predictions: %w", r.Dataset, model, err))
		} else {
			put(KindResult, PredictionsName(model, r.Dataset), data)
		}
		if r.Checkpoint != nil {
			put(KindModel, CheckpointName(model, r.Dataset), r.Checkpoint)
		}
		w.plot(put, ResidualsName(model, r.Dataset), func() ([]byte, error) { return ResidualsPNG(r) })
	}

	for _, ds := range run.Datasets() {
		results := run.ForDataset(ds)
		w.plot(put, ComparisonName(ds), func() ([]byte, error) { return ComparisonPNG(ds, results) })
	}

	summary, err := EncodeSummary(run.Results)
	if err != nil {
		errs = append(errs, fmt.Errorf("summary: %w", err))
	} else {
		put(KindResult, SummaryName, summary)
	}

	manifest, err := NewManifest(cfg, run)
	if err == nil {
		var data []byte
		if data, err = manifest.Encode(); err == nil {
			put(KindResult, ManifestName, data)
		}
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("manifest: %w", err))
	}

	return errors.Join(errs...)
}

// WriteClock stores the quick clock run: predictions, checkpoint, and the
// forecast, loss and uncertainty plots.
func (w *Writer) WriteClock(ctx context.Context, r pipeline.ClockResult) error {
	var errs []error
	put := func(kind Kind, name string, data []byte) {
		if err := w.sink.Put(ctx, kind, name, data); err != nil {
			errs = append(errs, err)
		}
	}

	data, err := EncodePredictions(r.YTrue, r.YPred)
	if err != nil {
		errs = append(errs, fmt.Errorf("clock predictions: %w", err))
	} else {
		put(KindResult, PredictionsName(ClockModel, r.Dataset), data)
	}
	if r.Checkpoint != nil {
		put(KindModel, CheckpointName(ClockModel, r.Dataset), r.Checkpoint)
	}

	w.plot(put, ClockPredictionName, func() ([]byte, error) { return ClockPredictionPNG(r) })
	w.plot(put, ClockLossName, func() ([]byte, error) {
		return LossPNG(fmt.Sprintf("%s clock model loss", r.Dataset), r.History)
	})
	if r.Uncertainty != nil {
		w.plot(put, ClockUncertaintyName, func() ([]byte, error) { return ClockUncertaintyPNG(r) })
	}
	return errors.Join(errs...)
}

func (w *Writer) plot(put func(Kind, string, []byte), name string, draw func() ([]byte, error)) {
	data, err := draw()
	if err != nil {
		w.log.Warnw("plot skipped", "name", name, "error", err)
		return
	}
	put(KindPlot, name, data)
}
