package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Hrishi-524/DeepOrbit/internal/artifact"
	"github.com/Hrishi-524/DeepOrbit/internal/config"
	"github.com/Hrishi-524/DeepOrbit/internal/logging"
	"github.com/Hrishi-524/DeepOrbit/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "configs/deeporbit.yaml", "path to YAML config (missing file uses defaults)")
	envFile := flag.String("env", ".env", "path to .env file")
	dataDir := flag.String("data-dir", "", "directory containing the telemetry CSVs (overrides config)")
	dataset := flag.String("dataset", "", "dataset to forecast (overrides clock.dataset)")
	lookback := flag.Int("lookback", 0, "input window in clock cadence steps (overrides config)")
	epochs := flag.Int("epochs", 0, "maximum training epochs (overrides config)")
	mc := flag.Int("mc", -1, "Monte-Carlo dropout passes, 0 disables (overrides config)")
	dev := flag.Bool("dev", false, "human-readable log output")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *dataset != "" {
		cfg.Clock.Dataset = *dataset
	}
	if *lookback > 0 {
		cfg.Clock.Lookback = *lookback
	}
	if *epochs > 0 {
		cfg.Clock.Epochs = *epochs
	}
	if *mc >= 0 {
		cfg.Clock.MCIterations = *mc
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, *dev || cfg.Log.Dev)
	if err != nil {
		log.Fatalf("Creating logger: %v", err)
	}

	ok := forecast(cfg, logger)
	_ = logger.Sync()
	if !ok {
		os.Exit(1)
	}
}

func forecast(cfg config.Config, logger *zap.SugaredLogger) bool {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := artifact.NewSink(ctx, cfg)
	if err != nil {
		logger.Errorw("artifact storage unavailable", "error", err)
		return false
	}

	res, err := pipeline.RunClock(ctx, cfg, logger, pipeline.LogCallback{Log: logger})
	if err != nil {
		logger.Errorw("clock forecast failed", "dataset", cfg.Clock.Dataset, "error", err)
		return false
	}

	if err := artifact.NewWriter(sink, logger).WriteClock(ctx, res); err != nil {
		logger.Errorw("writing artifacts", "error", err)
	}

	fmt.Println()
	fmt.Printf("Clock error forecast: %s\n", res.Dataset)
	fmt.Printf("  Windows: %d train, %d test (lookback %d, horizon %d)\n",
		res.TrainWindows, res.TestWindows, res.SeqLength, res.Horizon)
	fmt.Printf("  Epochs:  %d (best %d)\n", res.History.Epochs(), res.History.BestEpoch)
	fmt.Printf("  RMSE:    %.4f m\n", res.RMSE)
	fmt.Printf("  MAE:     %.4f m\n", res.MAE)
	if res.Uncertainty != nil {
		fmt.Printf("  MC std:  %.4f m (%d passes)\n", res.Uncertainty.MeanStd, res.Uncertainty.Iterations)
	}
	fmt.Println()
	return true
}
