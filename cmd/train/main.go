package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Hrishi-524/DeepOrbit/internal/artifact"
	"github.com/Hrishi-524/DeepOrbit/internal/config"
	"github.com/Hrishi-524/DeepOrbit/internal/logging"
	"github.com/Hrishi-524/DeepOrbit/internal/metrics"
	"github.com/Hrishi-524/DeepOrbit/internal/pipeline"
	"github.com/Hrishi-524/DeepOrbit/internal/ws"
)

func main() {
	configPath := flag.String("config", "configs/deeporbit.yaml", "path to YAML config (missing file uses defaults)")
	envFile := flag.String("env", ".env", "path to .env file")
	dataDir := flag.String("data-dir", "", "directory containing the telemetry CSVs (overrides config)")
	resultsDir := flag.String("results-dir", "", "directory for prediction and summary CSVs (overrides config)")
	modelsDir := flag.String("models-dir", "", "directory for model checkpoints (overrides config)")
	plotsDir := flag.String("plots-dir", "", "directory for plots (overrides config)")
	datasets := flag.String("datasets", "", "comma-separated dataset names to run (default: all configured)")
	archs := flag.String("models", "", "comma-separated architectures: lstm, transformer, probabilistic (default: config)")
	epochs := flag.Int("epochs", 0, "maximum training epochs (overrides config)")
	listen := flag.String("listen", "", "serve live progress on /ws and /metrics at this address, e.g. :5001")
	dev := flag.Bool("dev", false, "human-readable log output")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}
	overridePath(&cfg.DataDir, *dataDir)
	overridePath(&cfg.ResultsDir, *resultsDir)
	overridePath(&cfg.ModelsDir, *modelsDir)
	overridePath(&cfg.PlotsDir, *plotsDir)
	if *epochs > 0 {
		cfg.Training.Epochs = *epochs
	}
	if *archs != "" {
		cfg.Training.Archs = splitList(*archs)
	}
	if *datasets != "" {
		if cfg.Datasets, err = selectDatasets(cfg, splitList(*datasets)); err != nil {
			log.Fatal(err)
		}
	}

	logger, err := logging.New(cfg.Log.Level, *dev || cfg.Log.Dev)
	if err != nil {
		log.Fatalf("Creating logger: %v", err)
	}

	ok := train(cfg, *listen, logger)
	_ = logger.Sync()
	if !ok {
		os.Exit(1)
	}
}

// train runs every configured dataset and writes the artifacts. It reports
// whether the run completed with at least one result.
func train(cfg config.Config, listen string, logger *zap.SugaredLogger) bool {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	callbacks := pipeline.Callbacks{pipeline.LogCallback{Log: logger}}
	if listen != "" {
		hub := ws.NewHub(logger)
		bridge := ws.NewBridge(hub, logger)
		callbacks = append(callbacks, bridge)
		srv := startProgressServer(listen, ws.NewHandler(hub, bridge, logger), logger)
		defer shutdown(srv)
		defer hub.Close()
	}

	sink, err := artifact.NewSink(ctx, cfg)
	if err != nil {
		logger.Errorw("artifact storage unavailable", "error", err)
		return false
	}
	writer := artifact.NewWriter(sink, logger)

	runner, err := pipeline.NewRunner(cfg, logger, callbacks)
	if err != nil {
		logger.Errorw("invalid configuration", "error", err)
		return false
	}

	run, runErr := runner.RunAll(ctx)
	if runErr != nil {
		logger.Warnw("run interrupted, writing partial results", "error", runErr)
	}

	// Artifacts are written even after an interrupt.
	if err := writer.WriteRun(context.WithoutCancel(ctx), cfg, run); err != nil {
		logger.Errorw("writing artifacts", "error", err)
	}

	printSummary(run)
	return runErr == nil && len(run.Results) > 0
}

func overridePath(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func selectDatasets(cfg config.Config, names []string) ([]config.Dataset, error) {
	out := make([]config.Dataset, 0, len(names))
	for _, name := range names {
		ds, ok := cfg.Dataset(name)
		if !ok {
			return nil, fmt.Errorf("unknown dataset %q (configured: %s)", name, strings.Join(cfg.DatasetNames(), ", "))
		}
		out = append(out, ds)
	}
	return out, nil
}

func startProgressServer(addr string, handler http.Handler, logger *zap.SugaredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", handler)
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infow("progress server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("progress server stopped", "error", err)
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func printSummary(run pipeline.Run) {
	fmt.Println()
	fmt.Printf("Run %s (%s)\n", run.ID, run.Finished.Sub(run.Started).Round(time.Second))
	fmt.Println()
	fmt.Printf("  %-8s %-14s %10s %10s %10s  %s\n", "Dataset", "Model", "RMSE (m)", "MAE (m)", "Shapiro p", "Normal")
	fmt.Printf("  %s\n", strings.Repeat("-", 66))
	for _, r := range run.Results {
		normal := "NO"
		if r.Residuals.Normal {
			normal = "YES"
		}
		fmt.Printf("  %-8s %-14s %10.4f %10.4f %10.4f  %s\n",
			r.Dataset, r.Arch.DisplayName(), r.RMSE, r.MAE, r.Residuals.ShapiroP, normal)
	}
	if len(run.Failures) > 0 {
		fmt.Println()
		fmt.Println("  Skipped:")
		for _, f := range run.Failures {
			fmt.Printf("    %s\n", f.Error())
		}
	}
	fmt.Println()
}
