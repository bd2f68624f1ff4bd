package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Hrishi-524/DeepOrbit/internal/api"
	"github.com/Hrishi-524/DeepOrbit/internal/config"
	"github.com/Hrishi-524/DeepOrbit/internal/logging"
	"github.com/Hrishi-524/DeepOrbit/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/deeporbit.yaml", "path to YAML config (missing file uses defaults)")
	envFile := flag.String("env", ".env", "path to .env file")
	resultsDir := flag.String("results-dir", "", "directory with prediction and summary CSVs (overrides config)")
	plotsDir := flag.String("plots-dir", "", "directory with plots (overrides config)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	refresh := flag.Duration("refresh", time.Minute, "how often to rescan the results directories, 0 disables")
	dev := flag.Bool("dev", false, "human-readable log output and gin debug mode")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}
	if *resultsDir != "" {
		cfg.ResultsDir = *resultsDir
	}
	if *plotsDir != "" {
		cfg.PlotsDir = *plotsDir
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.New(cfg.Log.Level, *dev || cfg.Log.Dev)
	if err != nil {
		log.Fatalf("Creating logger: %v", err)
	}
	defer logger.Sync()

	if !*dev {
		gin.SetMode(gin.ReleaseMode)
	}

	results := store.New(cfg.ResultsDir, cfg.PlotsDir)
	if err := results.Refresh(); err != nil {
		logger.Warnw("initial results scan failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *refresh > 0 {
		go refreshLoop(ctx, results, *refresh, logger)
	}

	router := api.NewRouter(api.NewHandler(results, cfg.DatasetNames()), nil, logger)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infow("starting server",
		"addr", cfg.Server.Addr,
		"results_dir", cfg.ResultsDir,
		"plots_dir", cfg.PlotsDir,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorw("server stopped", "error", err)
	}
}

func refreshLoop(ctx context.Context, s *store.Store, every time.Duration, logger *zap.SugaredLogger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.Refresh(); err != nil {
				logger.Warnw("results rescan failed", "error", err)
			}
		}
	}
}
