package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
	"github.com/Hrishi-524/DeepOrbit/internal/predictor"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"GEO", "MEO1", "MEO2"}, cfg.DatasetNames())
	meo2, ok := cfg.Dataset("meo2")
	require.True(t, ok)
	assert.Equal(t, 8.0, meo2.SeqHours)
	assert.Equal(t, 4.0, meo2.HorizonHours)
	assert.Equal(t, "DATA_MEO_Train2.csv", meo2.File)

	assert.Equal(t, 15*time.Minute, cfg.Preprocess.Cadence)
	assert.Equal(t, 100, cfg.Training.Epochs)
	assert.Equal(t, 8, cfg.Training.BatchSize)
	assert.Equal(t, 6, cfg.Clock.Lookback)
	assert.Equal(t, ClipTrain, cfg.Preprocess.ClipScope)
	assert.Equal(t, ClipTrain, cfg.Clock.ClipScope)

	archs, err := cfg.Archs()
	require.NoError(t, err)
	assert.Equal(t, predictor.AllArchs, archs)

	assert.Equal(t, []model.Column{model.ColRadialLag1, model.ColRadialDiff1, model.ColRadialRoll3, model.ColRadialRoll6},
		cfg.FeatureColumns())
}

func TestDataset_Path(t *testing.T) {
	d := Dataset{File: "a.csv"}
	assert.Equal(t, filepath.Join("data", "a.csv"), d.Path("data"))

	abs := filepath.Join(t.TempDir(), "b.csv")
	d.File = abs
	assert.Equal(t, abs, d.Path("data"))
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deeporbit.yaml")
	content := `
data_dir: /srv/telemetry
preprocess:
  cadence: 1h
  clip_scope: train
  split_mode: percentage
training:
  epochs: 5
  archs: [LSTM]
  model:
    dropout: 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "/srv/telemetry", cfg.DataDir)
	assert.Equal(t, time.Hour, cfg.Preprocess.Cadence)
	assert.Equal(t, ClipTrain, cfg.Preprocess.ClipScope)
	assert.Equal(t, 5, cfg.Training.Epochs)
	assert.Equal(t, 0.25, cfg.Training.Model.Dropout)
	// Untouched keys keep their defaults.
	assert.Equal(t, 8, cfg.Training.BatchSize)
	assert.Len(t, cfg.Datasets, 3)

	archs, err := cfg.Archs()
	require.NoError(t, err)
	assert.Equal(t, []predictor.Arch{predictor.ArchRecurrent}, archs)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Equal(t, Default().Training, cfg.Training)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("training: [1, 2"), 0o644))

	_, err := Load(path, "")
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DEEPORBIT_RESULTS_DIR", "/tmp/out")
	t.Setenv("DEEPORBIT_EPOCHS", "3")
	t.Setenv("DEEPORBIT_SEED", "7")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", cfg.ResultsDir)
	assert.Equal(t, 3, cfg.Training.Epochs)
	assert.Equal(t, uint64(7), cfg.Training.Seed)
	assert.True(t, cfg.Storage.Enabled)
	assert.True(t, cfg.Storage.UseSSL)
	assert.Equal(t, "localhost:9000", cfg.Storage.Endpoint)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("DEEPORBIT_EPOCHS", "many")
	_, err := Load("", "")
	assert.ErrorContains(t, err, "DEEPORBIT_EPOCHS")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DEEPORBIT_ADDR=:8088\n"), 0o644))
	// godotenv does not override variables already set; make sure ours is unset
	// and cleaned up afterwards.
	t.Setenv("DEEPORBIT_ADDR", "")
	require.NoError(t, os.Unsetenv("DEEPORBIT_ADDR"))

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, ":8088", cfg.Server.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no datasets", func(c *Config) { c.Datasets = nil }, "no datasets"},
		{"bad hours", func(c *Config) { c.Datasets[0].SeqHours = 0 }, "window hours"},
		{"cadence", func(c *Config) { c.Preprocess.Cadence = 0 }, "cadence"},
		{"clip scope", func(c *Config) { c.Preprocess.ClipScope = "all" }, "clip_scope"},
		{"clock clip scope", func(c *Config) { c.Clock.ClipScope = "" }, "clock.clip_scope"},
		{"clock ratio", func(c *Config) { c.Clock.TrainRatio = 1 }, "clock.train_ratio"},
		{"split mode", func(c *Config) { c.Preprocess.SplitMode = "random" }, "split_mode"},
		{"scaler", func(c *Config) { c.Preprocess.Scaler = "zscore" }, "scaler"},
		{"column", func(c *Config) { c.Preprocess.TargetColumn = "altitude" }, "altitude"},
		{"arch", func(c *Config) { c.Training.Archs = []string{"gru"} }, "gru"},
		{"val split", func(c *Config) { c.Training.ValSplit = 1 }, "val_split"},
		{"storage", func(c *Config) { c.Storage.Enabled = true }, "storage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
