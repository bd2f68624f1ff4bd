// Package config loads run configuration from YAML, a .env file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
	"github.com/Hrishi-524/DeepOrbit/internal/predictor"
	"github.com/Hrishi-524/DeepOrbit/internal/window"
)

// Config is the full run configuration.
type Config struct {
	DataDir    string `yaml:"data_dir"`
	ResultsDir string `yaml:"results_dir"`
	ModelsDir  string `yaml:"models_dir"`
	PlotsDir   string `yaml:"plots_dir"`

	Datasets   []Dataset  `yaml:"datasets"`
	Preprocess Preprocess `yaml:"preprocess"`
	Training   Training   `yaml:"training"`
	Clock      Clock      `yaml:"clock"`
	Server     Server     `yaml:"server"`
	Storage    Storage    `yaml:"storage"`
	Log        Log        `yaml:"log"`
}

// Dataset is one input CSV and its window geometry in hours.
type Dataset struct {
	Name         string               `yaml:"name"`
	File         string               `yaml:"file"`
	Class        model.SatelliteClass `yaml:"class"`
	SeqHours     float64              `yaml:"seq_hours"`
	HorizonHours float64              `yaml:"horizon_hours"`
}

// Path resolves the dataset file against dataDir.
func (d Dataset) Path(dataDir string) string {
	if filepath.IsAbs(d.File) {
		return d.File
	}
	return filepath.Join(dataDir, d.File)
}

// Clip scopes.
const (
	ClipNone   = "none"
	ClipTrain  = "train"
	ClipSeries = "series"
)

// Preprocess configures resampling, clipping, splitting and scaling.
type Preprocess struct {
	Cadence        time.Duration `yaml:"cadence"`
	ClipScope      string        `yaml:"clip_scope"`
	ClipLower      float64       `yaml:"clip_lower"`
	ClipUpper      float64       `yaml:"clip_upper"`
	SplitMode      string        `yaml:"split_mode"`
	TrainRatio     float64       `yaml:"train_ratio"`
	FeatureColumns []string      `yaml:"feature_columns"`
	TargetColumn   string        `yaml:"target_column"`
	Scaler         string        `yaml:"scaler"`
}

// Training configures model fitting.
type Training struct {
	Archs        []string              `yaml:"archs"`
	Epochs       int                   `yaml:"epochs"`
	BatchSize    int                   `yaml:"batch_size"`
	LearningRate float64               `yaml:"learning_rate"`
	ValSplit     float64               `yaml:"val_split"`
	Patience     int                   `yaml:"patience"`
	LRPatience   int                   `yaml:"lr_patience"`
	LRFactor     float64               `yaml:"lr_factor"`
	MinDelta     float64               `yaml:"min_delta"`
	ClipNorm     float64               `yaml:"clip_norm"`
	Seed         uint64                `yaml:"seed"`
	MCIterations int                   `yaml:"mc_iterations"`
	Model        predictor.ModelConfig `yaml:"model"`
}

// Clock configures the quick clock-error pipeline.
type Clock struct {
	Dataset      string        `yaml:"dataset"`
	Cadence      time.Duration `yaml:"cadence"`
	ClipScope    string        `yaml:"clip_scope"`
	Lookback     int           `yaml:"lookback"`
	Horizon      int           `yaml:"horizon"`
	TrainRatio   float64       `yaml:"train_ratio"`
	Epochs       int           `yaml:"epochs"`
	BatchSize    int           `yaml:"batch_size"`
	Patience     int           `yaml:"patience"`
	HeadUnits    int           `yaml:"head_units"`
	MCIterations int           `yaml:"mc_iterations"`
}

// Server configures the results API.
type Server struct {
	Addr string `yaml:"addr"`
}

// Storage configures the optional MinIO artifact mirror.
type Storage struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Log configures the logger.
type Log struct {
	Level string `yaml:"level"`
	Dev   bool   `yaml:"dev"`
}

// Default returns the built-in configuration: three datasets, 15-minute
// cadence, last-day split, robust scaling and all three architectures.
func Default() Config {
	return Config{
		DataDir:    "data",
		ResultsDir: "results",
		ModelsDir:  "models",
		PlotsDir:   "plots",
		Datasets: []Dataset{
			{Name: "GEO", File: "DATA_GEO_Train.csv", Class: model.ClassGEO, SeqHours: 12, HorizonHours: 12},
			{Name: "MEO1", File: "DATA_MEO_Train.csv", Class: model.ClassMEO, SeqHours: 12, HorizonHours: 12},
			{Name: "MEO2", File: "DATA_MEO_Train2.csv", Class: model.ClassMEO, SeqHours: 8, HorizonHours: 4},
		},
		Preprocess: Preprocess{
			Cadence:    15 * time.Minute,
			ClipScope:  ClipTrain,
			ClipLower:  0.01,
			ClipUpper:  0.99,
			SplitMode:  string(window.SplitLastDay),
			TrainRatio: window.DefaultTrainRatio,
			FeatureColumns: []string{
				string(model.ColRadialLag1),
				string(model.ColRadialDiff1),
				string(model.ColRadialRoll3),
				string(model.ColRadialRoll6),
			},
			TargetColumn: string(model.ColRadialError),
			Scaler:       "robust",
		},
		Training: Training{
			Archs:        []string{"lstm", "transformer", "probabilistic"},
			Epochs:       100,
			BatchSize:    8,
			LearningRate: 1e-3,
			ValSplit:     0.15,
			Patience:     10,
			LRPatience:   5,
			LRFactor:     0.5,
			MinDelta:     1e-4,
			ClipNorm:     5,
			Seed:         42,
			MCIterations: predictor.DefaultMCIterations,
		},
		Clock: Clock{
			Dataset:      "GEO",
			Cadence:      time.Hour,
			ClipScope:    ClipTrain,
			Lookback:     6,
			Horizon:      1,
			TrainRatio:   0.8,
			Epochs:       100,
			BatchSize:    16,
			Patience:     20,
			HeadUnits:    16,
			MCIterations: predictor.DefaultMCIterations,
		},
		Server: Server{Addr: ":5000"},
		Storage: Storage{
			Bucket: "deeporbit",
			Prefix: "runs",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults (a missing path keeps
// the defaults), loads envFile if it exists, applies environment overrides
// and validates the result.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	str("DEEPORBIT_DATA_DIR", &c.DataDir)
	str("DEEPORBIT_RESULTS_DIR", &c.ResultsDir)
	str("DEEPORBIT_MODELS_DIR", &c.ModelsDir)
	str("DEEPORBIT_PLOTS_DIR", &c.PlotsDir)
	str("DEEPORBIT_ADDR", &c.Server.Addr)
	str("DEEPORBIT_LOG_LEVEL", &c.Log.Level)
	str("MINIO_ENDPOINT", &c.Storage.Endpoint)
	str("MINIO_ACCESS_KEY", &c.Storage.AccessKey)
	str("MINIO_SECRET_KEY", &c.Storage.SecretKey)
	str("MINIO_BUCKET", &c.Storage.Bucket)

	if v, ok := os.LookupEnv("DEEPORBIT_EPOCHS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DEEPORBIT_EPOCHS: %w", err)
		}
		c.Training.Epochs = n
	}
	if v, ok := os.LookupEnv("DEEPORBIT_SEED"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("DEEPORBIT_SEED: %w", err)
		}
		c.Training.Seed = n
	}
	if v, ok := os.LookupEnv("MINIO_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MINIO_USE_SSL: %w", err)
		}
		c.Storage.UseSSL = b
	}
	if c.Storage.Endpoint != "" {
		c.Storage.Enabled = true
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if len(c.Datasets) == 0 {
		errs = append(errs, errors.New("no datasets configured"))
	}
	for _, d := range c.Datasets {
		if d.Name == "" || d.File == "" {
			errs = append(errs, fmt.Errorf("dataset %q: name and file are required", d.Name))
		}
		if d.SeqHours <= 0 || d.HorizonHours <= 0 {
			errs = append(errs, fmt.Errorf("dataset %q: window hours must be positive", d.Name))
		}
	}

	p := c.Preprocess
	if p.Cadence <= 0 {
		errs = append(errs, errors.New("preprocess.cadence must be positive"))
	}
	for key, scope := range map[string]string{"preprocess": p.ClipScope, "clock": c.Clock.ClipScope} {
		switch scope {
		case ClipNone, ClipTrain, ClipSeries:
		default:
			errs = append(errs, fmt.Errorf("%s.clip_scope %q: want none, train or series", key, scope))
		}
	}
	switch window.SplitMode(p.SplitMode) {
	case window.SplitLastDay, window.SplitPercentage:
	default:
		errs = append(errs, fmt.Errorf("preprocess.split_mode %q: want last-day or percentage", p.SplitMode))
	}
	if _, err := window.FitterFor(p.Scaler); err != nil {
		errs = append(errs, err)
	}
	for _, col := range append([]string{p.TargetColumn}, p.FeatureColumns...) {
		if !model.Column(col).Known() {
			errs = append(errs, fmt.Errorf("unknown column %q", col))
		}
	}
	if len(p.FeatureColumns) == 0 {
		errs = append(errs, errors.New("preprocess.feature_columns is empty"))
	}

	t := c.Training
	for _, a := range t.Archs {
		if _, err := predictor.ParseArch(a); err != nil {
			errs = append(errs, err)
		}
	}
	if t.Epochs < 1 || t.BatchSize < 1 {
		errs = append(errs, errors.New("training.epochs and training.batch_size must be positive"))
	}
	if t.ValSplit < 0 || t.ValSplit >= 1 {
		errs = append(errs, fmt.Errorf("training.val_split %g out of [0, 1)", t.ValSplit))
	}

	if c.Clock.Cadence <= 0 {
		errs = append(errs, errors.New("clock.cadence must be positive"))
	}
	if c.Clock.TrainRatio <= 0 || c.Clock.TrainRatio >= 1 {
		errs = append(errs, fmt.Errorf("clock.train_ratio %g out of (0, 1)", c.Clock.TrainRatio))
	}
	if c.Clock.Lookback < 1 || c.Clock.Horizon < 1 {
		errs = append(errs, errors.New("clock.lookback and clock.horizon must be positive"))
	}

	if c.Storage.Enabled && (c.Storage.Endpoint == "" || c.Storage.Bucket == "") {
		errs = append(errs, errors.New("storage enabled without endpoint or bucket"))
	}
	return errors.Join(errs...)
}

// Archs parses Training.Archs.
func (c Config) Archs() ([]predictor.Arch, error) {
	out := make([]predictor.Arch, 0, len(c.Training.Archs))
	for _, s := range c.Training.Archs {
		a, err := predictor.ParseArch(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// FeatureColumns returns the configured feature columns.
func (c Config) FeatureColumns() []model.Column {
	out := make([]model.Column, len(c.Preprocess.FeatureColumns))
	for i, s := range c.Preprocess.FeatureColumns {
		out[i] = model.Column(s)
	}
	return out
}

// Dataset returns the dataset named name.
func (c Config) Dataset(name string) (Dataset, bool) {
	for _, d := range c.Datasets {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Dataset{}, false
}

// DatasetNames lists configured dataset names in order.
func (c Config) DatasetNames() []string {
	out := make([]string, len(c.Datasets))
	for i, d := range c.Datasets {
		out[i] = d.Name
	}
	return out
}
