package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Hrishi-524/DeepOrbit/internal/config"
	"github.com/Hrishi-524/DeepOrbit/internal/pipeline"
)

// File names.
const (
	SummaryName  = "metrics_summary.csv"
	ManifestName = "run_manifest.json"
)

// SummaryHeader is the header row of the metrics summary.
var SummaryHeader = []string{"Dataset", "Model", "RMSE (m)", "MAE (m)", "Shapiro p", "Normal?"}

// PredictionsHeader is the header row of a predictions file.
var PredictionsHeader = []string{"y_true", "y_pred", "error"}

// PredictionsName is the file name of the predictions of model on dataset.
func PredictionsName(model, dataset string) string {
	return fmt.Sprintf("predictions_%s_%s.csv", model, dataset)
}

// CheckpointName is the file name of a trained model.
func CheckpointName(model, dataset string) string {
	return fmt.Sprintf("%s_%s.json", model, dataset)
}

// ComparisonName is the file name of the per-dataset comparison plot.
func ComparisonName(dataset string) string {
	return fmt.Sprintf("comparison_%s.png", dataset)
}

// ResidualsName is the file name of a residual diagnostics plot.
func ResidualsName(model, dataset string) string {
	return fmt.Sprintf("residuals_%s_%s.png", model, dataset)
}

// EncodePredictions writes y_true, y_pred and their difference, one row per
// forecast value.
func EncodePredictions(yTrue, yPred []float64) ([]byte, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("%d targets but %d predictions", len(yTrue), len(yPred))
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(PredictionsHeader); err != nil {
		return nil, err
	}
	for i := range yTrue {
		rec := []string{
			formatFloat(yTrue[i]),
			formatFloat(yPred[i]),
			formatFloat(yTrue[i] - yPred[i]),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// EncodeSummary writes one row per result with four-decimal metrics.
func EncodeSummary(results []pipeline.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(SummaryHeader); err != nil {
		return nil, err
	}
	for _, r := range results {
		normal := "NO"
		if r.Residuals.Normal {
			normal = "YES"
		}
		rec := []string{
			r.Dataset,
			r.Arch.DisplayName(),
			fmt.Sprintf("%.4f", r.RMSE),
			fmt.Sprintf("%.4f", r.MAE),
			fmt.Sprintf("%.4f", r.Residuals.ShapiroP),
			normal,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Manifest describes a run: its identity, the configuration digest and the
// metrics of every evaluated pair. Undefined metrics are null.
type Manifest struct {
	RunID        string           `json:"run_id"`
	Started      time.Time        `json:"started"`
	Finished     time.Time        `json:"finished"`
	ConfigDigest string           `json:"config_digest"`
	Pairs        []PairSummary    `json:"pairs"`
	Failures     []FailureSummary `json:"failures,omitempty"`
}

// PairSummary is the manifest entry of one (dataset, model) pair.
type PairSummary struct {
	Dataset      string   `json:"dataset"`
	Model        string   `json:"model"`
	RMSE         *float64 `json:"rmse_m"`
	MAE          *float64 `json:"mae_m"`
	ShapiroP     *float64 `json:"shapiro_p"`
	Normal       bool     `json:"normal"`
	Skewness     *float64 `json:"skewness"`
	Kurtosis     *float64 `json:"excess_kurtosis"`
	Epochs       int      `json:"epochs"`
	BestEpoch    int      `json:"best_epoch"`
	StoppedEarly bool     `json:"stopped_early"`
	TrainWindows int      `json:"train_windows"`
	TestWindows  int      `json:"test_windows"`
	MeanStd      *float64 `json:"mc_mean_std_m,omitempty"`
	Notes        []string `json:"notes,omitempty"`
}

// FailureSummary is the manifest entry of a skipped dataset or model.
type FailureSummary struct {
	Dataset string `json:"dataset"`
	Model   string `json:"model,omitempty"`
	Error   string `json:"error"`
}

// NewManifest summarizes run under the digest of cfg.
func NewManifest(cfg config.Config, run pipeline.Run) (Manifest, error) {
	digest, err := ConfigDigest(cfg)
	if err != nil {
		return Manifest{}, err
	}
	m := Manifest{
		RunID:        run.ID,
		Started:      run.Started,
		Finished:     run.Finished,
		ConfigDigest: digest,
		Pairs:        make([]PairSummary, 0, len(run.Results)),
	}
	for _, r := range run.Results {
		p := PairSummary{
			Dataset:      r.Dataset,
			Model:        r.Arch.DisplayName(),
			RMSE:         finiteOrNil(r.RMSE),
			MAE:          finiteOrNil(r.MAE),
			ShapiroP:     finiteOrNil(r.Residuals.ShapiroP),
			Normal:       r.Residuals.Normal,
			Skewness:     finiteOrNil(r.Residuals.Skewness),
			Kurtosis:     finiteOrNil(r.Residuals.Kurtosis),
			Epochs:       r.History.Epochs(),
			BestEpoch:    r.History.BestEpoch,
			StoppedEarly: r.History.StoppedEarly,
			TrainWindows: r.TrainWindows,
			TestWindows:  r.TestWindows,
			Notes:        r.Notes,
		}
		if r.Uncertainty != nil {
			p.MeanStd = finiteOrNil(r.Uncertainty.MeanStd)
		}
		m.Pairs = append(m.Pairs, p)
	}
	for _, f := range run.Failures {
		m.Failures = append(m.Failures, FailureSummary{Dataset: f.Dataset, Model: f.Arch, Error: f.Err.Error()})
	}
	return m, nil
}

// Encode returns the indented JSON form of m.
func (m Manifest) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ConfigDigest is the SHA-256 of the YAML encoding of cfg with storage
// credentials blanked.
func ConfigDigest(cfg config.Config) (string, error) {
	cfg.Storage.AccessKey = ""
	cfg.Storage.SecretKey = ""
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
