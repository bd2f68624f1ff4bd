package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hrishi-524/DeepOrbit/internal/config"
	"github.com/Hrishi-524/DeepOrbit/internal/diagnostics"
	"github.com/Hrishi-524/DeepOrbit/internal/pipeline"
	"github.com/Hrishi-524/DeepOrbit/internal/predictor"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

type memSink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemSink() *memSink { return &memSink{files: make(map[string][]byte)} }

func (m *memSink) Put(_ context.Context, kind Kind, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[string(kind)+"/"+name] = data
	return nil
}

type failingSink struct{}

func (failingSink) Put(context.Context, Kind, string, []byte) error { return errors.New("disk full") }

func syntheticResult(t *testing.T, dataset string, arch predictor.Arch, n int) pipeline.Result {
	t.Helper()
	yTrue := make([]float64, n)
	yPred := make([]float64, n)
	for i := range n {
		yTrue[i] = 2 + math.Sin(float64(i)/5)
		yPred[i] = yTrue[i] + 0.1*math.Cos(float64(i)*1.7)
	}
	rep, err := diagnostics.Analyze(yTrue, yPred)
	require.NoError(t, err)
	return pipeline.Result{
		RunID:     "run-1",
		Dataset:   dataset,
		Arch:      arch,
		YTrue:     yTrue,
		YPred:     yPred,
		RMSE:      diagnostics.RMSE(yTrue, yPred),
		MAE:       diagnostics.MAE(yTrue, yPred),
		Residuals: rep,
		History: predictor.History{
			TrainLoss:    []float64{1, 0.5, 0.3},
			ValLoss:      []float64{1.2, 0.6, 0.4},
			LearningRate: []float64{1e-3, 1e-3, 1e-3},
			BestEpoch:    3,
			BestLoss:     0.4,
		},
		Checkpoint: []byte(`{"arch":0}`),
	}
}

func TestEncodePredictions(t *testing.T) {
	data, err := EncodePredictions([]float64{1.5, 2}, []float64{1, 2.25})
	require.NoError(t, err)
	assert.Equal(t, "y_true,y_pred,error\n1.5,1,0.5\n2,2.25,-0.25\n", string(data))

	_, err = EncodePredictions([]float64{1}, nil)
	assert.Error(t, err)
}

func TestEncodeSummary(t *testing.T) {
	r1 := pipeline.Result{Dataset: "GEO", Arch: predictor.ArchRecurrent, RMSE: 1.23456, MAE: 0.5}
	r1.Residuals.ShapiroP = 0.03125
	r2 := pipeline.Result{Dataset: "MEO2", Arch: predictor.ArchProbabilistic, RMSE: 2, MAE: 1}
	r2.Residuals.ShapiroP = 0.5
	r2.Residuals.Normal = true

	data, err := EncodeSummary([]pipeline.Result{r1, r2})
	require.NoError(t, err)
	assert.Equal(t,
		"Dataset,Model,RMSE (m),MAE (m),Shapiro p,Normal?\n"+
			"GEO,LSTM,1.2346,0.5000,0.0312,NO\n"+
			"MEO2,Probabilistic,2.0000,1.0000,0.5000,YES\n",
		string(data))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "predictions_LSTM_GEO.csv", PredictionsName("LSTM", "GEO"))
	assert.Equal(t, "Transformer_MEO1.json", CheckpointName("Transformer", "MEO1"))
	assert.Equal(t, "comparison_MEO2.png", ComparisonName("MEO2"))
	assert.Equal(t, "residuals_Probabilistic_GEO.png", ResidualsName("Probabilistic", "GEO"))
}

func TestManifest(t *testing.T) {
	cfg := config.Default()
	res := syntheticResult(t, "GEO", predictor.ArchProbabilistic, 50)
	res.Residuals.ShapiroP = math.NaN()
	res.Uncertainty = &pipeline.Uncertainty{Iterations: 50, MeanStd: 0.25}
	run := pipeline.Run{
		ID:       "run-1",
		Started:  time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		Finished: time.Date(2024, 9, 1, 1, 0, 0, 0, time.UTC),
		Results:  []pipeline.Result{res},
		Failures: []pipeline.DatasetError{{Dataset: "MEO2", Err: errors.New("too short")}},
	}

	m, err := NewManifest(cfg, run)
	require.NoError(t, err)
	data, err := m.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	pairs := decoded["pairs"].([]any)
	require.Len(t, pairs, 1)
	pair := pairs[0].(map[string]any)
	assert.Equal(t, "Probabilistic", pair["model"])
	assert.Nil(t, pair["shapiro_p"])
	assert.InDelta(t, 0.25, pair["mc_mean_std_m"], 1e-12)
	assert.InDelta(t, res.RMSE, pair["rmse_m"], 1e-12)
	failures := decoded["failures"].([]any)
	assert.Equal(t, "too short", failures[0].(map[string]any)["error"])
}

func TestConfigDigest(t *testing.T) {
	a, err := ConfigDigest(config.Default())
	require.NoError(t, err)
	assert.Len(t, a, 64)

	withSecret := config.Default()
	withSecret.Storage.SecretKey = "hunter2"
	b, err := ConfigDigest(withSecret)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	changed := config.Default()
	changed.Training.Epochs = 5
	c, err := ConfigDigest(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestLocalSink(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalSink(filepath.Join(dir, "results"), filepath.Join(dir, "models"), filepath.Join(dir, "plots"))

	require.NoError(t, s.Put(context.Background(), KindModel, "LSTM_GEO.json", []byte("{}")))
	data, err := os.ReadFile(filepath.Join(dir, "models", "LSTM_GEO.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
	assert.Equal(t, filepath.Join(dir, "plots", "a.png"), s.Path(KindPlot, "a.png"))

	assert.Error(t, s.Put(context.Background(), Kind("logs"), "x", nil))
}

func TestMultiSink(t *testing.T) {
	mem := newMemSink()
	err := MultiSink{failingSink{}, mem}.Put(context.Background(), KindResult, "a.csv", []byte("x"))
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, []byte("x"), mem.files["results/a.csv"])
}

// fakeS3 answers the subset of the S3 API the sink uses.
type fakeS3 struct {
	mu   sync.Mutex
	puts map[string]string // path -> content type
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	switch {
	case r.Method == http.MethodGet && r.URL.Query().Has("location"):
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
			`<LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
	case r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		f.mu.Lock()
		f.puts[r.URL.Path] = r.Header.Get("Content-Type")
		f.mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestMinIOSink(t *testing.T) {
	fake := &fakeS3{puts: make(map[string]string)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	sink, err := NewMinIOSink(ctx, config.Storage{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "deeporbit",
		Prefix:    "runs",
	})
	require.NoError(t, err)
	assert.Equal(t, "runs/results/metrics_summary.csv", sink.Key(KindResult, SummaryName))

	require.NoError(t, sink.Put(ctx, KindResult, SummaryName, []byte("Dataset,Model\n")))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "text/csv", fake.puts["/deeporbit/runs/results/metrics_summary.csv"])
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", contentType("comparison_GEO.png"))
	assert.Equal(t, "application/json", contentType("LSTM_GEO.json"))
	assert.Equal(t, "application/octet-stream", contentType("notes.txt"))
}

func TestWriter_WriteRun(t *testing.T) {
	mem := newMemSink()
	w := NewWriter(mem, zap.NewNop().Sugar())

	run := pipeline.Run{
		ID: "run-1",
		Results: []pipeline.Result{
			syntheticResult(t, "GEO", predictor.ArchRecurrent, 120),
			syntheticResult(t, "GEO", predictor.ArchAttention, 120),
		},
	}
	require.NoError(t, w.WriteRun(context.Background(), config.Default(), run))

	for _, name := range []string{
		"results/predictions_LSTM_GEO.csv",
		"results/predictions_Transformer_GEO.csv",
		"models/LSTM_GEO.json",
		"results/metrics_summary.csv",
		"results/run_manifest.json",
	} {
		assert.Contains(t, mem.files, name)
	}
	for _, name := range []string{
		"plots/comparison_GEO.png",
		"plots/residuals_LSTM_GEO.png",
		"plots/residuals_Transformer_GEO.png",
	} {
		require.Contains(t, mem.files, name)
		assert.True(t, bytes.HasPrefix(mem.files[name], pngMagic), name)
	}

	lines := strings.Split(strings.TrimSpace(string(mem.files["results/predictions_LSTM_GEO.csv"])), "\n")
	assert.Len(t, lines, 121)
}

func TestWriter_CollectsSinkErrors(t *testing.T) {
	w := NewWriter(failingSink{}, zap.NewNop().Sugar())
	run := pipeline.Run{ID: "r", Results: []pipeline.Result{syntheticResult(t, "GEO", predictor.ArchRecurrent, 20)}}
	assert.ErrorContains(t, w.WriteRun(context.Background(), config.Default(), run), "disk full")
}

func TestWriter_WriteClock(t *testing.T) {
	res := syntheticResult(t, "GEO", predictor.ArchRecurrent, 48)
	times := make([]time.Time, len(res.YTrue))
	std := make([]float64, len(res.YTrue))
	for i := range times {
		times[i] = time.Date(2024, 9, 1, i, 0, 0, 0, time.UTC)
		std[i] = 0.05
	}
	res.Uncertainty = &pipeline.Uncertainty{Iterations: 50, Mean: res.YPred, Std: std, MeanStd: 0.05}
	cr := pipeline.ClockResult{Result: res, Times: times}

	mem := newMemSink()
	require.NoError(t, NewWriter(mem, zap.NewNop().Sugar()).WriteClock(context.Background(), cr))

	assert.Contains(t, mem.files, "results/predictions_clock_GEO.csv")
	assert.Contains(t, mem.files, "models/clock_GEO.json")
	for _, name := range []string{ClockPredictionName, ClockLossName, ClockUncertaintyName} {
		require.Contains(t, mem.files, "plots/"+name)
		assert.True(t, bytes.HasPrefix(mem.files["plots/"+name], pngMagic), name)
	}
}

func TestResidualsPNG_ConstantResiduals(t *testing.T) {
	r := pipeline.Result{
		Dataset: "GEO",
		Arch:    predictor.ArchRecurrent,
		YTrue:   []float64{1, 2, 3, 4},
		YPred:   []float64{0, 1, 2, 3},
	}
	data, err := ResidualsPNG(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestComparisonPNG_NoResults(t *testing.T) {
	_, err := ComparisonPNG("GEO", nil)
	assert.Error(t, err)
}

func TestNewSink(t *testing.T) {
	cfg := config.Default()
	cfg.ResultsDir = t.TempDir()
	s, err := NewSink(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalSink{}, s)

	fake := &fakeS3{puts: make(map[string]string)}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	cfg.Storage.Enabled = true
	cfg.Storage.Endpoint = strings.TrimPrefix(srv.URL, "http://")
	s, err = NewSink(context.Background(), cfg)
	require.NoError(t, err)
	require.IsType(t, MultiSink{}, s)

	require.NoError(t, s.Put(context.Background(), KindResult, "a.csv", []byte("x")))
	data, err := os.ReadFile(filepath.Join(cfg.ResultsDir, "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
	fake.mu.Lock()
	assert.Contains(t, fake.puts, "/deeporbit/runs/results/a.csv")
	fake.mu.Unlock()
}
