// Package store keeps an in-memory index of the artifacts a training run
// leaves on disk: the metrics summary, prediction tables and plots.
package store

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Hrishi-524/DeepOrbit/internal/artifact"
)

// NormalAlpha is the Shapiro-Wilk level used when the summary lacks a
// normality column.
const NormalAlpha = 0.05

// Metric is one (dataset, model) row of the metrics summary.
type Metric struct {
	RMSE     float64  `json:"rmse"`
	MAE      float64  `json:"mae"`
	ShapiroP *float64 `json:"shapiro_p"`
	Normal   bool     `json:"normal"`
}

// Prediction is one row of a predictions table.
type Prediction struct {
	YTrue float64 `json:"y_true"`
	YPred float64 `json:"y_pred"`
	Error float64 `json:"error"`
}

// MarshalJSON writes non-finite error metrics as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RMSE     *float64 `json:"rmse"`
		MAE      *float64 `json:"mae"`
		ShapiroP *float64 `json:"shapiro_p"`
		Normal   bool     `json:"normal"`
	}{finite(m.RMSE), finite(m.MAE), m.ShapiroP, m.Normal})
}

// MarshalJSON writes non-finite values as null.
func (p Prediction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		YTrue *float64 `json:"y_true"`
		YPred *float64 `json:"y_pred"`
		Error *float64 `json:"error"`
	}{finite(p.YTrue), finite(p.YPred), finite(p.Error)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Store holds the parsed artifacts, indexed by dataset and model.
type Store struct {
	resultsDir string
	plotsDir   string

	mu          sync.RWMutex
	metrics     map[string]map[string]Metric       // dataset -> model
	predictions map[string]map[string][]Prediction // upper-cased dataset -> model
	plots       []string                           // sorted .png names
	plotsFound  bool
	refreshed   time.Time
}

func New(resultsDir, plotsDir string) *Store {
	return &Store{resultsDir: resultsDir, plotsDir: plotsDir}
}

// Refresh rereads the results and plots directories. Missing directories
// and a missing summary leave the corresponding index empty.
func (s *Store) Refresh() error {
	metrics, err := readSummary(filepath.Join(s.resultsDir, artifact.SummaryName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	predictions, err := readPredictions(s.resultsDir)
	if err != nil {
		return err
	}
	plots, found, err := listPlots(s.plotsDir)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = metrics
	s.predictions = predictions
	s.plots = plots
	s.plotsFound = found
	s.refreshed = time.Now()
	return nil
}

// Refreshed returns when the index was last rebuilt.
func (s *Store) Refreshed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshed
}

// Metrics returns the summary grouped by dataset and model, or false when
// no summary has been loaded.
func (s *Store) Metrics() (map[string]map[string]Metric, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.metrics == nil {
		return nil, false
	}
	out := make(map[string]map[string]Metric, len(s.metrics))
	for ds, models := range s.metrics {
		m := make(map[string]Metric, len(models))
		for name, v := range models {
			m[name] = v
		}
		out[ds] = m
	}
	return out, true
}

// Predictions returns up to limit leading rows of every model's predictions
// for dataset, matched case-insensitively. limit <= 0 means all rows.
func (s *Store) Predictions(dataset string, limit int) (map[string][]Prediction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	models, ok := s.predictions[strings.ToUpper(dataset)]
	if !ok || len(models) == 0 {
		return nil, false
	}
	out := make(map[string][]Prediction, len(models))
	for name, rows := range models {
		n := len(rows)
		if limit > 0 && limit < n {
			n = limit
		}
		out[name] = append([]Prediction(nil), rows[:n]...)
	}
	return out, true
}

// PlotPath resolves a plot file name to its path. Names containing a path
// separator or not present in the index are rejected.
func (s *Store) PlotPath(name string) (string, bool) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.SearchStrings(s.plots, name)
	if i == len(s.plots) || s.plots[i] != name {
		return "", false
	}
	return filepath.Join(s.plotsDir, name), true
}

// PlotGroups returns the plot names grouped by the first dataset whose name
// they contain, then "comparison", then "other". Every dataset gets a
// group, possibly empty. ok is false when the plots directory is missing.
func (s *Store) PlotGroups(datasets []string) (groups map[string][]string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.plotsFound {
		return nil, false
	}

	groups = map[string][]string{"comparison": {}, "other": {}}
	for _, ds := range datasets {
		groups[ds] = []string{}
	}
	for _, p := range s.plots {
		upper := strings.ToUpper(p)
		group := ""
		for _, ds := range datasets {
			if strings.Contains(upper, strings.ToUpper(ds)) {
				group = ds
				break
			}
		}
		if group == "" {
			group = "other"
			if strings.Contains(strings.ToLower(p), "comparison") {
				group = "comparison"
			}
		}
		groups[group] = append(groups[group], p)
	}
	return groups, true
}

func readSummary(path string) (map[string]map[string]Metric, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	col := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"Dataset", "RMSE (m)", "MAE (m)"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, required)
		}
	}
	field := func(rec []string, name string) (string, bool) {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}

	out := make(map[string]map[string]Metric)
	for _, rec := range records[1:] {
		ds, _ := field(rec, "Dataset")
		model, ok := field(rec, "Model")
		if !ok || model == "" {
			model = "LSTM"
		}
		rmseStr, _ := field(rec, "RMSE (m)")
		maeStr, _ := field(rec, "MAE (m)")
		rmse, err1 := parseMeters(rmseStr)
		mae, err2 := parseMeters(maeStr)
		if err1 != nil || err2 != nil {
			continue // skip malformed rows
		}

		m := Metric{RMSE: rmse, MAE: mae}
		if pStr, ok := field(rec, "Shapiro p"); ok {
			if p, err := strconv.ParseFloat(pStr, 64); err == nil {
				if m.ShapiroP = finite(p); m.ShapiroP != nil {
					m.Normal = p > NormalAlpha
				}
			}
		}
		if n, ok := field(rec, "Normal?"); ok && n != "" {
			m.Normal = strings.EqualFold(n, "YES")
		}

		if out[ds] == nil {
			out[ds] = make(map[string]Metric)
		}
		out[ds][model] = m
	}
	return out, nil
}

func parseMeters(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "m")), 64)
}

// readPredictions indexes every predictions_{model}_{dataset}.csv in dir.
func readPredictions(dir string) (map[string]map[string][]Prediction, error) {
	out := make(map[string]map[string][]Prediction)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "predictions_") || !strings.HasSuffix(name, ".csv") {
			continue
		}
		stem := strings.TrimSuffix(strings.TrimPrefix(name, "predictions_"), ".csv")
		i := strings.LastIndex(stem, "_")
		if i <= 0 || i == len(stem)-1 {
			continue
		}
		model, ds := stem[:i], strings.ToUpper(stem[i+1:])

		rows, err := readPredictionFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if out[ds] == nil {
			out[ds] = make(map[string][]Prediction)
		}
		out[ds][model] = rows
	}
	return out, nil
}

func readPredictionFile(path string) ([]Prediction, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	idx := map[string]int{}
	for i, h := range records[0] {
		idx[strings.TrimSpace(h)] = i
	}
	for _, h := range artifact.PredictionsHeader {
		if _, ok := idx[h]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, h)
		}
	}

	rows := make([]Prediction, 0, len(records)-1)
	for lineNum, rec := range records[1:] {
		var vals [3]float64
		for j, h := range artifact.PredictionsHeader {
			if idx[h] >= len(rec) {
				return nil, fmt.Errorf("%s line %d: missing %s", path, lineNum+2, h)
			}
			v, err := strconv.ParseFloat(rec[idx[h]], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, lineNum+2, err)
			}
			vals[j] = v
		}
		rows = append(rows, Prediction{YTrue: vals[0], YPred: vals[1], Error: vals[2]})
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return records, nil
}

func listPlots(dir string) ([]string, bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", dir, err)
	}
	var plots []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".png") {
			plots = append(plots, e.Name())
		}
	}
	sort.Strings(plots)
	return plots, true, nil
}
