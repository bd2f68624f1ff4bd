package ws

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hrishi-524/DeepOrbit/internal/diagnostics"
	"github.com/Hrishi-524/DeepOrbit/internal/pipeline"
	"github.com/Hrishi-524/DeepOrbit/internal/predictor"
)

var startTime = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestBridge() (*Bridge, *Client) {
	hub := NewHub(zap.NewNop().Sugar())
	client := newClient(hub, nil)
	hub.Register(client)
	bridge := NewBridge(hub, zap.NewNop().Sugar())
	return bridge, client
}

func receiveEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	msg := <-c.send
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

func TestBridge_OnRunStart(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnRunStart(pipeline.RunInfo{
		RunID:    "run-1",
		Datasets: []string{"GEO", "MEO1"},
		Archs:    []string{"lstm", "transformer"},
		Started:  startTime,
	})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeRunStart, env.Type)

	var p RunStartPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "run-1", p.RunID)
	assert.Equal(t, []string{"GEO", "MEO1"}, p.Datasets)
	assert.Equal(t, []string{"lstm", "transformer"}, p.Models)
	assert.Equal(t, "2024-09-01T12:00:00Z", p.Started)

	s := bridge.Status()
	assert.True(t, s.Running)
	assert.Equal(t, "run-1", s.RunID)
}

func TestBridge_OnEpoch(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnEpoch(pipeline.EpochEvent{
		RunID:   "run-1",
		Dataset: "GEO",
		Arch:    predictor.ArchAttention,
		Epochs:  100,
		EpochStats: predictor.EpochStats{
			Epoch:        3,
			TrainLoss:    0.25,
			ValLoss:      math.NaN(),
			LearningRate: 1e-3,
		},
	})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeEpoch, env.Type)

	var p EpochPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "Transformer", p.Model)
	assert.Equal(t, 3, p.Epoch)
	assert.Equal(t, 100, p.Epochs)
	require.NotNil(t, p.TrainLoss)
	assert.InDelta(t, 0.25, *p.TrainLoss, 1e-12)
	assert.Nil(t, p.ValLoss)
	assert.InDelta(t, 1e-3, p.LearningRate, 1e-15)

	cur := bridge.Status().Current
	require.NotNil(t, cur)
	assert.Equal(t, 3, cur.Epoch)
}

func TestBridge_OnResult(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnResult(pipeline.Result{
		RunID:     "run-1",
		Dataset:   "MEO2",
		Arch:      predictor.ArchProbabilistic,
		RMSE:      1.5,
		MAE:       0.75,
		Residuals: diagnostics.Report{ShapiroP: 0.2, Normal: true},
		History:   predictor.History{TrainLoss: []float64{1, 0.5}},
		Uncertainty: &pipeline.Uncertainty{
			Iterations: 50,
			MeanStd:    0.1,
		},
		Notes: []string{"only 8 training windows"},
	})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeResult, env.Type)

	var p ResultPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "MEO2", p.Dataset)
	assert.Equal(t, "Probabilistic", p.Model)
	assert.InDelta(t, 1.5, *p.RMSE, 1e-12)
	assert.InDelta(t, 0.75, *p.MAE, 1e-12)
	assert.InDelta(t, 0.2, *p.ShapiroP, 1e-12)
	assert.True(t, p.Normal)
	assert.Equal(t, 2, p.Epochs)
	assert.InDelta(t, 0.1, *p.MeanStd, 1e-12)
	assert.Equal(t, []string{"only 8 training windows"}, p.Notes)

	assert.Len(t, bridge.Status().Completed, 1)
}

func TestBridge_OnDatasetError(t *testing.T) {
	bridge, client := newTestBridge()
	bridge.OnRunStart(pipeline.RunInfo{RunID: "run-1", Started: startTime})
	receiveEnvelope(t, client)

	bridge.OnDatasetError(pipeline.DatasetError{Dataset: "MEO1", Arch: "lstm", Err: errors.New("too short")})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeDatasetError, env.Type)

	var p DatasetErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "run-1", p.RunID)
	assert.Equal(t, "MEO1", p.Dataset)
	assert.Equal(t, "lstm", p.Model)
	assert.Equal(t, "too short", p.Error)
}

func TestBridge_OnRunComplete(t *testing.T) {
	bridge, client := newTestBridge()
	bridge.OnRunStart(pipeline.RunInfo{RunID: "run-1", Started: startTime})
	receiveEnvelope(t, client)

	bridge.OnRunComplete(pipeline.Run{
		ID:       "run-1",
		Started:  startTime,
		Finished: startTime.Add(90 * time.Second),
		Results:  make([]pipeline.Result, 3),
		Failures: []pipeline.DatasetError{{Dataset: "MEO2", Err: errors.New("x")}},
	})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeRunComplete, env.Type)

	var p RunCompletePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, 3, p.Results)
	assert.Equal(t, 1, p.Failures)
	assert.InDelta(t, 90.0, p.ElapsedSec, 1e-9)

	assert.False(t, bridge.Status().Running)
}

func TestBridge_StatusIsSnapshot(t *testing.T) {
	bridge, _ := newTestBridge()

	s := bridge.Status()
	assert.NotNil(t, s.Completed)
	assert.NotNil(t, s.Failures)
	assert.False(t, s.Running)

	bridge.OnResult(pipeline.Result{Dataset: "GEO", Arch: predictor.ArchRecurrent})
	s = bridge.Status()
	s.Completed[0].Dataset = "changed"
	assert.Equal(t, "GEO", bridge.Status().Completed[0].Dataset)
}

func TestBridge_RunStartResetsStatus(t *testing.T) {
	bridge, _ := newTestBridge()
	bridge.OnResult(pipeline.Result{Dataset: "GEO", Arch: predictor.ArchRecurrent})
	bridge.OnRunStart(pipeline.RunInfo{RunID: "run-2", Started: startTime})

	s := bridge.Status()
	assert.Equal(t, "run-2", s.RunID)
	assert.Empty(t, s.Completed)
}
