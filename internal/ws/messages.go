package ws

import (
	"encoding/json"
	"math"
	"time"

	"github.com/Hrishi-524/DeepOrbit/internal/pipeline"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants
const (
	// Client -> Server
	TypeStatusGet = "status:get"

	// Server -> Client
	TypeRunStart     = "run:start"
	TypeRunStatus    = "run:status"
	TypeRunComplete  = "run:complete"
	TypeEpoch        = "train:epoch"
	TypeResult       = "train:result"
	TypeDatasetError = "dataset:error"
)

type RunStartPayload struct {
	RunID    string   `json:"run_id"`
	Datasets []string `json:"datasets"`
	Models   []string `json:"models"`
	Started  string   `json:"started"`
}

// Loss and metric values are null when not finite.

type EpochPayload struct {
	RunID        string   `json:"run_id"`
	Dataset      string   `json:"dataset"`
	Model        string   `json:"model"`
	Epoch        int      `json:"epoch"`
	Epochs       int      `json:"epochs"`
	TrainLoss    *float64 `json:"train_loss"`
	ValLoss      *float64 `json:"val_loss"`
	LearningRate float64  `json:"lr"`
}

type ResultPayload struct {
	RunID    string   `json:"run_id"`
	Dataset  string   `json:"dataset"`
	Model    string   `json:"model"`
	RMSE     *float64 `json:"rmse_m"`
	MAE      *float64 `json:"mae_m"`
	ShapiroP *float64 `json:"shapiro_p"`
	Normal   bool     `json:"normal"`
	Epochs   int      `json:"epochs"`
	MeanStd  *float64 `json:"mc_mean_std_m,omitempty"`
	Notes    []string `json:"notes,omitempty"`
}

type DatasetErrorPayload struct {
	RunID   string `json:"run_id"`
	Dataset string `json:"dataset"`
	Model   string `json:"model,omitempty"`
	Error   string `json:"error"`
}

type RunCompletePayload struct {
	RunID      string  `json:"run_id"`
	Results    int     `json:"results"`
	Failures   int     `json:"failures"`
	ElapsedSec float64 `json:"elapsed_sec"`
}

// StatusPayload is the snapshot sent to clients joining mid-run.
type StatusPayload struct {
	RunID     string                `json:"run_id,omitempty"`
	Running   bool                  `json:"running"`
	Current   *EpochPayload         `json:"current,omitempty"`
	Completed []ResultPayload       `json:"completed"`
	Failures  []DatasetErrorPayload `json:"failures"`
}

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

func RunStartFromPipeline(info pipeline.RunInfo) RunStartPayload {
	return RunStartPayload{
		RunID:    info.RunID,
		Datasets: info.Datasets,
		Models:   info.Archs,
		Started:  info.Started.UTC().Format(time.RFC3339),
	}
}

func EpochFromPipeline(ev pipeline.EpochEvent) EpochPayload {
	return EpochPayload{
		RunID:        ev.RunID,
		Dataset:      ev.Dataset,
		Model:        ev.Arch.DisplayName(),
		Epoch:        ev.Epoch,
		Epochs:       ev.Epochs,
		TrainLoss:    finite(ev.TrainLoss),
		ValLoss:      finite(ev.ValLoss),
		LearningRate: ev.LearningRate,
	}
}

func ResultFromPipeline(r pipeline.Result) ResultPayload {
	p := ResultPayload{
		RunID:    r.RunID,
		Dataset:  r.Dataset,
		Model:    r.Arch.DisplayName(),
		RMSE:     finite(r.RMSE),
		MAE:      finite(r.MAE),
		ShapiroP: finite(r.Residuals.ShapiroP),
		Normal:   r.Residuals.Normal,
		Epochs:   r.History.Epochs(),
		Notes:    r.Notes,
	}
	if r.Uncertainty != nil {
		p.MeanStd = finite(r.Uncertainty.MeanStd)
	}
	return p
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
