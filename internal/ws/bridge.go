package ws

import (
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/Hrishi-524/DeepOrbit/internal/pipeline"
)

// Bridge implements pipeline.Callback, broadcasts events to the WebSocket
// hub and keeps a status snapshot for clients that connect mid-run.
type Bridge struct {
	hub *Hub
	log *zap.SugaredLogger

	mu     sync.Mutex
	status StatusPayload
}

func NewBridge(hub *Hub, log *zap.SugaredLogger) *Bridge {
	return &Bridge{hub: hub, log: log}
}

// Status returns a copy of the current run snapshot.
func (b *Bridge) Status() StatusPayload {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.status
	if s.Current != nil {
		cur := *s.Current
		s.Current = &cur
	}
	s.Completed = slices.Clone(s.Completed)
	s.Failures = slices.Clone(s.Failures)
	if s.Completed == nil {
		s.Completed = []ResultPayload{}
	}
	if s.Failures == nil {
		s.Failures = []DatasetErrorPayload{}
	}
	return s
}

func (b *Bridge) OnRunStart(info pipeline.RunInfo) {
	b.mu.Lock()
	b.status = StatusPayload{RunID: info.RunID, Running: true}
	b.mu.Unlock()
	b.broadcast(TypeRunStart, RunStartFromPipeline(info))
}

func (b *Bridge) OnEpoch(ev pipeline.EpochEvent) {
	p := EpochFromPipeline(ev)
	b.mu.Lock()
	cur := p
	b.status.Current = &cur
	b.mu.Unlock()
	b.broadcast(TypeEpoch, p)
}

func (b *Bridge) OnResult(res pipeline.Result) {
	p := ResultFromPipeline(res)
	b.mu.Lock()
	b.status.Current = nil
	b.status.Completed = append(b.status.Completed, p)
	b.mu.Unlock()
	b.broadcast(TypeResult, p)
}

func (b *Bridge) OnDatasetError(err pipeline.DatasetError) {
	b.mu.Lock()
	p := DatasetErrorPayload{
		RunID:   b.status.RunID,
		Dataset: err.Dataset,
		Model:   err.Arch,
		Error:   err.Err.Error(),
	}
	b.status.Current = nil
	b.status.Failures = append(b.status.Failures, p)
	b.mu.Unlock()
	b.broadcast(TypeDatasetError, p)
}

func (b *Bridge) OnRunComplete(run pipeline.Run) {
	b.mu.Lock()
	b.status.Running = false
	b.status.Current = nil
	b.mu.Unlock()
	b.broadcast(TypeRunComplete, RunCompletePayload{
		RunID:      run.ID,
		Results:    len(run.Results),
		Failures:   len(run.Failures),
		ElapsedSec: run.Finished.Sub(run.Started).Seconds(),
	})
}

func (b *Bridge) broadcast(msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		b.log.Errorw("marshaling message", "type", msgType, "error", err)
		return
	}
	b.hub.Broadcast(msg)
}
