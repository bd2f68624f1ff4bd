package predictor

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// Checkpoint is the JSON-serializable model artifact.
type Checkpoint struct {
	Arch        string      `json:"arch"`
	SeqLength   int         `json:"seq_length"`
	Features    int         `json:"features"`
	OutputSteps int         `json:"output_steps"`
	Config      ModelConfig `json:"config"`
	Params      []ParamData `json:"params"`
}

// ParamData is one flattened parameter tensor.
type ParamData struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Save serializes architecture, shapes, config and weights to JSON.
func (m *Model) Save() ([]byte, error) {
	params := m.net.Params()
	cp := Checkpoint{
		Arch:        m.arch.String(),
		SeqLength:   m.seqLength,
		Features:    m.features,
		OutputSteps: m.outputSteps,
		Config:      m.cfg,
		Params:      make([]ParamData, len(params)),
	}
	for i, p := range params {
		cp.Params[i] = ParamData{Name: p.Name, Values: p.W}
	}
	return json.Marshal(cp)
}

// Load rebuilds a model from a checkpoint. seed drives dropout sampling
// for PredictStochastic.
func Load(data []byte, seed uint64) (*Model, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decoding checkpoint: %w", err)
	}
	arch, err := ParseArch(cp.Arch)
	if err != nil {
		return nil, err
	}

	m, err := Build(arch, cp.SeqLength, cp.Features, cp.OutputSteps, cp.Config, rand.New(rand.NewPCG(seed, 0)))
	if err != nil {
		return nil, err
	}
	params := m.net.Params()
	if len(params) != len(cp.Params) {
		return nil, fmt.Errorf("checkpoint has %d tensors, %s model has %d", len(cp.Params), arch, len(params))
	}
	for i, p := range params {
		src := cp.Params[i]
		if src.Name != p.Name || len(src.Values) != len(p.W) {
			return nil, fmt.Errorf("tensor %d: checkpoint %s[%d], model %s[%d]", i, src.Name, len(src.Values), p.Name, len(p.W))
		}
		copy(p.W, src.Values)
	}
	return m, nil
}
