package predictor

import (
	"fmt"
	"strings"
)

// Arch identifies a forecasting architecture.
type Arch int

const (
	ArchRecurrent Arch = iota
	ArchAttention
	ArchProbabilistic
)

// AllArchs lists every architecture in training order.
var AllArchs = []Arch{ArchRecurrent, ArchAttention, ArchProbabilistic}

var archNames = map[Arch][2]string{
	ArchRecurrent:     {"lstm", "LSTM"},
	ArchAttention:     {"transformer", "Transformer"},
	ArchProbabilistic: {"probabilistic", "Probabilistic"},
}

// String returns the lowercase identifier used in file names.
func (a Arch) String() string {
	if n, ok := archNames[a]; ok {
		return n[0]
	}
	return fmt.Sprintf("arch(%d)", int(a))
}

// DisplayName returns the name used in reports and the summary CSV.
func (a Arch) DisplayName() string {
	if n, ok := archNames[a]; ok {
		return n[1]
	}
	return a.String()
}

// ParseArch accepts either form of an architecture name, case-insensitively.
func ParseArch(s string) (Arch, error) {
	for a, n := range archNames {
		if strings.EqualFold(s, n[0]) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown architecture %q", s)
}
