package ingest

import (
	"io"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
)

// Parser reads telemetry from a source and returns readings.
type Parser interface {
	Parse(r io.Reader) ([]model.Reading, error)
}
