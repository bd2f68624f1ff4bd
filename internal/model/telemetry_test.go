package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestColumn(t *testing.T) {
	assert.Equal(t, Column("radial_error_m"), ColRadialError)
	assert.True(t, ColRadialRoll6.Known())
	assert.False(t, Column("bogus").Known())
}

func TestReading_Value(t *testing.T) {
	ts := time.Date(2024, 11, 21, 12, 0, 0, 0, time.UTC)
	r := Reading{
		Timestamp:  ts,
		XError:     1.5,
		YError:     -2.5,
		ZError:     0.25,
		ClockError: 3.75,
	}

	for _, tt := range []struct {
		col  Column
		want float64
	}{
		{ColXError, 1.5},
		{ColYError, -2.5},
		{ColZError, 0.25},
		{ColClockError, 3.75},
	} {
		v, ok := r.Value(tt.col)
		assert.True(t, ok, tt.col)
		assert.InDelta(t, tt.want, v, 1e-12, tt.col)
	}

	_, ok := r.Value(ColRadialError)
	assert.False(t, ok)
}

func TestErrors(t *testing.T) {
	err := fmt.Errorf("splitting: %w", &InsufficientDataError{What: "day split", Need: 2, Got: 1})
	assert.True(t, errors.Is(err, ErrInsufficientData))

	var ide *InsufficientDataError
	assert.True(t, errors.As(err, &ide))
	assert.Equal(t, 2, ide.Need)

	dfe := &DataFormatError{Line: 3, Column: TimeColumn, Err: errors.New("bad time")}
	assert.Contains(t, dfe.Error(), "line 3")
	assert.Contains(t, dfe.Error(), "utc_time")

	nie := &NumericInstabilityError{Dropped: 2, Total: 10}
	assert.Contains(t, nie.Error(), "2 of 10")
}
