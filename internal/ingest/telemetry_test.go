package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hrishi-524/DeepOrbit/internal/model"
)

func TestTelemetryParser_Parse(t *testing.T) {
	input := `utc_time,x_error (m),y_error (m),z_error (m),satclockerror (m)
2024-09-01 00:15:00,0.5,-1.0,2.0,3.5
2024-09-01 00:00:00,0.4,-1.2,0.8,2.9`

	parser := &TelemetryParser{}
	readings, err := parser.Parse(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, readings, 2)

	// Sorted by time.
	assert.Equal(t, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), readings[0].Timestamp)
	assert.InDelta(t, 0.4, readings[0].XError, 0.001)
	assert.InDelta(t, -1.2, readings[0].YError, 0.001)
	assert.InDelta(t, 0.8, readings[0].ZError, 0.001)
	assert.InDelta(t, 2.9, readings[0].ClockError, 0.001)

	assert.Equal(t, time.Date(2024, 9, 1, 0, 15, 0, 0, time.UTC), readings[1].Timestamp)
	assert.InDelta(t, 3.5, readings[1].ClockError, 0.001)
}

func TestTelemetryParser_ColumnOrderIsFree(t *testing.T) {
	input := `satclockerror (m),z_error (m),utc_time,y_error (m),x_error (m),extra
1,2,2024-09-01T00:00:00Z,3,4,ignored`

	readings, err := (&TelemetryParser{}).Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.InDelta(t, 4.0, readings[0].XError, 1e-12)
	assert.InDelta(t, 3.0, readings[0].YError, 1e-12)
	assert.InDelta(t, 2.0, readings[0].ZError, 1e-12)
	assert.InDelta(t, 1.0, readings[0].ClockError, 1e-12)
}

func TestTelemetryParser_SkipsUnparseableValues(t *testing.T) {
	input := `utc_time,x_error (m),y_error (m),z_error (m),satclockerror (m)
2024-09-01 00:00:00,0.4,-1.2,0.8,2.9
2024-09-01 00:15:00,n/a,-1.2,0.8,2.9
2024-09-01 00:30:00,0.6,-1.1,0.7,3.1`

	readings, err := (&TelemetryParser{}).Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.InDelta(t, 0.6, readings[1].XError, 0.001)
}

func TestTelemetryParser_MissingTimeColumn(t *testing.T) {
	input := `time,x_error (m),y_error (m),z_error (m),satclockerror (m)
2024-09-01 00:00:00,0.4,-1.2,0.8,2.9`

	_, err := (&TelemetryParser{}).Parse(strings.NewReader(input))
	require.Error(t, err)

	var dfe *model.DataFormatError
	require.True(t, errors.As(err, &dfe))
	assert.Equal(t, model.TimeColumn, dfe.Column)
}

func TestTelemetryParser_MissingErrorColumn(t *testing.T) {
	input := `utc_time,x_error (m),y_error (m),satclockerror (m)
2024-09-01 00:00:00,0.4,-1.2,2.9`

	_, err := (&TelemetryParser{}).Parse(strings.NewReader(input))

	var dfe *model.DataFormatError
	require.True(t, errors.As(err, &dfe))
	assert.Equal(t, string(model.ColZError), dfe.Column)
}

func TestTelemetryParser_UnparseableTimestamp(t *testing.T) {
	input := `utc_time,x_error (m),y_error (m),z_error (m),satclockerror (m)
2024-09-01 00:00:00,0.4,-1.2,0.8,2.9
yesterday,0.4,-1.2,0.8,2.9`

	_, err := (&TelemetryParser{}).Parse(strings.NewReader(input))

	var dfe *model.DataFormatError
	require.True(t, errors.As(err, &dfe))
	assert.Equal(t, 3, dfe.Line)
}

func TestTelemetryParser_EmptyInput(t *testing.T) {
	_, err := (&TelemetryParser{}).Parse(strings.NewReader(""))

	var dfe *model.DataFormatError
	assert.True(t, errors.As(err, &dfe))
}

func TestTelemetryParser_ParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DATA_GEO_Train.csv")
	content := "utc_time,x_error (m),y_error (m),z_error (m),satclockerror (m)\n" +
		"2024-09-01 00:00:00,1,2,2,0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	readings, err := (&TelemetryParser{}).ParseFile(path)
	require.NoError(t, err)
	require.Len(t, readings, 1)

	_, err = (&TelemetryParser{}).ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-09-01T10:30:00Z", time.Date(2024, 9, 1, 10, 30, 0, 0, time.UTC)},
		{"2024-09-01 10:30:00", time.Date(2024, 9, 1, 10, 30, 0, 0, time.UTC)},
		{"2024-09-01 10:30", time.Date(2024, 9, 1, 10, 30, 0, 0, time.UTC)},
		{"2024-09-01T12:30:00+02:00", time.Date(2024, 9, 1, 10, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseTimestamp("")
	assert.Error(t, err)
}
