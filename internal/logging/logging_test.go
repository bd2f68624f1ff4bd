package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		log, err := New(lvl, true)
		require.NoError(t, err, lvl)
		assert.NotNil(t, log)
	}

	log, err := New("warn", false)
	require.NoError(t, err)
	assert.False(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Desugar().Core().Enabled(zapcore.ErrorLevel))

	_, err = New("loud", false)
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Infow("discarded", "key", 1)
	assert.False(t, log.Desugar().Core().Enabled(zapcore.ErrorLevel))
}
