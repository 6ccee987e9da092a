package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewHonoursLevel(t *testing.T) {
	log, err := New(Options{Level: "warn", Encoding: "json"})
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewDevelopmentConsole(t *testing.T) {
	log, err := New(Options{Development: true, Level: "debug", Encoding: "console"})
	require.NoError(t, err)

	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(Options{Level: "loud", Encoding: "json"})
	assert.Error(t, err)

	_, err = New(Options{Level: "info", Encoding: "xml"})
	assert.Error(t, err)
}
