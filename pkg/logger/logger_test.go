package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitializeLevels(t *testing.T) {
	t.Cleanup(func() { Log = nil })

	require.NoError(t, Initialize("warn"))
	require.NotNil(t, Log)
	assert.False(t, Log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Log.Core().Enabled(zapcore.WarnLevel))

	assert.Error(t, Initialize("verbose"))
}

func TestHelpersAreNilSafe(t *testing.T) {
	Log = nil
	assert.NotPanics(t, func() {
		Info("x")
		Warn("x")
		Error("x")
		Debug("x")
	})
	assert.NotNil(t, Component("api"))
	assert.NoError(t, Sync())
}
