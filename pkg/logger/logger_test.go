package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoggerAvailableBeforeInit(t *testing.T) {
	require.NotNil(t, Logger())
}

func TestInitAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		require.NoError(t, Init(level))
	}
}

func TestInitAcceptsMixedCaseLevels(t *testing.T) {
	require.NoError(t, Init(" DEBUG "))
	require.True(t, Logger().Core().Enabled(zapcore.DebugLevel))
}

func TestInitFallsBackOnUnknownLevel(t *testing.T) {
	require.NoError(t, Init("verbose"))
	require.NotNil(t, Logger())
}

func TestWithModuleReturnsChild(t *testing.T) {
	require.NoError(t, Init("info"))
	child := WithModule("invitations")
	require.NotNil(t, child)
}
