package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	l, err := New("debug", "console")
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New("", "json")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = New("info", "xml")
	require.Error(t, err)

	_, err = New("loud", "json")
	require.Error(t, err)
}
