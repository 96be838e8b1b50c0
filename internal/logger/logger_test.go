package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/orderlens/internal/config"
)

func TestBuildLevels(t *testing.T) {
	log, err := Build(config.Observability{LogLevel: "warn", LogEncoding: "json", ServiceName: "orderlens"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	log, err = Build(config.Observability{LogLevel: "bogus", LogEncoding: "console"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestBuildOff(t *testing.T) {
	log, err := Build(config.Observability{LogLevel: "OFF"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}
