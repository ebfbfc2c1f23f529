package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"commerce-backend/internal/config"
)

func TestApplyLogging(t *testing.T) {
	logger, level, err := newLogger(config.Logging{Level: "info", Format: "json"})
	require.NoError(t, err)
	c := &Container{Logger: logger, logLevel: level}

	assert.False(t, c.logLevel.Enabled(zapcore.DebugLevel))

	require.NoError(t, c.ApplyLogging(config.Logging{Level: "debug"}))
	assert.True(t, c.logLevel.Enabled(zapcore.DebugLevel))

	require.NoError(t, c.ApplyLogging(config.Logging{Level: "error"}))
	assert.False(t, c.logLevel.Enabled(zapcore.InfoLevel))

	assert.Error(t, c.ApplyLogging(config.Logging{Level: "verbose"}),
		"an unknown level leaves the current one in place")
	assert.True(t, c.logLevel.Enabled(zapcore.ErrorLevel))
}
