package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected zapcore.Level
	}{
		{"debug", "debug", zapcore.DebugLevel},
		{"upper case with spaces", "  INFO ", zapcore.InfoLevel},
		{"warn", "warn", zapcore.WarnLevel},
		{"error", "error", zapcore.ErrorLevel},
		{"numeric", "-1", zapcore.DebugLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			level, err := ParseLevel(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, level)
		})
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("", "warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = NewLogger("debug", "warn")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger("nope", "info")
	require.Error(t, err)
}
