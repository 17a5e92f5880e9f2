package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestTraceLevel(t *testing.T) {
	assert.Less(t, TraceLevel, zapcore.DebugLevel)
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]zapcore.Level{
		"trace":  TraceLevel,
		"TRACE":  TraceLevel,
		"debug":  zapcore.DebugLevel,
		" Info ": zapcore.InfoLevel,
		"":       zapcore.InfoLevel,
		"warn":   zapcore.WarnLevel,
		"ERROR":  zapcore.ErrorLevel,
		"dpanic": zapcore.DPanicLevel,
	}
	for in, want := range tests {
		got, err := LevelFromString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	got, err := LevelFromString("verbose")
	assert.Error(t, err)
	assert.Equal(t, zapcore.InfoLevel, got)
}
