package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_FieldsAndErrors(t *testing.T) {
	// Given a logger recording into an observer
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	// When logging with inherited fields and an error
	log.WithFields(map[string]any{"task": "smoking"}).
		WithError(errors.New("boom")).
		Warn("task degraded", map[string]any{"attempt": 6})

	// Then every field reaches the entry
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "task degraded", entry.Message)
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	ctx := entry.ContextMap()
	assert.Equal(t, "smoking", ctx["task"])
	assert.Equal(t, "boom", ctx["error"])
	assert.EqualValues(t, 6, ctx["attempt"])
}

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{level: "debug", want: zapcore.DebugLevel},
		{level: "WARN", want: zapcore.WarnLevel},
		{level: "error", want: zapcore.ErrorLevel},
		{level: "", want: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(tt.level, "json")
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNewNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.Info("ignored", nil)
		log.WithFields(nil).Error("ignored", map[string]any{"k": "v"})
	})
}
