package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/coregx/pickup/cmd/pickup-server/internal/config"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{level: "debug", want: zapcore.DebugLevel},
		{level: "warn", want: zapcore.WarnLevel},
		{level: "bogus", want: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := NewLogger(config.LogConfig{Level: tt.level})
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNewLogger_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "pickup.log")

	l, err := NewLogger(config.LogConfig{Level: "info", File: file, MaxSize: 1})
	require.NoError(t, err)

	l.Info("hello")
	_ = l.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewAdapter(zap.New(core))

	a.Debugf("d %d", 1)
	a.Infof("i %s", "x")
	a.Warnf("w")
	a.Errorf("e %v", "boom")
	a.Info("plain")

	entries := logs.AllUntimed()
	require.Len(t, entries, 5)
	assert.Equal(t, "d 1", entries[0].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "i x", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "e boom", entries[3].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "plain", entries[4].Message)
}
