package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRespectsDebugLevel(t *testing.T) {
	l := New(Options{Debug: true})
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l = New(Options{Debug: false})
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestNewWithLogFileDoesNotPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	l := New(Options{LogFile: path})
	l.Info("hello")
	assert.NotNil(t, l)
}

func TestForRunAttachesRunIDAndStageFields(t *testing.T) {
	obsCore, logs := observer.New(zapcore.InfoLevel)
	scoped := ForRun(zap.New(obsCore), "run-1", "migrate")
	scoped.Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "migrate", fields["stage"])
}

func TestNonZeroFallsBackToDefault(t *testing.T) {
	assert.Equal(t, 100, nonZero(0, 100))
	assert.Equal(t, 5, nonZero(5, 100))
	assert.Equal(t, 100, nonZero(-1, 100))
}
