package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FILE", "")
	assert.Equal(t, Config{Level: "info"}, ConfigFromEnv())

	t.Setenv("LOG_DEV", "1")
	assert.Equal(t, Config{Level: "debug", Dev: true}, ConfigFromEnv())

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FILE", "/tmp/x.log")
	assert.Equal(t, Config{Level: "warn", Dev: true, File: "/tmp/x.log"}, ConfigFromEnv())
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, levelFromString("debug"))
	assert.Equal(t, zapcore.WarnLevel, levelFromString("warning"))
	assert.Equal(t, zapcore.ErrorLevel, levelFromString("error"))
	assert.Equal(t, zapcore.InfoLevel, levelFromString("bogus"))
}

func TestInitWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walletauth.log")
	lg, err := Init(Config{Level: "info", File: path})
	require.NoError(t, err)

	lg.Info("hello", zap.String("k", "v"))
	_ = lg.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"hello"`)
	assert.Contains(t, string(raw), `"k":"v"`)
}

func TestWatermillAdapter(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	adapter := NewWatermillAdapter(zap.New(obs)).With(watermill.LogFields{"topic": "t"})

	adapter.Info("published", watermill.LogFields{"uuid": "1"})
	adapter.Trace("trace", nil)
	adapter.Error("failed", errors.New("boom"), nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "t", entries[0].ContextMap()["topic"])
	assert.Equal(t, "1", entries[0].ContextMap()["uuid"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
}
