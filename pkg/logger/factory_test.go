package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clustersession/pkg/logger"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Run("defaults to json at info", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Debug("hidden")
		assert.Zero(t, buf.Len())

		log.Info("session created", logger.SessionID("abc"))
		entry := decode(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "session created", entry["msg"])
		assert.Equal(t, "abc", entry["session_id"])
	})

	t.Run("last format option wins", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithJSONFormatter(),
			logger.WithTextFormatter(),
		)
		log.Info("hello")
		assert.Contains(t, buf.String(), "level=INFO")
	})

	t.Run("static attributes skip empty values", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithAttr(logger.NodeID("node-1"), logger.SessionID("")),
		)
		log.Info("msg")
		entry := decode(t, buf)
		assert.Equal(t, "node-1", entry["node_id"])
		assert.NotContains(t, entry, "session_id")
	})

	t.Run("invalid format panics", func(t *testing.T) {
		assert.Panics(t, func() {
			logger.New(logger.WithFormat(logger.Format("xml")))
		})
	})
}

func TestWithLevelName(t *testing.T) {
	tests := []struct {
		name  string
		level string
		debug bool
		warn  bool
	}{
		{name: "debug", level: "debug", debug: true, warn: true},
		{name: "upper case", level: "WARN", debug: false, warn: true},
		{name: "unknown keeps default", level: "loud", debug: false, warn: true},
		{name: "empty keeps default", level: "", debug: false, warn: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logger.New(logger.WithOutput(&bytes.Buffer{}), logger.WithLevelName(tt.level))
			ctx := context.Background()
			assert.Equal(t, tt.debug, log.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.warn, log.Enabled(ctx, slog.LevelWarn))
		})
	}
}

func TestWithEnvironment(t *testing.T) {
	t.Run("production is json at info", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("prod", "sessiond"))
		log.Debug("hidden")
		log.Info("msg")
		entry := decode(t, buf)
		assert.Equal(t, "sessiond", entry["service"])
		assert.Equal(t, logger.EnvProduction, entry["env"])
	})

	t.Run("unknown falls back to development", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("qa", "sessiond"))
		log.Debug("msg")
		out := buf.String()
		assert.Contains(t, out, "level=DEBUG")
		assert.Contains(t, out, "env=development")
	})

	t.Run("explicit level after environment", func(t *testing.T) {
		log := logger.New(
			logger.WithOutput(&bytes.Buffer{}),
			logger.WithStaging("sessiond"),
			logger.WithLevel(slog.LevelError),
		)
		assert.False(t, log.Enabled(context.Background(), slog.LevelWarn))
	})

	t.Run("presets", func(t *testing.T) {
		assert.True(t, logger.New(logger.WithDevelopment("svc")).Enabled(context.Background(), slog.LevelDebug))
		assert.False(t, logger.New(logger.WithProduction("svc")).Enabled(context.Background(), slog.LevelDebug))
	})
}

func TestSetAsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	buf := &bytes.Buffer{}
	logger.SetAsDefault(logger.New(logger.WithOutput(buf)))
	slog.Info("default")
	assert.Equal(t, "default", decode(t, buf)["msg"])
}

func TestNop(t *testing.T) {
	log := logger.Nop()
	require.NotNil(t, log)
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
	log.Error("dropped", logger.SessionID("abc"))
}
