package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/corequeue/logger"
)

type ctxKey string

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithJSONFormatter(),
		logger.WithOutput(&buf),
	)

	log.Info("hello", slog.String("k", "v"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "v", rec["k"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithTextFormatter(),
		logger.WithOutput(&buf),
	)

	log.Info("hello")

	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithLevel(slog.LevelWarn),
	)

	log.Info("filtered")
	assert.Empty(t, buf.String())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_StaticAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithAttr(slog.String("service", "worker")),
	)

	log.Info("hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "worker", rec["service"])
}

func TestNew_ContextValue(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextValue("job_id", ctxKey("job")),
	)

	ctx := context.WithValue(context.Background(), ctxKey("job"), "emails:42")
	log.InfoContext(ctx, "processed")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "emails:42", rec["job_id"])

	// Without the value in context the attribute is simply absent. Unmarshal
	// merges into a non-nil map, so start from a fresh one.
	buf.Reset()
	rec = nil
	log.InfoContext(context.Background(), "processed")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	_, ok := rec["job_id"]
	assert.False(t, ok)
}

func TestNew_EnvironmentPresets(t *testing.T) {
	t.Run("development", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithEnvironment("development", "queue-worker"),
		)

		log.Debug("verbose")

		out := buf.String()
		assert.Contains(t, out, "verbose")
		assert.Contains(t, out, "service=queue-worker")
		assert.Contains(t, out, "env=development")
	})

	t.Run("production", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithEnvironment("prod", "queue-worker"),
		)

		log.Debug("suppressed")
		assert.Empty(t, buf.String())

		log.Info("kept")
		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "production", rec["env"])
	})
}

func TestWithFormat_Invalid(t *testing.T) {
	assert.Panics(t, func() {
		logger.New(logger.WithFormat("yaml"))
	})
}

func TestHandlerDecorator_PreservesExtractorsAcrossWith(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextValue("job_id", ctxKey("job")),
	)

	scoped := log.With(slog.String("component", "worker")).WithGroup("detail")
	ctx := context.WithValue(context.Background(), ctxKey("job"), "q:1")
	scoped.InfoContext(ctx, "hello", slog.String("k", "v"))

	out := buf.String()
	assert.True(t, strings.Contains(out, `"job_id":"q:1"`), "extractor should survive With/WithGroup: %s", out)
	assert.Contains(t, out, `"component":"worker"`)
}
