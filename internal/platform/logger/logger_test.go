package logger

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, levelFromString("debug", slog.LevelInfo))
	assert.Equal(t, slog.LevelWarn, levelFromString("WARN", slog.LevelInfo))
	assert.Equal(t, slog.LevelError, levelFromString("error", slog.LevelInfo))
	assert.Equal(t, slog.LevelInfo, levelFromString("nonsense", slog.LevelInfo))
	assert.Equal(t, slog.LevelDebug, levelFromString("", slog.LevelDebug))
}

func TestRedactingHandlerMasksSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	h := NewRedactingHandler(
		slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		[]string{"token", "secret"},
	)
	log := slog.New(h)

	log.Info("login", slog.String("user", "ada"), slog.String("Token", "abc123"))

	out := buf.String()
	assert.Contains(t, out, `"user":"ada"`)
	assert.Contains(t, out, `"Token":"[REDACTED]"`)
	assert.NotContains(t, out, "abc123")
}

func TestRedactingHandlerMasksWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewRedactingHandler(
		slog.NewJSONHandler(&buf, nil),
		defaultSensitiveKeys,
	)
	log := slog.New(h).With(slog.String("api_key", "k-123"))

	log.Info("boot")
	assert.Contains(t, buf.String(), `"api_key":"[REDACTED]"`)
	assert.NotContains(t, buf.String(), "k-123")
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	log := slog.New(h)

	log.Info("only console")
	log.Error("everywhere")

	assert.Contains(t, a.String(), "only console")
	assert.Contains(t, a.String(), "everywhere")
	assert.NotContains(t, b.String(), "only console")
	assert.Contains(t, b.String(), "everywhere")
}

func TestMultiHandlerEnabled(t *testing.T) {
	h := NewMultiHandler(
		slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	ctx := context.Background()
	assert.True(t, h.Enabled(ctx, slog.LevelWarn))
	assert.False(t, h.Enabled(ctx, slog.LevelInfo))
}

func TestNewWithFileHandler(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	log, closer := New(Options{
		Env:          "dev",
		ConsoleLevel: "error",
		FileLevel:    "debug",
		File:         file,
		App:          "errguard",
	})
	require.NotNil(t, log)

	log.Info("written to file only")
	require.NoError(t, closer())
}

func TestNewWithoutFile(t *testing.T) {
	log, closer := New(Options{Env: "prod", App: "errguard"})
	require.NotNil(t, log)
	require.NoError(t, closer())
}
