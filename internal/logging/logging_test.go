package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCtx(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, true, slog.LevelInfo)

	ctx := AppendCtx(context.Background(), slog.String("app", "tiff2jp2"))
	ctx = AppendCtx(ctx, slog.Int("image", 3))
	log.InfoContext(ctx, "converted", "out", "a.jp2")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "converted", rec["msg"])
	assert.Equal(t, "tiff2jp2", rec["app"])
	assert.Equal(t, float64(3), rec["image"])
	assert.Equal(t, "a.jp2", rec["out"])
}

func TestAppendCtx_DoesNotAlias(t *testing.T) {
	base := AppendCtx(context.Background(), slog.String("a", "1"))
	left := AppendCtx(base, slog.String("b", "2"))
	right := AppendCtx(base, slog.String("c", "3"))

	assert.Len(t, Attrs(base), 1)
	assert.Equal(t, "b", Attrs(left)[1].Key)
	assert.Equal(t, "c", Attrs(right)[1].Key)
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelWarn)
	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "level=WARN msg=shown")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, " warn ": slog.LevelWarn, "Error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestTee(t *testing.T) {
	var info, debug bytes.Buffer
	log := slog.New(Tee(
		Handler(&info, false, slog.LevelInfo),
		Handler(&debug, true, slog.LevelDebug),
	)).With("k", "v")

	log.Debug("detail")
	log.Info("summary")

	assert.NotContains(t, info.String(), "detail")
	assert.Contains(t, info.String(), "summary")
	assert.Equal(t, 2, strings.Count(debug.String(), "\n"))
	assert.Contains(t, debug.String(), `"k":"v"`)
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tiff2jp2.log")
	sink := NewFileSink(path, 1, 2)
	log := slog.New(Handler(sink, true, slog.LevelInfo))
	log.Info("to file", "n", 1)
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to file"`)
}
