package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_Format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(&buf, "info", "json").Info("hello", slog.String("k", "v"))
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"k":"v"`) {
		t.Fatalf("expected json line, got %s", buf.String())
	}

	buf.Reset()
	New(&buf, "info", "text").Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text line, got %s", buf.String())
	}
}

func TestNew_LevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "warn", "text")
	log.Info("dropped")
	log.Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("unexpected output %s", buf.String())
	}
}

func TestInit_WritesToFile(t *testing.T) {
	prev := L
	t.Cleanup(func() {
		_ = Close()
		L = prev
		slog.SetDefault(prev)
	})

	path := filepath.Join(t.TempDir(), "chatrelay.log")
	require.NoError(t, Init("info", "text", path))
	L.Info("written to file", slog.String("k", "v"))
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=\"written to file\"")
	assert.Contains(t, string(data), "k=v")
}

func TestInit_BadPath(t *testing.T) {
	prev := L
	t.Cleanup(func() { L = prev })

	err := Init("info", "text", filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	require.Error(t, err)
	assert.Same(t, prev, L)
}
