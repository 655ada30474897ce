// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "info", Console: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.Debug("hidden")
	l.Info("converted page", slog.String(FieldFolder, "Notes/Work"), slog.String(FieldFile, "a b.docx"))
	l.Warn("skipped", Error(errors.New("boom")))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO  converted page folder=Notes/Work file=\"a b.docx\"")
	assert.Contains(t, out, "WARN  skipped error=boom")
	assert.Empty(t, l.Path())
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "debug", Format: "json", Console: &buf})
	require.NoError(t, err)

	l.Debug("merging", Event("merge_start"), slog.Int("count", 3))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "debug", rec["level"])
	assert.Equal(t, "merging", rec["msg"])
	assert.Equal(t, "merge_start", rec[FieldEventType])
	assert.Contains(t, rec, "ts")
}

func TestNew_LogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	when := time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local)

	var console bytes.Buffer
	l, err := New(Options{Level: "warn", Console: &console, Dir: dir, Now: func() time.Time { return when }})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "conversion_20260304_050607.log"), l.Path())

	l.Info("file only")
	l.Warn("both")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "file only")
	assert.Contains(t, string(data), "both")
	assert.NotContains(t, console.String(), "file only")
	assert.Contains(t, console.String(), "both")
}

func TestNew_BadOptions(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	require.Error(t, err)

	_, err = New(Options{Level: "loud"})
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Console: &buf})
	require.NoError(t, err)

	l.With(slog.String("run", "r1")).WithGroup("merge").Info("done", slog.Int("books", 2))
	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, " run=r1")
	assert.NotContains(t, line, "merge.run")
	assert.Contains(t, line, "merge.books=2")
}
