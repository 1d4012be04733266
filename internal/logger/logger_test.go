package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	l.Info("inf %d", 1)
	l.Warning("wrn %s", "x")
	l.Error("err %v", true)

	out := buf.String()
	assert.Contains(t, out, "INFO    ")
	assert.Contains(t, out, "inf 1")
	assert.Contains(t, out, "WARNING ")
	assert.Contains(t, out, "wrn x")
	assert.Contains(t, out, "ERROR   ")
	assert.Contains(t, out, "err true")
	assert.Contains(t, out, "logger_test.go", "caller file should be reported, not logger.go")
}

func TestNewLogger_WritesPerLevelFiles(t *testing.T) {
	dir := t.TempDir()

	l, err := NewLogger(dir)
	require.NoError(t, err)

	l.Info("hello info")
	l.Error("hello error")
	require.NoError(t, l.Close())

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(info), "hello info"))
	assert.False(t, strings.Contains(string(info), "hello error"))

	errLog, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errLog), "hello error")

	_, err = os.Stat(filepath.Join(dir, "warning.log"))
	assert.NoError(t, err)
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	l, err := NewLogger("")
	require.NoError(t, err)
	assert.NoError(t, l.Close())
}
