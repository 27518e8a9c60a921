package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFromStringParsesKnownLevels(t *testing.T) {
	require.Equal(t, DEBUG, LevelFromString("debug"))
	require.Equal(t, WARN, LevelFromString("WARN"))
	require.Equal(t, INFO, LevelFromString("not-a-level"), "unknown level names fall back to INFO")
}

func TestNewWithoutLogDirIsConsoleOnly(t *testing.T) {
	l, err := New("", DEBUG, nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())
}

func TestLoggerWritesJSONEntriesToFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, DEBUG, nil)
	require.NoError(t, err)
	defer l.Close()

	l.Info("tick completed", map[string]interface{}{"tick_id": float64(7)})

	data, err := os.ReadFile(filepath.Join(dir, "worldcore.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "tick completed")
	require.Contains(t, string(data), "\"level\":\"INFO\"")
}

func TestLoggerSuppressesBelowConfiguredLevel(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, WARN, nil)
	require.NoError(t, err)
	defer l.Close()

	l.Debug("should not appear")
	l.Warn("should appear")

	data, err := os.ReadFile(filepath.Join(dir, "worldcore.log"))
	require.NoError(t, err)
	require.NotContains(t, string(data), "should not appear")
	require.Contains(t, string(data), "should appear")
}

func TestTraceGatedByModuleAllowlist(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, TRACE, []string{"world"})
	require.NoError(t, err)
	defer l.Close()

	l.Trace("world", "spawn applied")
	l.Trace("transport", "frame sent")

	data, err := os.ReadFile(filepath.Join(dir, "worldcore.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "spawn applied")
	require.NotContains(t, string(data), "frame sent", "trace module not in the allowlist must be gated out")
}

func TestReadEntriesReturnsMostRecentLines(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, INFO, nil)
	require.NoError(t, err)
	defer l.Close()

	defaultLogger = l
	for i := 0; i < 5; i++ {
		l.Info("entry")
	}

	entries, err := ReadEntries(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
