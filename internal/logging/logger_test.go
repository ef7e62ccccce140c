package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultLogPathUsesXDGStateHome(t *testing.T) {
	xdgStateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("HOME", t.TempDir())

	path, err := defaultLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdgStateHome, "v2md", "v2mdd.log"), path)
}

func TestDefaultLogPathFallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", home)

	path, err := defaultLogPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "state", "v2md", "v2mdd.log"), path)
}

func TestNewCreatesWritableJSONLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v2mdd.log")

	runtime, err := New(Options{Level: "debug", File: path, MaxSizeMB: 5, MaxBackups: 1, MaxAgeDays: 1})
	require.NoError(t, err)

	runtime.Logger.Info("unit-test-log", "component", "logging")
	require.NoError(t, runtime.Close())

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"msg":"unit-test-log"`)
	require.Contains(t, string(contents), `"component":"logging"`)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, -4, int(parseLevel("debug")))
	require.Equal(t, 0, int(parseLevel("info")))
	require.Equal(t, 4, int(parseLevel("warn")))
	require.Equal(t, 8, int(parseLevel("error")))
	require.Equal(t, 0, int(parseLevel("")))
}
