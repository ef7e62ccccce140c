package runtime

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquirePIDFile_WritesOwnPID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v2mdd.pid")

	release, err := AcquirePIDFile(path)
	require.NoError(t, err)
	defer release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(string(data))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquirePIDFile_ReleaseRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v2mdd.pid")

	release, err := AcquirePIDFile(path)
	require.NoError(t, err)
	release()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquirePIDFile_SweepsStalePIDFromDeadProcess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v2mdd.pid")
	// A PID value extremely unlikely to be alive in this environment.
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0o644))

	release, err := AcquirePIDFile(path)
	require.NoError(t, err)
	defer release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestAcquirePIDFile_ReacquiresWhenOwnerIsCurrentProcess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v2mdd.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	_, err := AcquirePIDFile(path)
	require.NoError(t, err, "the current process owning the existing pid file is treated as re-acquire, not a conflict")
}

func TestAcquirePIDFile_RemovesGarbageContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v2mdd.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))

	release, err := AcquirePIDFile(path)
	require.NoError(t, err)
	defer release()
}

func TestRecordingFlag_SetExistsClear(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.flag")
	flag := NewRecordingFlag(path)

	assert.False(t, flag.Exists())

	require.NoError(t, flag.Set())
	assert.True(t, flag.Exists())

	require.NoError(t, flag.Clear())
	assert.False(t, flag.Exists())
}

func TestRecordingFlag_ClearWhenAbsentIsNotError(t *testing.T) {
	flag := NewRecordingFlag(filepath.Join(t.TempDir(), "recording.flag"))
	require.NoError(t, flag.Clear())
}

func TestRecordingFlag_EmptyPathIsNoop(t *testing.T) {
	flag := NewRecordingFlag("")
	require.NoError(t, flag.Set())
	require.NoError(t, flag.Clear())
	assert.False(t, flag.Exists())
}
