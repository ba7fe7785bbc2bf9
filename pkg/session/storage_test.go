package session

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs := NewFileStorage(path)

	token, err := fs.LoadToken()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, fs.SaveToken("tok-1"))
	require.NoError(t, fs.SaveUser(testUser))

	reopened := NewFileStorage(path)
	token, err = reopened.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	user, err := reopened.LoadUser()
	require.NoError(t, err)
	assert.Equal(t, testUser, user)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestFileStorage_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	fs := NewFileStorage(path)
	require.NoError(t, fs.SaveToken("tok"))

	require.NoError(t, fs.Clear())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	token, err := fs.LoadToken()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, fs.Clear(), "clearing twice is not an error")
}

func TestFileStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStorage(path).LoadToken()
	assert.Error(t, err)
}

func TestFileStorage_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStorage(filepath.Join(dir, "session.json"))
	require.NoError(t, fs.SaveToken("a"))
	require.NoError(t, fs.SaveToken("b"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
