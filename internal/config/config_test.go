package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the working directory at empty temp dirs so no
// real config, .env or AIODASH_* variable leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("APPDATA", dir)
	t.Chdir(dir)
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "AIODASH_") {
			t.Setenv(key, "")
		}
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, "v2", cfg.APIVersion)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 2*time.Second, cfg.UploadPollInterval)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, filepath.Join(dir, ".config", "aiodash", "session.json"), cfg.SessionFile)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "dash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://api.example.com/
timeout: 45s
retries: 5
output: table
`), 0600))
	t.Setenv("AIODASH_RETRIES", "1")
	t.Setenv("AIODASH_RATE_LIMIT", "2.5")
	t.Setenv("AIODASH_NO_COLOR", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.Retries, "environment overrides file")
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, "table", cfg.Output)
	assert.True(t, cfg.NoColor)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AIODASH_API_VERSION=v3\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("AIODASH_API_VERSION") })
	os.Unsetenv("AIODASH_API_VERSION")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "v3", cfg.APIVersion)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	dir := isolate(t)
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"AIODASH_API_URL":     "ftp://example.com",
		"AIODASH_TIMEOUT":     "-1s",
		"AIODASH_OUTPUT":      "xml",
		"AIODASH_TOKEN_STORE": "vault",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			isolate(t)
			t.Setenv(key, value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("AIODASH_TEST_INT", "many")
	t.Setenv("AIODASH_TEST_DURATION", "soon")
	t.Setenv("AIODASH_TEST_BOOL", "perhaps")
	assert.Equal(t, 7, envInt("AIODASH_TEST_INT", 7))
	assert.Equal(t, time.Minute, envDuration("AIODASH_TEST_DURATION", time.Minute))
	assert.True(t, envBool("AIODASH_TEST_BOOL", true))
	assert.Equal(t, "x", envOr("AIODASH_TEST_UNSET", "x"))
}

func TestSave(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.yaml")
	cfg := Default()
	cfg.APIURL = "https://saved.example.com"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.com", loaded.APIURL)
}
