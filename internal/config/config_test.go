package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func Test_Load_Defaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/app.db", cfg.Store.Sqlite.Path)
	assert.Equal(t, 5000, cfg.Market.TimeoutMs)
	assert.Equal(t, "gpt-4.1-mini", cfg.Assistant.Model)
}

func Test_Load_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
market:
  base_url: "http://localhost:8089/api"
assistant:
  model: "gpt-4o-mini"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8089/api", cfg.Market.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.Assistant.Model)
}

func Test_Load_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("PORT", "7070")
	t.Setenv("CSE_API_BASE", "http://cse.test/api")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "http://cse.test/api", cfg.Market.BaseURL)
}

func Test_Load_InvalidPort(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("PORT", "abc")

	_, err := Load(path)
	assert.Error(t, err)
}

func Test_Load_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
