package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/germanamz/contentcrew/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CONTENTCREW_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("CONTENTCREW_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("CONTENTCREW_TEST_DOTENV"))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("CONTENTCREW_TEST_DOTENV"))
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	assert.Equal(t, "explicit.yaml", resolveConfigPath("explicit.yaml", defaultDir))
	assert.Empty(t, resolveConfigPath("", defaultDir))

	require.NoError(t, os.WriteFile(fallbackConfig, []byte("{}"), 0o600))
	assert.Equal(t, fallbackConfig, resolveConfigPath("", defaultDir))

	require.NoError(t, os.MkdirAll(defaultDir, 0o750))
	inDir := filepath.Join(defaultDir, "config.yaml")
	require.NoError(t, os.WriteFile(inDir, []byte("{}"), 0o600))
	assert.Equal(t, inDir, resolveConfigPath("", defaultDir))
}

func TestLoadConfig_DefaultsWithEnvKeys(t *testing.T) {
	t.Setenv(engine.OpenAIKeyEnv, "sk-env")
	t.Setenv(engine.SerperKeyEnv, "serper-env")

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Provider.APIKey)
	assert.Equal(t, "serper-env", cfg.Search.APIKey)
	assert.Equal(t, engine.DefaultConfig().Provider.Model, cfg.Provider.Model)
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv(engine.OpenAIKeyEnv, "")
	t.Setenv(engine.SerperKeyEnv, "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  model: gpt-4o\n"), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Len(t, cfg.MissingSecrets(), 2)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	newLogger(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, true).Debug("shown", "key", "value")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "key=value")
}

func TestPrintWarnings(t *testing.T) {
	var buf bytes.Buffer

	cfg := engine.DefaultConfig()
	cfg.Provider.APIKey = "sk"
	printWarnings(&buf, cfg)

	assert.Contains(t, buf.String(), "SERPER_API_KEY not found")
	assert.NotContains(t, buf.String(), "OPENAI_API_KEY")
}
