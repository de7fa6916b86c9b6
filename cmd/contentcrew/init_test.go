package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/germanamz/contentcrew/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialConfig(t *testing.T) {
	cfg := initialConfig("/tmp/cc")

	assert.Equal(t, "${OPENAI_API_KEY}", cfg.Provider.APIKey)
	assert.Equal(t, "${SERPER_API_KEY}", cfg.Search.APIKey)
	assert.Equal(t, filepath.Join("/tmp/cc", "history.db"), cfg.History.Path)
	assert.NoError(t, cfg.Validate())
}

func TestWriteConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".contentcrew")
	t.Setenv(engine.OpenAIKeyEnv, "sk-expanded")
	t.Setenv(engine.SerperKeyEnv, "serper-expanded")

	path, err := writeConfig(dir, initialConfig(dir), false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "${OPENAI_API_KEY}", "secrets stay references")

	cfg, err := engine.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-expanded", cfg.Provider.APIKey)
	assert.Equal(t, "serper-expanded", cfg.Search.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
}

func TestWriteConfig_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	cfg := initialConfig(dir)

	_, err := writeConfig(dir, cfg, false)
	require.NoError(t, err)

	_, err = writeConfig(dir, cfg, false)
	assert.ErrorContains(t, err, "already exists")

	_, err = writeConfig(dir, cfg, true)
	assert.NoError(t, err)
}

func TestWriteConfig_Invalid(t *testing.T) {
	cfg := initialConfig(t.TempDir())
	cfg.Provider.Kind = ""

	_, err := writeConfig(t.TempDir(), cfg, false)
	assert.ErrorContains(t, err, "kind is required")
}
