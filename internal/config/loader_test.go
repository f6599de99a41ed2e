package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_MissingFileYieldsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, 3, cfg.Workflow.RejectionCeiling)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.Logging.File)
	assert.NotEmpty(t, cfg.Store.Path)
}

func TestLoader_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mofflow.json")
	content := `{
		"data_dir": "` + filepath.ToSlash(filepath.Join(dir, "data")) + `",
		"ai": {"provider": "openai", "model": "gpt-4o", "api_key": "sk-file"},
		"workflow": {"rejection_ceiling": 5}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := NewLoader(path).Load()

	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
	assert.Equal(t, "sk-file", cfg.AI.APIKey)
	assert.Equal(t, 5, cfg.Workflow.RejectionCeiling)
}

func TestLoader_EnvOverridesAPIKey(t *testing.T) {
	t.Setenv("MOFFLOW_AI_API_KEY", "sk-env")

	cfg, err := NewLoader(filepath.Join(t.TempDir(), "nope.json")).Load()

	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.AI.APIKey)
}

func TestLoader_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mofflow.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewLoader(path).Load()

	assert.Error(t, err)
}
