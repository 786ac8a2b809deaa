package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "autobot", cfg.Name)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 5, cfg.Agent.ReflectionCadence)
	assert.Equal(t, 60*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, time.Second, cfg.GetIdleWait())
	assert.Equal(t, 5*time.Second, cfg.GetErrorBackoff())
}

func TestConfig_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Model = "gpt-4o"
	cfg.Agent.QueueCapacity = 64
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", loaded.LLM.Model)
	assert.Equal(t, 64, loaded.Agent.QueueCapacity)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().LLM.BaseURL, cfg.LLM.BaseURL)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AUTOBOT_LLM_MODEL", "gpt-4.1-mini")
	t.Setenv("GEMINI_API_KEY", "g-test")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model)
	assert.Equal(t, "genai", cfg.Embedding.Provider)
	assert.Equal(t, "g-test", cfg.Embedding.GenAIAPIKey)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk-test"
	require.NoError(t, cfg.Validate())

	noKey := DefaultConfig()
	assert.Error(t, noKey.Validate())

	badProvider := DefaultConfig()
	badProvider.LLM.APIKey = "sk-test"
	badProvider.Embedding.Provider = "chroma"
	assert.Error(t, badProvider.Validate())

	badCadence := DefaultConfig()
	badCadence.LLM.APIKey = "sk-test"
	badCadence.Agent.ReflectionCadence = 0
	assert.Error(t, badCadence.Validate())
}

func TestGetDurations_InvalidFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "bogus"
	cfg.Agent.IdleWait = "bogus"
	cfg.Execution.CommandTimeout = "bogus"

	assert.Equal(t, 60*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, time.Second, cfg.GetIdleWait())
	assert.Equal(t, 60*time.Second, cfg.GetCommandTimeout())
}

func TestMain(m *testing.M) {
	// Make sure ambient keys don't leak into override tests.
	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("AUTOBOT_LLM_API_KEY")
	os.Unsetenv("GEMINI_API_KEY")
	os.Exit(m.Run())
}
