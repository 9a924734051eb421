package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRenAIAgent/math-content-engine-sub001/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			DefaultProvider: "deepseek",
			Providers: map[string]config.ProviderConfig{
				"deepseek": {Model: "deepseek-chat"},
				"openai":   {Model: "gpt-4o"},
			},
		},
	}
}

func TestResolveProviderModelDefaults(t *testing.T) {
	p, m, err := resolveProviderModel(testConfig(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "deepseek", p)
	assert.Equal(t, "deepseek-chat", m)
}

func TestResolveProviderModelExplicit(t *testing.T) {
	p, m, err := resolveProviderModel(testConfig(), "openai", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "openai", p)
	assert.Equal(t, "gpt-4o-mini", m)
}

func TestResolveProviderModelUnknownProvider(t *testing.T) {
	_, _, err := resolveProviderModel(testConfig(), "anthropic", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestResolveProviderModelMissingConfig(t *testing.T) {
	_, _, err := resolveProviderModel(nil, "deepseek", "")
	require.Error(t, err)

	cfg := testConfig()
	cfg.LLM.DefaultProvider = ""
	_, _, err = resolveProviderModel(cfg, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not specified")
}
