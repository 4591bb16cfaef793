package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/workflowai/gateway/core"
)

func TestBuildProviders_WiresConfiguredCredentials(t *testing.T) {
	cfg := &core.Config{
		Providers: map[string]core.ProviderConfig{
			"openai":    {APIKey: "sk-test"},
			"anthropic": {APIKey: "ak-test"},
		},
	}

	providers := buildProviders(cfg)
	assert.Contains(t, providers, "openai")
	assert.Contains(t, providers, "anthropic")
	assert.NotContains(t, providers, "gemini")
}

func TestBuildProviders_NoCredentialsInDevModeFallsBackToMock(t *testing.T) {
	cfg := &core.Config{
		Development: core.DevelopmentConfig{Mode: true},
	}

	providers := buildProviders(cfg)
	assert.Contains(t, providers, "mock")
}

func TestBuildProviders_NoCredentialsOutsideDevModeYieldsEmpty(t *testing.T) {
	cfg := &core.Config{}
	providers := buildProviders(cfg)
	assert.Empty(t, providers)
}

func TestBuildProviders_SkipsProviderWithEmptyAPIKey(t *testing.T) {
	cfg := &core.Config{
		Providers: map[string]core.ProviderConfig{
			"openai": {APIKey: ""},
		},
	}
	providers := buildProviders(cfg)
	assert.NotContains(t, providers, "openai")
}
