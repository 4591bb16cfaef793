package cmd

import (
	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/ai/providers/anthropic"
	"github.com/workflowai/gateway/ai/providers/gemini"
	"github.com/workflowai/gateway/ai/providers/mock"
	"github.com/workflowai/gateway/ai/providers/openai"
	"github.com/workflowai/gateway/core"
)

// buildProviders wires one adapter per configured backend, keyed by the
// provider name the version resolver and runner route on. A provider with no
// credentials configured is skipped. When no provider at all is configured and
// dev mode is on, the mock adapter is wired under the name "mock", so a fresh
// checkout can serve traffic without real API keys.
func buildProviders(cfg *core.Config) map[string]adapter.Adapter {
	providers := make(map[string]adapter.Adapter, len(cfg.Providers)+1)

	if pc, ok := cfg.Providers["openai"]; ok && pc.APIKey != "" {
		providers["openai"] = openai.NewCanonicalAdapter(pc.APIKey, pc.BaseURL, "openai")
	}
	if pc, ok := cfg.Providers["anthropic"]; ok && pc.APIKey != "" {
		providers["anthropic"] = anthropic.NewCanonicalAdapter(pc.APIKey, pc.BaseURL)
	}
	if pc, ok := cfg.Providers["gemini"]; ok && pc.APIKey != "" {
		providers["gemini"] = gemini.NewCanonicalAdapter(pc.APIKey, pc.BaseURL)
	}
	registerBedrock(cfg, providers)

	if len(providers) == 0 && cfg.Development.Mode {
		providers["mock"] = mock.NewCanonicalAdapter()
	}
	return providers
}
