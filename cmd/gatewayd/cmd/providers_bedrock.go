//go:build bedrock

package cmd

import (
	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/ai/providers/bedrock"
	"github.com/workflowai/gateway/core"
)

func registerBedrock(cfg *core.Config, providers map[string]adapter.Adapter) {
	pc, ok := cfg.Providers["bedrock"]
	if !ok || pc.Region == "" {
		return
	}
	providers["bedrock"] = bedrock.NewCanonicalAdapter(pc.Region, pc.BaseURL)
}
