//go:build !bedrock

package cmd

import (
	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/core"
)

// registerBedrock is a no-op unless the binary is built with -tags bedrock,
// the tag the Bedrock adapter package is built under. The adapter does no
// SigV4 signing itself; that is left to the caller's http.RoundTripper.
func registerBedrock(cfg *core.Config, providers map[string]adapter.Adapter) {}
