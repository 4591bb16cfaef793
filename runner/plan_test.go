package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/workflowai/gateway/version"
)

func TestPlan_ExplicitProviderFirst(t *testing.T) {
	cands := Plan(version.Properties{Provider: "bedrock", Model: "claude-3-sonnet-20240229"}, FallbackNever)
	assert.Equal(t, Candidate{Provider: "bedrock", Model: "claude-3-sonnet-20240229"}, cands[0])
}

func TestPlan_NeverStopsAfterFirstProvider(t *testing.T) {
	cands := Plan(version.Properties{Model: "claude-3-sonnet-20240229"}, FallbackNever)
	assert.Equal(t, []Candidate{{Provider: "anthropic", Model: "claude-3-sonnet-20240229"}}, cands)
}

func TestPlan_SameModelProviderPreferenceOrder(t *testing.T) {
	cands := Plan(version.Properties{Model: "claude-3-sonnet-20240229"}, FallbackAuto)
	require := assert.New(t)
	require.GreaterOrEqual(len(cands), 2)
	require.Equal(Candidate{Provider: "anthropic", Model: "claude-3-sonnet-20240229"}, cands[0])
	require.Equal(Candidate{Provider: "bedrock", Model: "claude-3-sonnet-20240229"}, cands[1])
}

func TestPlan_ExplicitModelList(t *testing.T) {
	cands := Plan(version.Properties{Model: "gpt-4"}, "claude-3-opus-20240229")
	found := false
	for _, c := range cands {
		if c.Model == "claude-3-opus-20240229" {
			found = true
		}
	}
	assert.True(t, found)
}
