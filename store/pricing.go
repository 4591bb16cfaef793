package store

import (
	"fmt"

	"github.com/workflowai/gateway/adapter"
)

// PerTokenPrice is USD cost per single token, broken out by usage component.
// Providers quote per-million-token prices; RegisterPrice takes those and
// divides by 1e6 once so ComputeCost stays a handful of multiplications.
type PerTokenPrice struct {
	Prompt     float64
	Completion float64
	Cached     float64 // defaults to Prompt when zero
	Reasoning  float64 // defaults to Completion when zero
	Audio      float64 // defaults to Completion when zero
}

var pricingTable = map[string]map[string]PerTokenPrice{}

// RegisterPrice makes (provider, model)'s per-token pricing known to
// ComputeCost. The built-in price list is registered from this package's
// init(); a later call for the same pair replaces the earlier price.
func RegisterPrice(provider, model string, perMillion PerTokenPrice) {
	if pricingTable[provider] == nil {
		pricingTable[provider] = map[string]PerTokenPrice{}
	}
	pricingTable[provider][model] = PerTokenPrice{
		Prompt:     perMillion.Prompt / 1e6,
		Completion: perMillion.Completion / 1e6,
		Cached:     perMillion.Cached / 1e6,
		Reasoning:  perMillion.Reasoning / 1e6,
		Audio:      perMillion.Audio / 1e6,
	}
}

func init() {
	// Grounded on public per-million-token list pricing at authoring time;
	// operators override via RegisterPrice for negotiated rates.
	RegisterPrice("openai", "gpt-4", PerTokenPrice{Prompt: 30, Completion: 60})
	RegisterPrice("openai", "gpt-3.5-turbo", PerTokenPrice{Prompt: 0.5, Completion: 1.5})
	RegisterPrice("openai", "gpt-4-vision-preview", PerTokenPrice{Prompt: 10, Completion: 30})
	RegisterPrice("anthropic", "claude-3-opus-20240229", PerTokenPrice{Prompt: 15, Completion: 75})
	RegisterPrice("anthropic", "claude-3-sonnet-20240229", PerTokenPrice{Prompt: 3, Completion: 15})
	RegisterPrice("anthropic", "claude-3-haiku-20240307", PerTokenPrice{Prompt: 0.25, Completion: 1.25})
	RegisterPrice("bedrock", "anthropic.claude-3-opus-20240229-v1:0", PerTokenPrice{Prompt: 15, Completion: 75})
	RegisterPrice("bedrock", "anthropic.claude-3-sonnet-20240229-v1:0", PerTokenPrice{Prompt: 3, Completion: 15})
	RegisterPrice("bedrock", "anthropic.claude-3-haiku-20240307-v1:0", PerTokenPrice{Prompt: 0.25, Completion: 1.25})
	RegisterPrice("gemini", "gemini-1.5-pro", PerTokenPrice{Prompt: 3.5, Completion: 10.5})
	RegisterPrice("gemini", "gemini-1.5-flash", PerTokenPrice{Prompt: 0.075, Completion: 0.3})
}

// ErrUnpriceableRun reports that no pricing is registered for a (provider,
// model) pair; the caller surfaces this as adapter.KindUnpriceableRun.
type ErrUnpriceableRun struct {
	Provider, Model string
}

func (e *ErrUnpriceableRun) Error() string {
	return fmt.Sprintf("store: no pricing registered for %s/%s", e.Provider, e.Model)
}

// ComputeCost prices a completion's usage for (provider, model). Unset
// component prices (Cached/Reasoning/Audio) fall back to Prompt/Completion
// respectively, matching how the components are typically billed.
func ComputeCost(provider, model string, usage adapter.Usage) (float64, error) {
	byModel, ok := pricingTable[provider]
	if !ok {
		return 0, &ErrUnpriceableRun{Provider: provider, Model: model}
	}
	price, ok := byModel[model]
	if !ok {
		return 0, &ErrUnpriceableRun{Provider: provider, Model: model}
	}

	cachedRate := price.Cached
	if cachedRate == 0 {
		cachedRate = price.Prompt
	}
	reasoningRate := price.Reasoning
	if reasoningRate == 0 {
		reasoningRate = price.Completion
	}
	audioRate := price.Audio
	if audioRate == 0 {
		audioRate = price.Completion
	}

	promptBillable := usage.PromptTokens - usage.CachedTokens
	if promptBillable < 0 {
		promptBillable = 0
	}

	cost := float64(promptBillable)*price.Prompt +
		float64(usage.CachedTokens)*cachedRate +
		float64(usage.CompletionTokens)*price.Completion +
		float64(usage.ReasoningTokens)*reasoningRate +
		float64(usage.AudioTokens)*audioRate

	return cost, nil
}
