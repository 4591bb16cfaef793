package runner

import (
	"sort"
	"strings"

	"github.com/workflowai/gateway/version"
)

// ModelRoute describes one model's provider preference order and capability
// bucket, the routing metadata Plan needs to build a fallback chain.
// Bucket groups models of comparable capability ("frontier", "fast", ...):
// an "auto" fallback escalates within the same bucket or better, never down.
type ModelRoute struct {
	Providers []string
	Bucket    string
	Rank      int // higher ranks outrank lower ones within a bucket comparison
}

var modelCatalog = map[string]ModelRoute{}

// RegisterModelRoute makes a model's routing metadata known to Plan, and
// simultaneously registers the model with the version resolver's sanitizer
// (§4.2) so the allow-list always matches the set of models the runner can
// actually dispatch to: a model the runner can route to is, by definition,
// one version.Sanitize should accept.
func RegisterModelRoute(model string, route ModelRoute) {
	modelCatalog[model] = route
	version.RegisterModel(model)
}

func init() {
	RegisterModelRoute("gpt-4", ModelRoute{Providers: []string{"openai"}, Bucket: "frontier", Rank: 2})
	RegisterModelRoute("gpt-3.5-turbo", ModelRoute{Providers: []string{"openai"}, Bucket: "fast", Rank: 1})
	RegisterModelRoute("claude-3-opus-20240229", ModelRoute{Providers: []string{"anthropic", "bedrock"}, Bucket: "frontier", Rank: 3})
	RegisterModelRoute("claude-3-sonnet-20240229", ModelRoute{Providers: []string{"anthropic", "bedrock"}, Bucket: "frontier", Rank: 2})
	RegisterModelRoute("claude-3-haiku-20240307", ModelRoute{Providers: []string{"anthropic", "bedrock"}, Bucket: "fast", Rank: 1})
	RegisterModelRoute("gemini-1.5-pro", ModelRoute{Providers: []string{"gemini"}, Bucket: "frontier", Rank: 2})
	RegisterModelRoute("gemini-1.5-flash", ModelRoute{Providers: []string{"gemini"}, Bucket: "fast", Rank: 1})
}

// FallbackAuto, FallbackNever are the two keyword forms of use_fallback; any
// other value is parsed as a comma-separated explicit model list.
const (
	FallbackAuto  = "auto"
	FallbackNever = "never"
)

// Plan builds the ordered (provider, model) attempt list (§4.4 steps 1-3).
func Plan(props version.Properties, useFallback string) []Candidate {
	if useFallback == "" {
		useFallback = FallbackAuto
	}

	var out []Candidate
	seen := map[Candidate]bool{}
	add := func(provider, model string) {
		c := Candidate{Provider: provider, Model: model}
		if provider == "" || seen[c] {
			return
		}
		seen[c] = true
		out = append(out, c)
	}

	route := modelCatalog[props.Model]

	// Step 1: explicit provider on the version wins first position.
	if props.Provider != "" {
		add(props.Provider, props.Model)
	}

	// Step 2: the model's own provider preference list, for the same model.
	for _, p := range route.Providers {
		add(p, props.Model)
	}

	if useFallback == FallbackNever {
		if len(out) > 1 {
			out = out[:1]
		}
		return out
	}

	if useFallback != FallbackAuto {
		// Explicit model list, used verbatim (§4.4 step 3).
		for _, m := range strings.Split(useFallback, ",") {
			m = strings.TrimSpace(m)
			if m == "" {
				continue
			}
			for _, p := range modelCatalog[m].Providers {
				add(p, m)
			}
		}
		return out
	}

	// "auto": alternate models in the same or better capability bucket.
	for model, r := range modelCatalog {
		if model == props.Model {
			continue
		}
		if r.Bucket != route.Bucket || r.Rank < route.Rank {
			continue
		}
		for _, p := range r.Providers {
			add(p, model)
		}
	}

	return out
}

// Models returns every model id known to the routing catalog, sorted, for
// the GET /v1/models listing (§6).
func Models() []string {
	out := make([]string, 0, len(modelCatalog))
	for model := range modelCatalog {
		out = append(out, model)
	}
	sort.Strings(out)
	return out
}
