package tools

import "net/http"

// Credentials bundles the API keys the fixed internal tool set needs.
// Missing keys don't prevent startup: the affected tool returns a
// NOT_CONFIGURED ToolError at call time instead.
type Credentials struct {
	BraveAPIKey      string
	PerplexityAPIKey string
	PerplexityModel  string
}

// DefaultRegistry builds the fixed internal tool set the gateway ships with.
func DefaultRegistry(creds Credentials, client *http.Client) *Registry {
	return New(
		NewWebSearchTool(creds.BraveAPIKey, client),
		NewBrowserTool(client),
		NewPerplexityTool(creds.PerplexityAPIKey, creds.PerplexityModel, client),
	)
}
