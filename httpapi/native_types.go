package httpapi

import "github.com/workflowai/gateway/adapter"

// NativeVersionRef is the wire shape of an inline version reference for the
// native run endpoint: the same property set ChatCompletionRequest exposes
// flattened onto the OpenAI shape, here as its own object since the native
// surface has no model string to encode provider/model into (§4.1).
type NativeVersionRef struct {
	Provider         string   `json:"provider,omitempty"`
	Model            string   `json:"model"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	ReasoningEffort  string   `json:"reasoning_effort,omitempty"`
	Instructions     string   `json:"instructions,omitempty"`
	StructuredOutput bool     `json:"structured_output,omitempty"`
}

// NativeSemverRef names a saved version by (major, minor).
type NativeSemverRef struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// NativeRunRequest is the body of the native run and reply endpoints: a
// version reference (exactly one of Version/Environment/Semver/VersionHash)
// plus the task input.
type NativeRunRequest struct {
	Version     *NativeVersionRef `json:"version,omitempty"`
	Environment string            `json:"environment,omitempty"`
	Semver      *NativeSemverRef  `json:"semver,omitempty"`
	VersionHash string            `json:"version_hash,omitempty"`

	Input       map[string]interface{} `json:"input,omitempty"`
	Messages    []WireMessage           `json:"messages,omitempty"`
	UseCache    string                  `json:"use_cache,omitempty"`
	UseFallback string                  `json:"use_fallback,omitempty"`
}

// NativeRunResponse is the native run/reply response: the run's identity,
// its resolved version, and its output, independent of the OpenAI choice
// envelope the /v1/chat/completions surface renders.
type NativeRunResponse struct {
	RunID           string      `json:"run_id"`
	AgentID         string      `json:"agent_id"`
	SchemaID        int         `json:"schema_id"`
	VersionID       string      `json:"version_id"`
	Status          string      `json:"status"`
	Output          interface{} `json:"output,omitempty"`
	ToolCalls       []WireToolCall `json:"tool_calls,omitempty"`
	Usage           WireUsage   `json:"usage"`
	CostUSD         *float64    `json:"cost_usd,omitempty"`
	DurationSeconds float64     `json:"duration_seconds"`
	FeedbackToken   string      `json:"feedback_token,omitempty"`
}

// CreateAgentRequest is the body of POST /v1/{tenant}/agents.
type CreateAgentRequest struct {
	AgentID      string                 `json:"agent_id"`
	InputSchema  map[string]interface{} `json:"input_schema"`
	OutputSchema map[string]interface{} `json:"output_schema"`
}

// CreateAgentResponse confirms the (possibly pre-existing) agent/schema pair.
type CreateAgentResponse struct {
	AgentID  string `json:"agent_id"`
	SchemaID int    `json:"schema_id"`
}

// SearchRunsRequest is the body of POST .../runs/search.
type SearchRunsRequest struct {
	SchemaID int `json:"schema_id"`
	Limit    int `json:"limit,omitempty"`
}

// RunSummary is one entry in a runs-search result.
type RunSummary struct {
	RunID     string      `json:"run_id"`
	SchemaID  int         `json:"schema_id"`
	VersionID string      `json:"version_id"`
	Status    string      `json:"status"`
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	CostUSD   *float64    `json:"cost_usd,omitempty"`
	CreatedAt int64       `json:"created_at"`
}

// SearchRunsResponse lists matching runs, newest first.
type SearchRunsResponse struct {
	Runs []RunSummary `json:"runs"`
}

// VersionSummary is one entry in a versions listing.
type VersionSummary struct {
	ID         string `json:"id"`
	Major      *int   `json:"major,omitempty"`
	Minor      *int   `json:"minor,omitempty"`
	Saved      bool   `json:"saved"`
	Model      string `json:"model"`
	Provider   string `json:"provider,omitempty"`
}

// ListVersionsResponse groups a schema's saved versions by semver major,
// the shape the spec's "List versions (grouped by major)" calls for.
type ListVersionsResponse struct {
	Majors map[string][]VersionSummary `json:"majors"`
}

// DeployVersionRequest is the body of POST .../versions/{version_id}/deploy.
type DeployVersionRequest struct {
	SchemaID    int    `json:"schema_id"`
	Environment string `json:"environment"`
}

// ModelList is the GET /v1/models response body, OpenAI's `list` envelope.
type ModelList struct {
	Object string       `json:"object"`
	Data   []ModelEntry `json:"data"`
}

// ModelEntry is one model id in the GET /v1/models listing.
type ModelEntry struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

func toolCallsFromAdapter(tcs []adapter.ToolCallRequest) []WireToolCall {
	out := make([]WireToolCall, 0, len(tcs))
	for _, tc := range tcs {
		wc := WireToolCall{ID: tc.ID, Type: "function"}
		wc.Function.Name = tc.ToolName
		wc.Function.Arguments = string(tc.Input)
		out = append(out, wc)
	}
	return out
}
