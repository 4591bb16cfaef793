// Package httpapi implements the OpenAI-Compatible Surface (C9): an
// /v1/chat/completions endpoint that accepts the standard OpenAI request
// shape plus this gateway's extensions (model-string-encoded agent/schema
// routing, cache/fallback directives, feedback tokens), and a handful of
// thin native endpoints for agent/version/run management.
//
// The wire types here intentionally hand-roll the OpenAI JSON contract
// rather than depend on a generated client SDK: ai/providers/openai already
// does the same for its adapter, and this package sits on the opposite side
// of the same wire format, so the two stay consistent without a second,
// differently-shaped dependency.
package httpapi

import (
	"encoding/json"

	"github.com/workflowai/gateway/adapter"
)

// ChatCompletionRequest is the OpenAI-compatible request body for
// POST /v1/chat/completions, extended with this gateway's own fields.
type ChatCompletionRequest struct {
	Model            string          `json:"model"`
	Messages         []WireMessage   `json:"messages"`
	Stream           bool            `json:"stream"`
	StreamOptions    *StreamOptions  `json:"stream_options,omitempty"`
	ResponseFormat   json.RawMessage `json:"response_format,omitempty"`
	Tools            []WireTool      `json:"tools,omitempty"`
	ToolChoice       json.RawMessage `json:"tool_choice,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	ReasoningEffort  string          `json:"reasoning_effort,omitempty"`
	N                int             `json:"n,omitempty"`

	// Extensions beyond the OpenAI contract (§6 "Non-standard request
	// fields").
	Input             map[string]interface{} `json:"input,omitempty"`
	UseCache          string                  `json:"use_cache,omitempty"`
	UseFallback       string                  `json:"use_fallback,omitempty"`
	Provider          string                  `json:"provider,omitempty"`
	AgentID           string                  `json:"agent_id,omitempty"`
	ConversationID    string                  `json:"conversation_id,omitempty"`
	Metadata          map[string]interface{}  `json:"metadata,omitempty"`
	WorkflowAIInternal *WorkflowAIInternal    `json:"workflowai_internal,omitempty"`
}

// WorkflowAIInternal carries the gateway's own structured extensions that
// don't fit the flat OpenAI request shape: explicit output schema and
// structured-output toggling.
type WorkflowAIInternal struct {
	OutputSchema     map[string]interface{} `json:"output_schema,omitempty"`
	StructuredOutput bool                    `json:"structured_output,omitempty"`
	PrivateFields    []string                `json:"private_fields,omitempty"`
}

// StreamOptions mirrors OpenAI's stream_options, plus the gateway's
// valid_json_chunks extension (§6: each SSE chunk is itself a complete,
// independently-parseable JSON object when set).
type StreamOptions struct {
	IncludeUsage    bool `json:"include_usage,omitempty"`
	ValidJSONChunks bool `json:"valid_json_chunks,omitempty"`
}

// WireMessage is one OpenAI-shaped chat message.
type WireMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []WireToolCall  `json:"tool_calls,omitempty"`
}

// WireToolCall is an assistant message's tool_calls entry.
type WireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// WireTool is a caller-supplied external tool definition.
type WireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string                 `json:"name"`
		Description string                 `json:"description,omitempty"`
		Parameters  map[string]interface{} `json:"parameters,omitempty"`
	} `json:"function"`
}

// ChatCompletionResponse is the OpenAI-compatible non-streaming response,
// extended with this gateway's non-standard fields (§6).
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   WireUsage `json:"usage"`

	// Non-standard fields.
	CostUSD        *float64 `json:"cost_usd,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	FeedbackToken  string   `json:"feedback_token,omitempty"`
	URL            string   `json:"url,omitempty"`
}

// Choice is one completion choice. The gateway always returns exactly one.
type Choice struct {
	Index        int          `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

// ChoiceMessage is the assistant message rendered back to the caller.
type ChoiceMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []WireToolCall `json:"tool_calls,omitempty"`
}

// WireUsage is the OpenAI-shaped usage block.
type WireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one SSE `data:` payload for a streaming response.
type ChatCompletionChunk struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChunkChoice `json:"choices"`

	CostUSD        *float64 `json:"cost_usd,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	FeedbackToken  string   `json:"feedback_token,omitempty"`
	URL            string   `json:"url,omitempty"`
}

// ChunkChoice is one streaming delta choice.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta is the incremental content of a streaming chunk.
type ChunkDelta struct {
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []WireToolCall `json:"tool_calls,omitempty"`
}

// ErrorResponse is the OpenAI-compatible error envelope (§7: every
// adapter.Kind maps to one of these over HTTP).
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the nested error object OpenAI clients expect.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

func toWireUsage(u adapter.Usage) WireUsage {
	return WireUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.PromptTokens + u.CompletionTokens,
	}
}
