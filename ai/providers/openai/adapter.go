package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/workflowai/gateway/adapter"
)

// CanonicalAdapter implements adapter.Adapter for OpenAI's chat completions
// API. It is the C3 entry point the runner (C4) drives through the
// adapter.Adapter interface.
type CanonicalAdapter struct {
	APIKey                   string
	BaseURL                  string
	ProviderAlias            string
	ReasoningTokenMultiplier int
}

// NewCanonicalAdapter builds an OpenAI adapter.Adapter.
func NewCanonicalAdapter(apiKey, baseURL, providerAlias string) *CanonicalAdapter {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &CanonicalAdapter{APIKey: apiKey, BaseURL: baseURL, ProviderAlias: providerAlias}
}

var _ adapter.Adapter = (*CanonicalAdapter)(nil)

func (a *CanonicalAdapter) Name() string         { return "openai" }
func (a *CanonicalAdapter) DefaultModel() string { return ResolveModel(a.ProviderAlias, "default") }

type wireMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []wireCall `json:"tool_calls,omitempty"`
}

type wireCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

func toWireMessages(msgs []adapter.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := wireMessage{Role: string(m.Role)}
		var text strings.Builder
		for _, b := range m.Content {
			switch b.Kind {
			case adapter.BlockText, adapter.BlockReasoning:
				text.WriteString(b.Text)
			case adapter.BlockToolCallRequest:
				wc := wireCall{ID: b.ToolCallID, Type: "function"}
				wc.Function.Name = adapter.MapToolName(b.ToolName)
				wc.Function.Arguments = string(b.ToolInput)
				wm.ToolCalls = append(wm.ToolCalls, wc)
			case adapter.BlockToolCallResult:
				wm.Role = "tool"
				wm.ToolCallID = b.ToolCallID
				if b.ToolError != "" {
					text.WriteString(b.ToolError)
				} else {
					text.Write(b.ToolResult)
				}
			}
		}
		wm.Content = text.String()
		out = append(out, wm)
	}
	return out
}

func (a *CanonicalAdapter) Build(req adapter.BuildRequest) (*adapter.WireRequest, error) {
	model := ResolveModel(a.ProviderAlias, req.Properties.Model)

	messages := toWireMessages(req.Messages)
	plainMessages := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		if len(m.ToolCalls) == 0 {
			plainMessages = append(plainMessages, map[string]string{"role": m.Role, "content": m.Content})
		}
	}

	maxTokens := 1000
	if req.Properties.MaxTokens != nil {
		maxTokens = *req.Properties.MaxTokens
	}
	var temperature float32 = 0.7
	if req.Properties.Temperature != nil {
		temperature = float32(*req.Properties.Temperature)
	}

	body := buildRequestBody(model, plainMessages, maxTokens, temperature, req.Stream, a.ReasoningTokenMultiplier)

	// Re-attach full message list (including tool calls/tool results), which
	// buildRequestBody's simplified map[string]string shape can't express.
	body["messages"] = messages

	if req.Properties.TopP != nil {
		body["top_p"] = *req.Properties.TopP
	}
	if req.Properties.PresencePenalty != nil {
		body["presence_penalty"] = *req.Properties.PresencePenalty
	}
	if req.Properties.FrequencyPenalty != nil {
		body["frequency_penalty"] = *req.Properties.FrequencyPenalty
	}
	if req.Properties.ToolChoice != "" {
		body["tool_choice"] = req.Properties.ToolChoice
	}
	if req.Properties.ReasoningEffort != "" && IsReasoningModel(model) {
		body["reasoning_effort"] = req.Properties.ReasoningEffort
	}

	if len(req.Tools) > 0 {
		tools := make([]map[string]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":       adapter.MapToolName(t.Name),
					"parameters": t.InputSchema,
				},
			})
		}
		body["tools"] = tools
	}

	if req.StructuredOutput && req.OutputSchema != nil && adapter.IsSchemaCompatible(req.OutputSchema) {
		body["response_format"] = map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   "output",
				"schema": adapter.PrepareStructuredSchema(req.OutputSchema),
				"strict": true,
			},
		}
	} else if req.OutputSchema != nil {
		body["response_format"] = map[string]interface{}{"type": "json_object"}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}
	return &adapter.WireRequest{Body: raw, Raw: body}, nil
}

func (a *CanonicalAdapter) RequestHeaders(w *adapter.WireRequest, model string) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+a.APIKey)
	return h, nil
}

func (a *CanonicalAdapter) RequestURL(model string, stream bool) (string, error) {
	return a.BaseURL + "/chat/completions", nil
}

type respUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	PromptDetails    struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details"`
	CompletionDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
		AudioTokens     int `json:"audio_tokens"`
	} `json:"completion_tokens_details"`
}

type respBody struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []wireCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage respUsage `json:"usage"`
}

func (a *CanonicalAdapter) ParseResponse(resp *http.Response) (*adapter.ParsedResponse, error) {
	defer resp.Body.Close()
	var rb respBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(rb.Choices) == 0 {
		return nil, fmt.Errorf("openai: response has no choices")
	}
	choice := rb.Choices[0]

	out := &adapter.ParsedResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: adapter.Usage{
			PromptTokens:     rb.Usage.PromptTokens,
			CompletionTokens: rb.Usage.CompletionTokens,
			CachedTokens:     rb.Usage.PromptDetails.CachedTokens,
			ReasoningTokens:  rb.Usage.CompletionDetails.ReasoningTokens,
			AudioTokens:      rb.Usage.CompletionDetails.AudioTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, adapter.ToolCallRequest{
			ID:       tc.ID,
			ToolName: adapter.UnmapToolName(tc.Function.Name),
			Input:    json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *respUsage `json:"usage"`
}

func (a *CanonicalAdapter) ExtractStreamDelta(event adapter.SSEEvent, state *adapter.StreamState) (*adapter.Delta, error) {
	if bytes.Equal(bytes.TrimSpace(event.Data), []byte("[DONE]")) {
		return &adapter.Delta{Done: true}, nil
	}

	var chunk streamChunk
	if err := json.Unmarshal(event.Data, &chunk); err != nil {
		return nil, fmt.Errorf("openai: decode stream chunk: %w", err)
	}

	delta := &adapter.Delta{}
	if chunk.Usage != nil {
		delta.Usage = &adapter.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			CachedTokens:     chunk.Usage.PromptDetails.CachedTokens,
			ReasoningTokens:  chunk.Usage.CompletionDetails.ReasoningTokens,
			AudioTokens:      chunk.Usage.CompletionDetails.AudioTokens,
		}
	}
	if len(chunk.Choices) == 0 {
		return delta, nil
	}
	choice := chunk.Choices[0]
	delta.ContentDelta = choice.Delta.Content
	if choice.FinishReason != "" {
		delta.FinishReason = choice.FinishReason
	}

	for _, tc := range choice.Delta.ToolCalls {
		buf, ok := state.ToolCallBuffers[tc.Index]
		if !ok {
			buf = &adapter.ToolCallBuffer{}
			state.ToolCallBuffers[tc.Index] = buf
		}
		if tc.ID != "" {
			buf.ID = tc.ID
		}
		if tc.Function.Name != "" {
			buf.ToolName = adapter.UnmapToolName(tc.Function.Name)
		}
		buf.InputAccum += tc.Function.Arguments

		td := adapter.ToolCallDelta{Index: tc.Index, ID: buf.ID, ToolName: buf.ToolName, InputDelta: tc.Function.Arguments}
		var probe json.RawMessage
		if json.Unmarshal([]byte(buf.InputAccum), &probe) == nil {
			td.Complete = true
			td.Input = probe
		}
		delta.ToolCallDeltas = append(delta.ToolCallDeltas, td)
	}

	return delta, nil
}

func (a *CanonicalAdapter) StandardizeMessages(stored []adapter.Message) ([]adapter.Message, error) {
	// This gateway persists canonical messages directly rather than
	// provider-native wire bytes, so standardization is the identity
	// transform. Build's wire form is lossy: reasoning blocks are folded into
	// the message text, and image/audio/document blocks are not sent at all.
	return stored, nil
}

func (a *CanonicalAdapter) ClassifyError(resp *http.Response, body []byte) *adapter.Error {
	var errBody struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &errBody)

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		e := adapter.NewError(adapter.KindRateLimit, resp.StatusCode, errBody.Error.Message)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				e.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return e
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if errBody.Error.Type == "invalid_request_error" && strings.Contains(errBody.Error.Message, "image") {
			return adapter.NewError(adapter.KindInvalidFile, resp.StatusCode, errBody.Error.Message)
		}
		return adapter.NewError(adapter.KindInvalidRunOptions, resp.StatusCode, errBody.Error.Message)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return adapter.NewError(adapter.KindReadTimeout, resp.StatusCode, errBody.Error.Message)
	}
	if resp.StatusCode >= 500 {
		return adapter.NewError(adapter.KindProviderInternal, resp.StatusCode, errBody.Error.Message)
	}
	return adapter.NewError(adapter.KindInternal, resp.StatusCode, errBody.Error.Message)
}

func (a *CanonicalAdapter) RequiresDownloadingFile(f adapter.File, model string) bool {
	if f.Data != "" {
		return false
	}
	return f.Format == "audio" || f.Format == "document"
}

func (a *CanonicalAdapter) FinalizeCompletion(model string, completion *adapter.Completion, timeout time.Duration) (*adapter.Completion, error) {
	completion.Timestamp = time.Now()
	if completion.Response != nil && completion.Response.FinishReason == "length" {
		return completion, adapter.NewError(adapter.KindMaxTokensExceeded, 200, "provider truncated output at max_tokens")
	}
	return completion, nil
}
