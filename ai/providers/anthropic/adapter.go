package anthropic

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

// CanonicalAdapter implements adapter.Adapter for Anthropic's Messages API.
// It is the C3 entry point the runner (C4) drives through the
// adapter.Adapter interface.
type CanonicalAdapter struct {
	APIKey  string
	BaseURL string
}

// NewCanonicalAdapter builds an Anthropic adapter.Adapter.
func NewCanonicalAdapter(apiKey, baseURL string) *CanonicalAdapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CanonicalAdapter{APIKey: apiKey, BaseURL: baseURL}
}

var _ adapter.Adapter = (*CanonicalAdapter)(nil)

func (a *CanonicalAdapter) Name() string         { return "anthropic" }
func (a *CanonicalAdapter) DefaultModel() string { return resolveModel("default") }

type wireContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Source    *wireSource     `json:"source,omitempty"`
}

type wireSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type wireMessage struct {
	Role    string              `json:"role"`
	Content []wireContentBlock  `json:"content"`
}

func toWireMessages(msgs []adapter.Message) (system string, out []wireMessage) {
	for _, m := range msgs {
		if m.Role == adapter.RoleSystem {
			system += m.Text()
			continue
		}
		wm := wireMessage{Role: string(m.Role)}
		for _, b := range m.Content {
			switch b.Kind {
			case adapter.BlockText:
				wm.Content = append(wm.Content, wireContentBlock{Type: "text", Text: b.Text})
			case adapter.BlockToolCallRequest:
				wm.Content = append(wm.Content, wireContentBlock{Type: "tool_use", ID: b.ToolCallID, Name: adapter.MapToolName(b.ToolName), Input: b.ToolInput})
			case adapter.BlockToolCallResult:
				wm.Role = "user"
				content := string(b.ToolResult)
				isErr := false
				if b.ToolError != "" {
					content = b.ToolError
					isErr = true
				}
				wm.Content = append(wm.Content, wireContentBlock{Type: "tool_result", ToolUseID: b.ToolCallID, Content: content, IsError: isErr})
			case adapter.BlockImage, adapter.BlockDocument:
				if b.File != nil {
					src := &wireSource{}
					if b.File.Data != "" {
						src.Type = "base64"
						src.MediaType = b.File.ContentType
						src.Data = b.File.Data
					} else {
						src.Type = "url"
						src.URL = b.File.URL
					}
					wm.Content = append(wm.Content, wireContentBlock{Type: string(b.Kind), Source: src})
				}
			}
		}
		out = append(out, wm)
	}
	return system, out
}

func (a *CanonicalAdapter) Build(req adapter.BuildRequest) (*adapter.WireRequest, error) {
	model := resolveModel(req.Properties.Model)
	system, messages := toWireMessages(req.Messages)

	maxTokens := 1000
	if req.Properties.MaxTokens != nil {
		maxTokens = *req.Properties.MaxTokens
	}

	body := map[string]interface{}{
		"model":      model,
		"messages":   messages,
		"max_tokens": maxTokens,
		"stream":     req.Stream,
	}
	if system != "" {
		body["system"] = system
	}
	if req.Properties.Temperature != nil {
		body["temperature"] = *req.Properties.Temperature
	}
	if req.Properties.TopP != nil {
		body["top_p"] = *req.Properties.TopP
	}

	if len(req.Tools) > 0 {
		tools := make([]map[string]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]interface{}{
				"name":         adapter.MapToolName(t.Name),
				"input_schema": t.InputSchema,
			})
		}
		body["tools"] = tools
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}
	return &adapter.WireRequest{Body: raw, Raw: body}, nil
}

func (a *CanonicalAdapter) RequestHeaders(w *adapter.WireRequest, model string) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("x-api-key", a.APIKey)
	h.Set("anthropic-version", APIVersion)
	return h, nil
}

func (a *CanonicalAdapter) RequestURL(model string, stream bool) (string, error) {
	return a.BaseURL + "/messages", nil
}

type respBody struct {
	Content    []wireContentBlock `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	} `json:"usage"`
}

func (a *CanonicalAdapter) ParseResponse(resp *http.Response) (*adapter.ParsedResponse, error) {
	defer resp.Body.Close()
	var rb respBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}

	out := &adapter.ParsedResponse{
		FinishReason: rb.StopReason,
		Usage: adapter.Usage{
			PromptTokens:     rb.Usage.InputTokens,
			CompletionTokens: rb.Usage.OutputTokens,
			CachedTokens:     rb.Usage.CacheReadInputTokens,
		},
	}
	for _, block := range rb.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "thinking":
			out.ReasoningSteps = append(out.ReasoningSteps, block.Text)
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, adapter.ToolCallRequest{
				ID:       block.ID,
				ToolName: adapter.UnmapToolName(block.Name),
				Input:    block.Input,
			})
		}
	}
	return out, nil
}

type streamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	ContentBlock *wireContentBlock `json:"content_block"`
	Usage        *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Message *struct {
		Usage struct {
			InputTokens          int `json:"input_tokens"`
			CacheReadInputTokens int `json:"cache_read_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

func (a *CanonicalAdapter) ExtractStreamDelta(event adapter.SSEEvent, state *adapter.StreamState) (*adapter.Delta, error) {
	if len(bytes.TrimSpace(event.Data)) == 0 {
		return &adapter.Delta{}, nil
	}
	var ev streamEvent
	if err := json.Unmarshal(event.Data, &ev); err != nil {
		return nil, fmt.Errorf("anthropic: decode stream event: %w", err)
	}

	delta := &adapter.Delta{}
	switch ev.Type {
	case "message_stop":
		delta.Done = true
	case "message_delta":
		if ev.Delta.StopReason != "" {
			delta.FinishReason = ev.Delta.StopReason
		}
		if ev.Usage != nil {
			delta.Usage = &adapter.Usage{CompletionTokens: ev.Usage.OutputTokens}
		}
	case "message_start":
		if ev.Message != nil {
			delta.Usage = &adapter.Usage{
				PromptTokens: ev.Message.Usage.InputTokens,
				CachedTokens: ev.Message.Usage.CacheReadInputTokens,
			}
		}
	case "content_block_start":
		if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
			state.ToolCallBuffers[ev.Index] = &adapter.ToolCallBuffer{
				ID: ev.ContentBlock.ID, ToolName: adapter.UnmapToolName(ev.ContentBlock.Name),
			}
		}
	case "content_block_delta":
		switch ev.Delta.Type {
		case "text_delta":
			delta.ContentDelta = ev.Delta.Text
		case "thinking_delta":
			delta.ReasoningDelta = ev.Delta.Text
		case "input_json_delta":
			buf, ok := state.ToolCallBuffers[ev.Index]
			if !ok {
				buf = &adapter.ToolCallBuffer{}
				state.ToolCallBuffers[ev.Index] = buf
			}
			buf.InputAccum += ev.Delta.PartialJSON
			td := adapter.ToolCallDelta{Index: ev.Index, ID: buf.ID, ToolName: buf.ToolName, InputDelta: ev.Delta.PartialJSON}
			var probe json.RawMessage
			if buf.InputAccum != "" && json.Unmarshal([]byte(buf.InputAccum), &probe) == nil {
				td.Complete = true
				td.Input = probe
			}
			delta.ToolCallDeltas = append(delta.ToolCallDeltas, td)
		}
	}
	return delta, nil
}

func (a *CanonicalAdapter) StandardizeMessages(stored []adapter.Message) ([]adapter.Message, error) {
	return stored, nil
}

func (a *CanonicalAdapter) ClassifyError(resp *http.Response, body []byte) *adapter.Error {
	var errBody struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &errBody)

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		e := adapter.NewError(adapter.KindRateLimit, resp.StatusCode, errBody.Error.Message)
		if ra := resp.Header.Get("retry-after"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				e.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return e
	case http.StatusBadRequest:
		if strings.Contains(errBody.Error.Message, "image") {
			return adapter.NewError(adapter.KindInvalidFile, resp.StatusCode, errBody.Error.Message)
		}
		return adapter.NewError(adapter.KindInvalidRunOptions, resp.StatusCode, errBody.Error.Message)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return adapter.NewError(adapter.KindReadTimeout, resp.StatusCode, errBody.Error.Message)
	}
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode >= 500 {
		return adapter.NewError(adapter.KindProviderInternal, resp.StatusCode, errBody.Error.Message)
	}
	return adapter.NewError(adapter.KindInternal, resp.StatusCode, errBody.Error.Message)
}

func (a *CanonicalAdapter) RequiresDownloadingFile(f adapter.File, model string) bool {
	// Anthropic accepts http(s) URLs directly for images as of the 2023-06-01
	// API version's image-url source type; documents still require base64.
	return f.Data == "" && f.Format == "document"
}

func (a *CanonicalAdapter) FinalizeCompletion(model string, completion *adapter.Completion, timeout time.Duration) (*adapter.Completion, error) {
	completion.Timestamp = time.Now()
	if completion.Response != nil && completion.Response.FinishReason == "max_tokens" {
		return completion, adapter.NewError(adapter.KindMaxTokensExceeded, 200, "provider truncated output at max_tokens")
	}
	return completion, nil
}
