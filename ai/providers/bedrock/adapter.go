//go:build bedrock
// +build bedrock

package bedrock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/workflowai/gateway/adapter"
)

// CanonicalAdapter implements adapter.Adapter for AWS Bedrock's Converse API,
// targeting the API's REST JSON shape (the same shape the bedrockruntime SDK
// marshals for Converse/ConverseStream) rather than going through the SDK
// client directly, so it can be driven by the same HTTP-based runner as every
// other provider. SigV4 signing of the built request is the caller's
// responsibility (an aws-signing http.RoundTripper), since RequestHeaders
// alone cannot compute a SigV4 signature without the request body and URL
// being finalized first.
type CanonicalAdapter struct {
	Region  string
	BaseURL string // e.g. https://bedrock-runtime.<region>.amazonaws.com
}

// NewCanonicalAdapter builds a Bedrock adapter.Adapter.
func NewCanonicalAdapter(region, baseURL string) *CanonicalAdapter {
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", region)
	}
	return &CanonicalAdapter{Region: region, BaseURL: baseURL}
}

var _ adapter.Adapter = (*CanonicalAdapter)(nil)

func (a *CanonicalAdapter) Name() string         { return "bedrock" }
func (a *CanonicalAdapter) DefaultModel() string { return ModelClaude3Sonnet }

type wireBlock struct {
	Text      string          `json:"text,omitempty"`
	ToolUse   *wireToolUse    `json:"toolUse,omitempty"`
	ToolResult *wireToolResult `json:"toolResult,omitempty"`
	Image     *wireImage      `json:"image,omitempty"`
}

type wireToolUse struct {
	ToolUseID string          `json:"toolUseId"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
}

type wireToolResult struct {
	ToolUseID string      `json:"toolUseId"`
	Content   []wireBlock `json:"content"`
	Status    string      `json:"status,omitempty"`
}

type wireImage struct {
	Format string          `json:"format"`
	Source wireImageSource `json:"source"`
}

type wireImageSource struct {
	Bytes string `json:"bytes"`
}

type wireMsg struct {
	Role    string      `json:"role"` // "user" or "assistant"
	Content []wireBlock `json:"content"`
}

func toWireMessages(msgs []adapter.Message) (system []wireBlock, out []wireMsg) {
	for _, m := range msgs {
		if m.Role == adapter.RoleSystem {
			if t := m.Text(); t != "" {
				system = append(system, wireBlock{Text: t})
			}
			continue
		}
		role := "user"
		if m.Role == adapter.RoleAssistant {
			role = "assistant"
		}
		wm := wireMsg{Role: role}
		for _, b := range m.Content {
			switch b.Kind {
			case adapter.BlockText:
				wm.Content = append(wm.Content, wireBlock{Text: b.Text})
			case adapter.BlockToolCallRequest:
				wm.Content = append(wm.Content, wireBlock{ToolUse: &wireToolUse{
					ToolUseID: b.ToolCallID, Name: adapter.MapToolName(b.ToolName), Input: b.ToolInput,
				}})
			case adapter.BlockToolCallResult:
				res := wireToolResult{ToolUseID: b.ToolCallID, Content: []wireBlock{{Text: string(b.ToolResult)}}}
				if b.ToolError != "" {
					res.Status = "error"
					res.Content = []wireBlock{{Text: b.ToolError}}
				}
				wm.Content = append(wm.Content, wireBlock{ToolResult: &res})
			case adapter.BlockImage:
				if b.File != nil && b.File.Data != "" {
					wm.Content = append(wm.Content, wireBlock{Image: &wireImage{
						Format: b.File.Format,
						Source: wireImageSource{Bytes: b.File.Data},
					}})
				}
			}
		}
		out = append(out, wm)
	}
	return system, out
}

func (a *CanonicalAdapter) Build(req adapter.BuildRequest) (*adapter.WireRequest, error) {
	system, messages := toWireMessages(req.Messages)

	inferenceConfig := map[string]interface{}{}
	if req.Properties.MaxTokens != nil {
		inferenceConfig["maxTokens"] = *req.Properties.MaxTokens
	}
	if req.Properties.Temperature != nil {
		inferenceConfig["temperature"] = *req.Properties.Temperature
	}
	if req.Properties.TopP != nil {
		inferenceConfig["topP"] = *req.Properties.TopP
	}

	body := map[string]interface{}{"messages": messages}
	if len(system) > 0 {
		body["system"] = system
	}
	if len(inferenceConfig) > 0 {
		body["inferenceConfig"] = inferenceConfig
	}
	if len(req.Tools) > 0 {
		specs := make([]map[string]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			specs = append(specs, map[string]interface{}{
				"toolSpec": map[string]interface{}{
					"name":        adapter.MapToolName(t.Name),
					"inputSchema": map[string]interface{}{"json": t.InputSchema},
				},
			})
		}
		body["toolConfig"] = map[string]interface{}{"tools": specs}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal request: %w", err)
	}
	return &adapter.WireRequest{Body: raw, Raw: body}, nil
}

func (a *CanonicalAdapter) RequestHeaders(w *adapter.WireRequest, model string) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h, nil
}

func (a *CanonicalAdapter) RequestURL(model string, stream bool) (string, error) {
	action := "converse"
	if stream {
		action = "converse-stream"
	}
	return fmt.Sprintf("%s/model/%s/%s", a.BaseURL, model, action), nil
}

type wireResponse struct {
	Output struct {
		Message wireMsg `json:"message"`
	} `json:"output"`
	StopReason string `json:"stopReason"`
	Usage      struct {
		InputTokens  int `json:"inputTokens"`
		OutputTokens int `json:"outputTokens"`
	} `json:"usage"`
}

func (a *CanonicalAdapter) ParseResponse(resp *http.Response) (*adapter.ParsedResponse, error) {
	defer resp.Body.Close()
	var rb wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return nil, fmt.Errorf("bedrock: decode response: %w", err)
	}

	out := &adapter.ParsedResponse{
		FinishReason: rb.StopReason,
		Usage: adapter.Usage{
			PromptTokens:     rb.Usage.InputTokens,
			CompletionTokens: rb.Usage.OutputTokens,
		},
	}
	for _, block := range rb.Output.Message.Content {
		if block.Text != "" {
			out.Content += block.Text
		}
		if block.ToolUse != nil {
			out.ToolCalls = append(out.ToolCalls, adapter.ToolCallRequest{
				ID: block.ToolUse.ToolUseID, ToolName: adapter.UnmapToolName(block.ToolUse.Name), Input: block.ToolUse.Input,
			})
		}
	}
	return out, nil
}

// ConverseStream frames its events as AWS EventStream binary records, each
// carrying a JSON payload under an `:event-type` header (contentBlockDelta,
// messageStop, metadata, ...). The transport layer is expected to have
// already decoded each record into an SSEEvent whose Data is that JSON
// payload and whose event type has been folded into the payload as
// `__eventType` by the time it reaches this adapter.
type wireStreamEvent struct {
	EventType string `json:"__eventType"`
	Delta     struct {
		Text    string `json:"text"`
		ToolUse struct {
			Input string `json:"input"`
		} `json:"toolUse"`
	} `json:"delta"`
	ContentBlockIndex int `json:"contentBlockIndex"`
	Start             struct {
		ToolUse struct {
			ToolUseID string `json:"toolUseId"`
			Name      string `json:"name"`
		} `json:"toolUse"`
	} `json:"start"`
	StopReason string `json:"stopReason"`
	Usage      struct {
		InputTokens  int `json:"inputTokens"`
		OutputTokens int `json:"outputTokens"`
	} `json:"usage"`
}

func (a *CanonicalAdapter) ExtractStreamDelta(event adapter.SSEEvent, state *adapter.StreamState) (*adapter.Delta, error) {
	var ev wireStreamEvent
	if err := json.Unmarshal(event.Data, &ev); err != nil {
		return nil, fmt.Errorf("bedrock: decode stream event: %w", err)
	}

	delta := &adapter.Delta{}
	switch ev.EventType {
	case "messageStop":
		delta.Done = true
		delta.FinishReason = ev.StopReason
	case "metadata":
		delta.Usage = &adapter.Usage{PromptTokens: ev.Usage.InputTokens, CompletionTokens: ev.Usage.OutputTokens}
	case "contentBlockStart":
		if ev.Start.ToolUse.ToolUseID != "" {
			state.ToolCallBuffers[ev.ContentBlockIndex] = &adapter.ToolCallBuffer{
				ID: ev.Start.ToolUse.ToolUseID, ToolName: adapter.UnmapToolName(ev.Start.ToolUse.Name),
			}
		}
	case "contentBlockDelta":
		if ev.Delta.Text != "" {
			delta.ContentDelta = ev.Delta.Text
		}
		if ev.Delta.ToolUse.Input != "" {
			buf, ok := state.ToolCallBuffers[ev.ContentBlockIndex]
			if !ok {
				buf = &adapter.ToolCallBuffer{}
				state.ToolCallBuffers[ev.ContentBlockIndex] = buf
			}
			buf.InputAccum += ev.Delta.ToolUse.Input
			td := adapter.ToolCallDelta{Index: ev.ContentBlockIndex, ID: buf.ID, ToolName: buf.ToolName, InputDelta: ev.Delta.ToolUse.Input}
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
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &errBody)

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return adapter.NewError(adapter.KindRateLimit, resp.StatusCode, errBody.Message)
	case http.StatusBadRequest:
		return adapter.NewError(adapter.KindInvalidRunOptions, resp.StatusCode, errBody.Message)
	case http.StatusRequestTimeout:
		return adapter.NewError(adapter.KindReadTimeout, resp.StatusCode, errBody.Message)
	}
	if resp.StatusCode >= 500 {
		return adapter.NewError(adapter.KindProviderInternal, resp.StatusCode, errBody.Message)
	}
	return adapter.NewError(adapter.KindInternal, resp.StatusCode, errBody.Message)
}

func (a *CanonicalAdapter) RequiresDownloadingFile(f adapter.File, model string) bool {
	return f.Data == ""
}

func (a *CanonicalAdapter) FinalizeCompletion(model string, completion *adapter.Completion, timeout time.Duration) (*adapter.Completion, error) {
	completion.Timestamp = time.Now()
	if completion.Response != nil && completion.Response.FinishReason == "max_tokens" {
		return completion, adapter.NewError(adapter.KindMaxTokensExceeded, 200, "provider truncated output at max tokens")
	}
	return completion, nil
}
