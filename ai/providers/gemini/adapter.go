package gemini

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/workflowai/gateway/adapter"
)

// CanonicalAdapter implements adapter.Adapter for Google's GenerateContent
// API. It is the C3 entry point the runner (C4) drives through the
// adapter.Adapter interface.
type CanonicalAdapter struct {
	APIKey  string
	BaseURL string
}

// NewCanonicalAdapter builds a Gemini adapter.Adapter.
func NewCanonicalAdapter(apiKey, baseURL string) *CanonicalAdapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CanonicalAdapter{APIKey: apiKey, BaseURL: baseURL}
}

var _ adapter.Adapter = (*CanonicalAdapter)(nil)

func (a *CanonicalAdapter) Name() string         { return "gemini" }
func (a *CanonicalAdapter) DefaultModel() string { return "gemini-1.5-flash" }

type wirePart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     *wireCall       `json:"functionCall,omitempty"`
	FunctionResponse *wireCallResult `json:"functionResponse,omitempty"`
	InlineData       *wireInline     `json:"inlineData,omitempty"`
}

type wireCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type wireCallResult struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type wireInline struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireContent struct {
	Role  string     `json:"role"` // "user" or "model"
	Parts []wirePart `json:"parts"`
}

func toWireContents(msgs []adapter.Message) (system string, out []wireContent) {
	for _, m := range msgs {
		if m.Role == adapter.RoleSystem {
			system += m.Text()
			continue
		}
		role := "user"
		if m.Role == adapter.RoleAssistant {
			role = "model"
		}
		wc := wireContent{Role: role}
		for _, b := range m.Content {
			switch b.Kind {
			case adapter.BlockText:
				wc.Parts = append(wc.Parts, wirePart{Text: b.Text})
			case adapter.BlockToolCallRequest:
				wc.Parts = append(wc.Parts, wirePart{FunctionCall: &wireCall{Name: adapter.MapToolName(b.ToolName), Args: b.ToolInput}})
			case adapter.BlockToolCallResult:
				var resp map[string]interface{}
				_ = json.Unmarshal(b.ToolResult, &resp)
				if resp == nil {
					resp = map[string]interface{}{"error": b.ToolError}
				}
				wc.Parts = append(wc.Parts, wirePart{FunctionResponse: &wireCallResult{Name: adapter.MapToolName(b.ToolName), Response: resp}})
			case adapter.BlockImage, adapter.BlockAudio, adapter.BlockDocument:
				if b.File != nil && b.File.Data != "" {
					wc.Parts = append(wc.Parts, wirePart{InlineData: &wireInline{MimeType: b.File.ContentType, Data: b.File.Data}})
				}
			}
		}
		out = append(out, wc)
	}
	return system, out
}

func (a *CanonicalAdapter) Build(req adapter.BuildRequest) (*adapter.WireRequest, error) {
	system, contents := toWireContents(req.Messages)

	genConfig := map[string]interface{}{}
	if req.Properties.Temperature != nil {
		genConfig["temperature"] = *req.Properties.Temperature
	}
	if req.Properties.TopP != nil {
		genConfig["topP"] = *req.Properties.TopP
	}
	if req.Properties.MaxTokens != nil {
		genConfig["maxOutputTokens"] = *req.Properties.MaxTokens
	}

	body := map[string]interface{}{"contents": contents}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}
	if system != "" {
		body["systemInstruction"] = wireContent{Parts: []wirePart{{Text: system}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]map[string]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, map[string]interface{}{
				"name":       adapter.MapToolName(t.Name),
				"parameters": t.InputSchema,
			})
		}
		body["tools"] = []map[string]interface{}{{"functionDeclarations": decls}}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}
	return &adapter.WireRequest{Body: raw, Raw: body}, nil
}

func (a *CanonicalAdapter) RequestHeaders(w *adapter.WireRequest, model string) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h, nil
}

func (a *CanonicalAdapter) RequestURL(model string, stream bool) (string, error) {
	method := "generateContent"
	if stream {
		method = "streamGenerateContent?alt=sse"
	}
	sep := "?"
	if stream {
		sep = "&"
	}
	return fmt.Sprintf("%s/models/%s:%s%skey=%s", a.BaseURL, model, method, sep, a.APIKey), nil
}

type wireResponse struct {
	Candidates []struct {
		Content      wireContent `json:"content"`
		FinishReason string      `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata UsageMetadata `json:"usageMetadata"`
}

func (a *CanonicalAdapter) ParseResponse(resp *http.Response) (*adapter.ParsedResponse, error) {
	defer resp.Body.Close()
	var rb wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	if len(rb.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: response has no candidates")
	}
	cand := rb.Candidates[0]
	out := &adapter.ParsedResponse{
		FinishReason: cand.FinishReason,
		Usage: adapter.Usage{
			PromptTokens:     rb.UsageMetadata.PromptTokenCount,
			CompletionTokens: rb.UsageMetadata.CandidatesTokenCount,
		},
	}
	for _, p := range cand.Content.Parts {
		if p.Text != "" {
			out.Content += p.Text
		}
		if p.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, adapter.ToolCallRequest{
				ToolName: adapter.UnmapToolName(p.FunctionCall.Name),
				Input:    p.FunctionCall.Args,
			})
		}
	}
	return out, nil
}

func (a *CanonicalAdapter) ExtractStreamDelta(event adapter.SSEEvent, state *adapter.StreamState) (*adapter.Delta, error) {
	if len(bytes.TrimSpace(event.Data)) == 0 {
		return &adapter.Delta{}, nil
	}
	var chunk struct {
		Candidates []struct {
			Content      wireContent `json:"content"`
			FinishReason string      `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata *UsageMetadata `json:"usageMetadata"`
	}
	if err := json.Unmarshal(event.Data, &chunk); err != nil {
		return nil, fmt.Errorf("gemini: decode stream chunk: %w", err)
	}

	delta := &adapter.Delta{}
	if chunk.UsageMetadata != nil {
		delta.Usage = &adapter.Usage{
			PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
			CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
		}
	}
	if len(chunk.Candidates) == 0 {
		return delta, nil
	}
	cand := chunk.Candidates[0]
	if cand.FinishReason != "" {
		delta.FinishReason = cand.FinishReason
		delta.Done = true
	}
	for i, p := range cand.Content.Parts {
		if p.Text != "" {
			delta.ContentDelta += p.Text
		}
		if p.FunctionCall != nil {
			delta.ToolCallDeltas = append(delta.ToolCallDeltas, adapter.ToolCallDelta{
				Index: i, ToolName: adapter.UnmapToolName(p.FunctionCall.Name),
				Complete: true, Input: p.FunctionCall.Args,
			})
		}
	}
	return delta, nil
}

func (a *CanonicalAdapter) StandardizeMessages(stored []adapter.Message) ([]adapter.Message, error) {
	return stored, nil
}

func (a *CanonicalAdapter) ClassifyError(resp *http.Response, body []byte) *adapter.Error {
	var errBody ErrorResponse
	_ = json.Unmarshal(body, &errBody)

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return adapter.NewError(adapter.KindRateLimit, resp.StatusCode, errBody.Error.Message)
	case http.StatusBadRequest:
		return adapter.NewError(adapter.KindInvalidRunOptions, resp.StatusCode, errBody.Error.Message)
	}
	if resp.StatusCode >= 500 {
		return adapter.NewError(adapter.KindProviderInternal, resp.StatusCode, errBody.Error.Message)
	}
	return adapter.NewError(adapter.KindInternal, resp.StatusCode, errBody.Error.Message)
}

func (a *CanonicalAdapter) RequiresDownloadingFile(f adapter.File, model string) bool {
	return f.Data == ""
}

func (a *CanonicalAdapter) FinalizeCompletion(model string, completion *adapter.Completion, timeout time.Duration) (*adapter.Completion, error) {
	completion.Timestamp = time.Now()
	if completion.Response != nil && completion.Response.FinishReason == "MAX_TOKENS" {
		return completion, adapter.NewError(adapter.KindMaxTokensExceeded, 200, "provider truncated output at max tokens")
	}
	return completion, nil
}
