package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/workflowai/gateway/adapter"
)

// CannedResponse is one scripted reply a CanonicalAdapter will hand back, in
// order, to successive Build+ParseResponse round-trips. It exists purely for
// runner/C4 and streaming/C5 tests: no real transport is involved.
type CannedResponse struct {
	Content        string
	ReasoningSteps []string
	ToolCalls      []adapter.ToolCallRequest
	FinishReason   string
	Usage          adapter.Usage
	Err            *adapter.Error
	// StreamDeltas, if set, makes ExtractStreamDelta replay these instead of
	// decoding event.Data, letting a test script a streaming completion
	// without hand-building SSE frames.
	StreamDeltas []adapter.Delta
}

// CanonicalAdapter implements adapter.Adapter with a fixed, caller-supplied
// script of responses. Safe for concurrent use across the fallback attempts a
// single test run may fire.
type CanonicalAdapter struct {
	mu        sync.Mutex
	Responses []CannedResponse
	index     int
	deltaIdx  map[string]int // keyed by a synthetic request fingerprint

	// Calls records every BuildRequest passed to Build, for test assertions
	// about exactly which messages/tools reached the adapter.
	Calls []adapter.BuildRequest
}

// NewCanonicalAdapter builds a scripted mock adapter.Adapter.
func NewCanonicalAdapter(responses ...CannedResponse) *CanonicalAdapter {
	return &CanonicalAdapter{Responses: responses, deltaIdx: make(map[string]int)}
}

var _ adapter.Adapter = (*CanonicalAdapter)(nil)

func (a *CanonicalAdapter) Name() string         { return "mock" }
func (a *CanonicalAdapter) DefaultModel() string { return "mock-model" }

// SetResponses replaces the script and resets the cursor.
func (a *CanonicalAdapter) SetResponses(responses ...CannedResponse) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Responses = responses
	a.index = 0
}

// CallCount reports how many times Build has been invoked.
func (a *CanonicalAdapter) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Calls)
}

type wireIndex struct {
	Index int `json:"index"`
}

func (a *CanonicalAdapter) Build(req adapter.BuildRequest) (*adapter.WireRequest, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls = append(a.Calls, req)

	if a.index >= len(a.Responses) {
		return nil, fmt.Errorf("mock: no scripted response left for call %d", a.index+1)
	}
	body, err := json.Marshal(wireIndex{Index: a.index})
	if err != nil {
		return nil, err
	}
	return &adapter.WireRequest{Body: body, Raw: req}, nil
}

func (a *CanonicalAdapter) RequestHeaders(w *adapter.WireRequest, model string) (http.Header, error) {
	return http.Header{"Content-Type": []string{"application/json"}}, nil
}

func (a *CanonicalAdapter) RequestURL(model string, stream bool) (string, error) {
	return "mock://canonical/" + model, nil
}

// ParseResponse consumes the next scripted response. It ignores resp's body
// and status entirely, matching index position against Build's WireRequest;
// callers that need an actual net/http round trip should serve
// NextCompletion's result from an httptest.Server instead of calling this
// directly.
func (a *CanonicalAdapter) ParseResponse(resp *http.Response) (*adapter.ParsedResponse, error) {
	defer resp.Body.Close()
	var idx wireIndex
	if err := json.NewDecoder(resp.Body).Decode(&idx); err != nil {
		return nil, fmt.Errorf("mock: decode response marker: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if idx.Index >= len(a.Responses) {
		return nil, fmt.Errorf("mock: response index %d out of range", idx.Index)
	}
	a.index = idx.Index + 1
	canned := a.Responses[idx.Index]
	return &adapter.ParsedResponse{
		Content:        canned.Content,
		ReasoningSteps: canned.ReasoningSteps,
		ToolCalls:      canned.ToolCalls,
		Usage:          canned.Usage,
		FinishReason:   canned.FinishReason,
	}, nil
}

// NextCompletion is the direct, non-HTTP entry point runner tests use: call
// Build to record the request and advance bookkeeping, then NextCompletion to
// fetch the scripted ParsedResponse/Error without round-tripping through
// net/http at all.
func (a *CanonicalAdapter) NextCompletion() (*adapter.ParsedResponse, *adapter.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.index >= len(a.Responses) {
		return nil, adapter.NewError(adapter.KindInternal, 500, "mock: no scripted response left")
	}
	canned := a.Responses[a.index]
	a.index++
	if canned.Err != nil {
		return nil, canned.Err
	}
	return &adapter.ParsedResponse{
		Content:        canned.Content,
		ReasoningSteps: canned.ReasoningSteps,
		ToolCalls:      canned.ToolCalls,
		Usage:          canned.Usage,
		FinishReason:   canned.FinishReason,
	}, nil
}

func (a *CanonicalAdapter) ExtractStreamDelta(event adapter.SSEEvent, state *adapter.StreamState) (*adapter.Delta, error) {
	var idx wireIndex
	if err := json.Unmarshal(event.Data, &idx); err != nil {
		return nil, fmt.Errorf("mock: decode stream marker: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if idx.Index >= len(a.Responses) {
		return nil, fmt.Errorf("mock: stream index %d out of range", idx.Index)
	}
	canned := a.Responses[idx.Index]

	key := fmt.Sprintf("%d", idx.Index)
	pos := a.deltaIdx[key]
	if pos >= len(canned.StreamDeltas) {
		return &adapter.Delta{Done: true}, nil
	}
	a.deltaIdx[key] = pos + 1
	d := canned.StreamDeltas[pos]
	return &d, nil
}

func (a *CanonicalAdapter) StandardizeMessages(stored []adapter.Message) ([]adapter.Message, error) {
	return stored, nil
}

func (a *CanonicalAdapter) ClassifyError(resp *http.Response, body []byte) *adapter.Error {
	return adapter.NewError(adapter.KindProviderInternal, resp.StatusCode, string(body))
}

func (a *CanonicalAdapter) RequiresDownloadingFile(f adapter.File, model string) bool {
	return false
}

func (a *CanonicalAdapter) FinalizeCompletion(model string, completion *adapter.Completion, timeout time.Duration) (*adapter.Completion, error) {
	completion.Timestamp = time.Now()
	return completion, nil
}
