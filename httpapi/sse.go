package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/store"
	"github.com/workflowai/gateway/stream"
)

// writeSSEChunk frames one streaming aggregator Chunk as an OpenAI-shaped
// `data: {...}\n\n` event (§6 "SSE framing"). delta is the incremental text
// since the previous chunk (Chunk.Content is the cumulative aggregate);
// newToolCalls carries only the tool calls that completed since the last
// chunk, so a caller accumulating tool_calls across events never sees the
// same call twice.
//
// When opts.ValidJSONChunks is set, a chunk whose aggregate content is not
// yet parseable JSON is dropped rather than sent (§6 "switches the stream to
// emit only deltas that preserve parseable JSON"); the final chunk always
// carries the fully validated output regardless.
func writeSSEChunk(w http.ResponseWriter, runID, model string, chunk stream.Chunk, delta string, newToolCalls []adapter.ToolCallRequest, opts *StreamOptions) {
	if opts != nil && opts.ValidJSONChunks && !chunk.Final && chunk.StructuredOutput == nil {
		return
	}

	wireDelta := ChunkDelta{Content: delta}
	if chunk.Content != "" && delta == chunk.Content {
		wireDelta.Role = "assistant"
	}
	for _, tc := range newToolCalls {
		wc := WireToolCall{ID: tc.ID, Type: "function"}
		wc.Function.Name = tc.ToolName
		wc.Function.Arguments = string(tc.Input)
		wireDelta.ToolCalls = append(wireDelta.ToolCalls, wc)
	}

	var finishReason *string
	if chunk.Final {
		fr := chunk.FinishReason
		if fr == "" {
			fr = "stop"
		}
		finishReason = &fr
	}

	out := ChatCompletionChunk{
		ID:      runID,
		Object:  "chat.completion.chunk",
		Model:   model,
		Choices: []ChunkChoice{{Index: 0, Delta: wireDelta, FinishReason: finishReason}},
	}
	writeSSEData(w, out)

	if chunk.Final && chunk.Err != nil {
		writeSSEError(w, chunk.Err)
	}
}

// writeSSEError renders err as a terminal `data:` error event (§7 "For
// streams, any error after the first chunk is emitted as a terminal error
// event").
func writeSSEError(w http.ResponseWriter, err error) {
	kind, message := "internal", err.Error()
	if e, ok := err.(*adapter.Error); ok {
		kind, message = string(e.Kind), e.Message
	}
	writeSSEData(w, ErrorResponse{Error: ErrorBody{Message: message, Type: kind, Code: kind}})
}

func writeSSEData(w http.ResponseWriter, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

// writeCachedResponse renders a previously-completed run verbatim as a
// non-streaming response, for the cache-hit path (`use_cache` auto or
// always, §4.7): no
// provider call is made, so there is no fresh adapter.ParsedResponse to
// render from, only the persisted record.
func writeCachedResponse(w http.ResponseWriter, agentID string, run *store.Run) {
	content, toolCalls := splitCachedOutput(run.TaskOutput)

	resp := ChatCompletionResponse{
		ID:              agentID + "/" + run.ID,
		Object:          "chat.completion",
		Created:         run.CreatedAt.Unix(),
		Model:           run.Model,
		Choices:         []Choice{{Index: 0, Message: ChoiceMessage{Role: "assistant", Content: content, ToolCalls: toolCalls}, FinishReason: "stop"}},
		Usage:           toWireUsage(run.Usage),
		DurationSeconds: run.Duration.Seconds(),
	}
	if run.CostUSD != nil {
		resp.CostUSD = run.CostUSD
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func splitCachedOutput(taskOutput interface{}) (string, []WireToolCall) {
	m, ok := taskOutput.(map[string]interface{})
	if !ok {
		return "", nil
	}
	content, _ := m["content"].(string)
	return content, nil
}
