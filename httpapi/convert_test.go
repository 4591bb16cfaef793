package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowai/gateway/adapter"
)

func TestToCanonicalMessages_PlainText(t *testing.T) {
	wire := []WireMessage{
		{Role: "user", Content: json.RawMessage(`"Hello, world!"`)},
	}

	got, err := toCanonicalMessages(wire)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, adapter.RoleUser, got[0].Role)
	require.Len(t, got[0].Content, 1)
	assert.Equal(t, "Hello, world!", got[0].Content[0].Text)
}

func TestToCanonicalMessages_ContentParts(t *testing.T) {
	wire := []WireMessage{
		{Role: "user", Content: json.RawMessage(`[{"type":"text","text":"a"},{"type":"text","text":"b"}]`)},
	}

	got, err := toCanonicalMessages(wire)
	require.NoError(t, err)
	assert.Equal(t, "ab", got[0].Content[0].Text)
}

func TestToCanonicalMessages_ToolCallRequest(t *testing.T) {
	wire := []WireMessage{
		{
			Role: "assistant",
			ToolCalls: []WireToolCall{
				{ID: "call_1", Type: "function"},
			},
		},
	}
	wire[0].ToolCalls[0].Function.Name = "search"
	wire[0].ToolCalls[0].Function.Arguments = `{"q":"cats"}`

	got, err := toCanonicalMessages(wire)
	require.NoError(t, err)
	require.Len(t, got[0].Content, 1)
	block := got[0].Content[0]
	assert.Equal(t, adapter.BlockToolCallRequest, block.Kind)
	assert.Equal(t, "call_1", block.ToolCallID)
	assert.Equal(t, "search", block.ToolName)
	assert.JSONEq(t, `{"q":"cats"}`, string(block.ToolInput))
}

func TestToCanonicalMessages_ToolResult(t *testing.T) {
	wire := []WireMessage{
		{Role: "tool", ToolCallID: "call_1", Content: json.RawMessage(`"42"`)},
	}

	got, err := toCanonicalMessages(wire)
	require.NoError(t, err)
	require.Len(t, got[0].Content, 1)
	block := got[0].Content[0]
	assert.Equal(t, adapter.BlockToolCallResult, block.Kind)
	assert.Equal(t, "call_1", block.ToolCallID)
	assert.Equal(t, "42", string(block.ToolResult))
}

func TestToCanonicalMessages_InvalidContentErrors(t *testing.T) {
	wire := []WireMessage{
		{Role: "user", Content: json.RawMessage(`{not json`)},
	}
	_, err := toCanonicalMessages(wire)
	assert.Error(t, err)
}

func TestFromCanonicalMessage_RendersToolCalls(t *testing.T) {
	resp := &adapter.ParsedResponse{
		Content: "hi",
		ToolCalls: []adapter.ToolCallRequest{
			{ID: "call_2", ToolName: "lookup", Input: json.RawMessage(`{"x":1}`)},
		},
	}

	msg := fromCanonicalMessage(resp)
	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "hi", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_2", msg.ToolCalls[0].ID)
	assert.Equal(t, "lookup", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"x":1}`, msg.ToolCalls[0].Function.Arguments)
}
