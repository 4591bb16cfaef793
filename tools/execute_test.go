package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/core"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name: name,
		Run: func(ctx context.Context, input json.RawMessage) (interface{}, *core.ToolError) {
			var m map[string]interface{}
			_ = json.Unmarshal(input, &m)
			return m, nil
		},
	}
}

func TestExecute_UnknownToolFails(t *testing.T) {
	r := New(echoTool("@known"))
	call := r.Execute(context.Background(), adapter.ToolCallRequest{ID: "1", ToolName: "@mystery", Input: json.RawMessage(`{}`)})
	require.NotNil(t, call.Error)
	assert.Equal(t, "UNKNOWN_TOOL", call.Error.Code)
}

func TestExecute_KnownToolRuns(t *testing.T) {
	r := New(echoTool("@known"))
	call := r.Execute(context.Background(), adapter.ToolCallRequest{ID: "1", ToolName: "@known", Input: json.RawMessage(`{"x":1}`)})
	require.Nil(t, call.Error)
	assert.JSONEq(t, `{"x":1}`, string(call.Result))
}

func TestExecute_ToolErrorPropagates(t *testing.T) {
	failing := &Tool{
		Name: "@fails",
		Run: func(ctx context.Context, input json.RawMessage) (interface{}, *core.ToolError) {
			return nil, &core.ToolError{Code: "BOOM", Message: "nope", Category: core.CategoryServiceError}
		},
	}
	r := New(failing)
	call := r.Execute(context.Background(), adapter.ToolCallRequest{ID: "1", ToolName: "@fails", Input: json.RawMessage(`{}`)})
	require.NotNil(t, call.Error)
	assert.Equal(t, "BOOM", call.Error.Code)
}

func TestExecuteAll_PreservesOrder(t *testing.T) {
	r := New(echoTool("@a"), echoTool("@b"))
	reqs := []adapter.ToolCallRequest{
		{ID: "1", ToolName: "@a", Input: json.RawMessage(`{"n":1}`)},
		{ID: "2", ToolName: "@b", Input: json.RawMessage(`{"n":2}`)},
	}
	calls := r.ExecuteAll(context.Background(), reqs)
	require.Len(t, calls, 2)
	assert.Equal(t, "1", calls[0].ID)
	assert.Equal(t, "2", calls[1].ID)
}

func TestClassifyRequest(t *testing.T) {
	r := New(echoTool("@known"))

	internal, known := r.ClassifyRequest("@known")
	assert.True(t, internal)
	assert.True(t, known)

	internal, known = r.ClassifyRequest("@mystery")
	assert.True(t, internal)
	assert.False(t, known)

	internal, known = r.ClassifyRequest("external_tool")
	assert.False(t, internal)
	assert.False(t, known)
}
