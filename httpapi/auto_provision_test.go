package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveAutoProvisionedSchemas_MessagesFormatByDefault(t *testing.T) {
	input, output := deriveAutoProvisionedSchemas(ChatCompletionRequest{})
	assert.Equal(t, map[string]interface{}{"format": "messages"}, input)
	assert.Equal(t, map[string]interface{}{"format": "message"}, output)
}

func TestDeriveAutoProvisionedSchemas_ObjectInputWhenVariablesPresent(t *testing.T) {
	input, _ := deriveAutoProvisionedSchemas(ChatCompletionRequest{
		Input: map[string]interface{}{"name": "John"},
	})
	assert.Equal(t, "object", input["type"])
	props, ok := input["properties"].(map[string]interface{})
	assert.True(t, ok)
	_, hasName := props["name"]
	assert.True(t, hasName)
}

func TestDeriveOutputSchema_JSONObject(t *testing.T) {
	raw := json.RawMessage(`{"type":"json_object"}`)
	out := deriveOutputSchema(raw, nil)
	assert.Equal(t, map[string]interface{}{"type": "object"}, out)
}

func TestDeriveOutputSchema_JSONSchema(t *testing.T) {
	raw := json.RawMessage(`{"type":"json_schema","json_schema":{"schema":{"type":"object","properties":{"x":{"type":"string"}}}}}`)
	out := deriveOutputSchema(raw, nil)
	assert.Equal(t, "object", out["type"])
}

func TestDeriveOutputSchema_InternalOverridesResponseFormat(t *testing.T) {
	raw := json.RawMessage(`{"type":"json_object"}`)
	internal := &WorkflowAIInternal{OutputSchema: map[string]interface{}{"type": "array"}}
	out := deriveOutputSchema(raw, internal)
	assert.Equal(t, map[string]interface{}{"type": "array"}, out)
}

func TestDeriveOutputSchema_DefaultsToMessageFormat(t *testing.T) {
	out := deriveOutputSchema(nil, nil)
	assert.Equal(t, map[string]interface{}{"format": "message"}, out)
}

func TestExternalToolDefs_MarksToolsNonInternal(t *testing.T) {
	wire := []WireTool{{Type: "function"}}
	wire[0].Function.Name = "my_tool"
	wire[0].Function.Parameters = map[string]interface{}{"type": "object"}

	defs := externalToolDefs(wire)
	assert.Len(t, defs, 1)
	assert.Equal(t, "my_tool", defs[0].Name)
	assert.False(t, defs[0].Internal)
}

func TestAsMap_PassesThroughObject(t *testing.T) {
	m := map[string]interface{}{"a": 1}
	assert.Equal(t, m, asMap(m))
}

func TestAsMap_WrapsNonObjectUnderMessagesKey(t *testing.T) {
	conv := []map[string]interface{}{{"role": "user"}}
	got := asMap(conv)
	assert.Equal(t, conv, got["messages"])
}
