package httpapi

import (
	"encoding/json"

	"github.com/workflowai/gateway/adapter"
)

// deriveAutoProvisionedSchemas builds the input/output schema pair a
// previously-unseen agent_id is lazily created with (§4.9 "Agent
// auto-provisioning"). The input side is `format: "messages"` unless the
// caller supplied `input` variables, in which case it is a plain object
// schema; the output side is derived from `response_format`.
func deriveAutoProvisionedSchemas(req ChatCompletionRequest) (input, output map[string]interface{}) {
	if len(req.Input) > 0 {
		properties := make(map[string]interface{}, len(req.Input))
		for k := range req.Input {
			properties[k] = map[string]interface{}{}
		}
		input = map[string]interface{}{
			"type":       "object",
			"properties": properties,
		}
	} else {
		input = map[string]interface{}{"format": "messages"}
	}

	output = deriveOutputSchema(req.ResponseFormat, req.WorkflowAIInternal)
	return input, output
}

// deriveOutputSchema maps the OpenAI `response_format` field (text |
// json_object | json_schema) to a schema pair the agent's output side is
// provisioned with; an explicit workflowai_internal.output_schema wins over
// response_format when both are present.
func deriveOutputSchema(raw json.RawMessage, internal *WorkflowAIInternal) map[string]interface{} {
	if internal != nil && len(internal.OutputSchema) > 0 {
		return internal.OutputSchema
	}
	if len(raw) == 0 {
		return map[string]interface{}{"format": "message"}
	}

	var rf struct {
		Type       string `json:"type"`
		JSONSchema struct {
			Schema map[string]interface{} `json:"schema"`
		} `json:"json_schema"`
	}
	if err := json.Unmarshal(raw, &rf); err != nil {
		return map[string]interface{}{"format": "message"}
	}

	switch rf.Type {
	case "json_schema":
		if rf.JSONSchema.Schema != nil {
			return rf.JSONSchema.Schema
		}
		return map[string]interface{}{"type": "object"}
	case "json_object":
		return map[string]interface{}{"type": "object"}
	default:
		return map[string]interface{}{"format": "message"}
	}
}

// externalToolDefs converts the OpenAI-shaped `tools` the caller declared
// into canonical adapter.ToolDef values; these are always Internal: false,
// since tools the caller supplies inline are by definition not in this
// gateway's hosted registry (§4.6 "external tools ... carry only name +
// schemas and are never executed server-side").
func externalToolDefs(wire []WireTool) []adapter.ToolDef {
	out := make([]adapter.ToolDef, 0, len(wire))
	for _, t := range wire {
		out = append(out, adapter.ToolDef{
			Name:        t.Function.Name,
			InputSchema: t.Function.Parameters,
			Internal:    false,
		})
	}
	return out
}

// asMap adapts a pipeline.Result's CanonicalInput (a map for structured
// schemas, a []map[string]interface{} conversation record for raw-messages
// schemas) into the map shape store.FinalizeInput.TaskInput requires,
// without the store package needing to know which schema kind produced it.
func asMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"messages": v}
}
