package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/version"
)

// Input is the caller-supplied task input, in exactly one of two shapes
// depending on the schema's format (§4.2).
type Input struct {
	// Variables are the `input` extension field: a name->value dictionary
	// used to render {{var}} placeholders in the version's template
	// messages/instructions, and (for structured schemas) the validated
	// input itself.
	Variables map[string]interface{}

	// Conversation is the task input for a raw-messages schema: the actual
	// message sequence (user/assistant/tool turns), appended after any
	// rendered template messages.
	Conversation []adapter.Message
}

// Result is everything downstream components need: the full message list to
// send to the provider, the canonical record to persist as task_input, the
// files hoisted out of it, and which variables the template actually used.
type Result struct {
	Messages       []adapter.Message
	CanonicalInput interface{}
	Files          []adapter.File
	UsedVariables  map[string]bool
}

// DecodeVersionMessages parses a version's stored prompt-template messages
// (Properties.Messages, each a `{"role":..,"content":..}` JSON object) into
// canonical form.
func DecodeVersionMessages(raw []json.RawMessage) ([]adapter.Message, error) {
	out := make([]adapter.Message, 0, len(raw))
	for _, r := range raw {
		var m struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(r, &m); err != nil {
			return nil, fmt.Errorf("pipeline: decode version message: %w", err)
		}
		out = append(out, adapter.Message{
			Role:    adapter.Role(m.Role),
			Content: []adapter.ContentBlock{{Kind: adapter.BlockText, Text: m.Content}},
		})
	}
	return out, nil
}

// BuildMessages implements the C2 input pipeline: schema-aware validation,
// file extraction, template rendering, and hybrid instruction handling.
func BuildMessages(props version.Properties, schema *Schema, in Input) (*Result, *adapter.Error) {
	variables := in.Variables
	if variables == nil {
		variables = map[string]interface{}{}
	}

	var canonicalInput interface{}
	var files []adapter.File

	if schema != nil && !schema.IsMessages {
		if schema.Compiled != nil {
			if err := schema.Validate(variables); err != nil {
				return nil, &adapter.Error{Kind: adapter.KindBadRequest, Message: err.Error()}
			}
		}
		stripped, extracted := ExtractFiles(variables)
		files = extracted
		if m, ok := stripped.(map[string]interface{}); ok {
			variables = m
		}
		canonicalInput = stripped
	} else {
		canonicalInput = conversationRecord(in.Conversation)
		for _, msg := range in.Conversation {
			for _, b := range msg.Content {
				if b.File != nil {
					files = append(files, *b.File)
				}
			}
		}
	}

	templateMessages, err := DecodeVersionMessages(props.Messages)
	if err != nil {
		return nil, &adapter.Error{Kind: adapter.KindInvalidTemplate, Message: err.Error()}
	}

	used := map[string]bool{}
	rendered := make([]adapter.Message, 0, len(templateMessages)+1)

	if props.Instructions != "" {
		text, u, rErr := Render(props.Instructions, variables)
		if rErr != nil {
			return nil, rErr
		}
		for k := range u {
			used[k] = true
		}
		rendered = append(rendered, adapter.Message{
			Role:    adapter.RoleSystem,
			Content: []adapter.ContentBlock{{Kind: adapter.BlockText, Text: text}},
		})
	}

	for _, tm := range templateMessages {
		text, u, rErr := Render(tm.Text(), variables)
		if rErr != nil {
			return nil, rErr
		}
		for k := range u {
			used[k] = true
		}
		rendered = append(rendered, adapter.Message{
			Role:    tm.Role,
			Content: []adapter.ContentBlock{{Kind: adapter.BlockText, Text: text}},
		})
	}

	// Hybrid legacy: structured schemas append unconsumed input keys as a
	// trailing user message (§4.2).
	if schema == nil || !schema.IsMessages {
		if leftover := leftoverMessage(variables, used); leftover != "" {
			rendered = append(rendered, adapter.Message{
				Role:    adapter.RoleUser,
				Content: []adapter.ContentBlock{{Kind: adapter.BlockText, Text: leftover}},
			})
		}
	}

	final := append(rendered, in.Conversation...)

	return &Result{
		Messages:       final,
		CanonicalInput: canonicalInput,
		Files:          files,
		UsedVariables:  used,
	}, nil
}

func leftoverMessage(variables map[string]interface{}, used map[string]bool) string {
	keys := make([]string, 0, len(variables))
	for k := range variables {
		if !used[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += fmt.Sprintf("%s: %v\n\n", k, variables[k])
	}
	return out
}

func conversationRecord(msgs []adapter.Message) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(msgs))
	for _, m := range msgs {
		rec := map[string]interface{}{"role": string(m.Role)}
		var parts []interface{}
		for _, b := range m.Content {
			switch b.Kind {
			case adapter.BlockText:
				parts = append(parts, map[string]interface{}{"type": "text", "text": b.Text})
			case adapter.BlockToolCallRequest:
				parts = append(parts, map[string]interface{}{"type": "tool_call_request", "id": b.ToolCallID, "tool_name": b.ToolName})
			case adapter.BlockToolCallResult:
				parts = append(parts, map[string]interface{}{"type": "tool_call_result", "id": b.ToolCallID})
			default:
				if b.File != nil {
					parts = append(parts, map[string]interface{}{"type": string(b.Kind), "url": b.File.URL, "content_type": b.File.ContentType})
				}
			}
		}
		rec["content"] = parts
		out = append(out, rec)
	}
	return out
}
