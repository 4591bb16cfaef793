package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/workflowai/gateway/adapter"
)

// toCanonicalMessages converts the OpenAI-shaped request messages into the
// canonical adapter.Message form the runner and pipeline operate on.
func toCanonicalMessages(wire []WireMessage) ([]adapter.Message, error) {
	out := make([]adapter.Message, 0, len(wire))
	for _, m := range wire {
		cm := adapter.Message{Role: adapter.Role(m.Role)}

		if len(m.ToolCalls) > 0 {
			for _, tc := range m.ToolCalls {
				cm.Content = append(cm.Content, adapter.ContentBlock{
					Kind:       adapter.BlockToolCallRequest,
					ToolCallID: tc.ID,
					ToolName:   tc.Function.Name,
					ToolInput:  json.RawMessage(tc.Function.Arguments),
				})
			}
		}

		if m.Role == string(adapter.RoleTool) {
			cm.Content = append(cm.Content, adapter.ContentBlock{
				Kind:       adapter.BlockToolCallResult,
				ToolCallID: m.ToolCallID,
				ToolResult: trimJSONQuotes(m.Content),
			})
			out = append(out, cm)
			continue
		}

		if len(m.Content) > 0 {
			text, err := decodeMessageText(m.Content)
			if err != nil {
				return nil, fmt.Errorf("httpapi: decode message content: %w", err)
			}
			if text != "" || len(cm.Content) == 0 {
				cm.Content = append(cm.Content, adapter.ContentBlock{Kind: adapter.BlockText, Text: text})
			}
		}

		out = append(out, cm)
	}
	return out, nil
}

// decodeMessageText accepts either a plain JSON string or an OpenAI-style
// content-part array ([{"type":"text","text":"..."}]) and flattens it to a
// single string; only text parts are kept. Image, audio and file parts are
// dropped here, so they reach neither the input pipeline nor the provider.
func decodeMessageText(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", err
	}
	var out string
	for _, p := range parts {
		if p.Type == "text" {
			out += p.Text
		}
	}
	return out, nil
}

func trimJSONQuotes(raw json.RawMessage) json.RawMessage {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return json.RawMessage(s)
	}
	return raw
}

// fromCanonicalMessage renders a final assistant completion back into the
// OpenAI-compatible choice-message shape.
func fromCanonicalMessage(resp *adapter.ParsedResponse) ChoiceMessage {
	out := ChoiceMessage{Role: string(adapter.RoleAssistant), Content: resp.Content}
	for _, tc := range resp.ToolCalls {
		wc := WireToolCall{ID: tc.ID, Type: "function"}
		wc.Function.Name = tc.ToolName
		wc.Function.Arguments = string(tc.Input)
		out.ToolCalls = append(out.ToolCalls, wc)
	}
	return out
}
