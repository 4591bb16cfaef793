package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/tools"
)

// ErrToolLoopExceeded is returned when the tool-call loop runs past
// cfg.MaxToolLoopIterations without the model returning a final answer
// (§8 property 6: "violating this causes failed_generation").
var ErrToolLoopExceeded = &adapter.Error{Kind: adapter.KindFailedGeneration, Message: "tool-call loop exceeded max iterations"}

// runToolLoop drives §4.4's tool-call loop: while every tool call the model
// returns is internal, execute them concurrently, append results, and
// re-invoke the same (provider, model). An external tool call, or a final
// answer with no tool calls, ends the loop.
func (r *Runner) runToolLoop(ctx context.Context, bucket *ProviderBucket, cand Candidate, req Request, first *adapter.ParsedResponse) (*Result, error) {
	messages := append([]adapter.Message{}, req.Messages...)
	resp := first
	var allCalls []tools.Call
	seen := map[string]bool{}

	for iter := 0; ; iter++ {
		if len(resp.ToolCalls) == 0 {
			appendAssistantMessage(&messages, resp)
			return &Result{Messages: messages, Final: resp, Provider: cand.Provider, Model: cand.Model, ToolCalls: allCalls}, nil
		}

		allInternal := r.tools != nil
		for _, tc := range resp.ToolCalls {
			internal, _ := r.tools.ClassifyRequest(tc.ToolName)
			if !internal {
				allInternal = false
				break
			}
		}
		if !allInternal {
			appendAssistantMessage(&messages, resp)
			return &Result{Messages: messages, Final: resp, Provider: cand.Provider, Model: cand.Model, ToolCalls: allCalls}, nil
		}

		if iter >= r.cfg.MaxToolLoopIterations {
			return nil, ErrToolLoopExceeded
		}

		for _, tc := range resp.ToolCalls {
			key := fmt.Sprintf("%s:%s", tc.ToolName, fingerprintArgs(tc.Input))
			if seen[key] {
				return nil, &adapter.Error{Kind: adapter.KindFailedGeneration, Message: fmt.Sprintf("recursive internal tool call detected: %s", tc.ToolName)}
			}
			seen[key] = true
		}

		appendAssistantMessage(&messages, resp)

		calls := r.tools.ExecuteAll(ctx, resp.ToolCalls)
		allCalls = append(allCalls, calls...)

		toolMsg := adapter.Message{Role: adapter.RoleTool}
		for _, c := range calls {
			toolMsg.Content = append(toolMsg.Content, c.ToBlock())
		}
		messages = append(messages, toolMsg)

		next, aerr := r.callOnce(ctx, bucket.Adapter, cand.Model, Request{
			Properties:    req.Properties,
			Messages:      messages,
			ExternalTools: req.ExternalTools,
		})
		if aerr != nil {
			return nil, aerr
		}
		resp = next
	}
}

func appendAssistantMessage(messages *[]adapter.Message, resp *adapter.ParsedResponse) {
	msg := adapter.Message{Role: adapter.RoleAssistant}
	if resp.Content != "" {
		msg.Content = append(msg.Content, adapter.ContentBlock{Kind: adapter.BlockText, Text: resp.Content})
	}
	for _, step := range resp.ReasoningSteps {
		msg.Content = append(msg.Content, adapter.ContentBlock{Kind: adapter.BlockReasoning, Text: step})
	}
	for _, tc := range resp.ToolCalls {
		msg.Content = append(msg.Content, adapter.ContentBlock{Kind: adapter.BlockToolCallRequest, ToolCallID: tc.ID, ToolName: tc.ToolName, ToolInput: tc.Input})
	}
	*messages = append(*messages, msg)
}

// fingerprintArgs hashes a tool call's raw input for the recursion-
// prevention check (§4.4: "byte-identical to a prior call in the same run").
func fingerprintArgs(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}
