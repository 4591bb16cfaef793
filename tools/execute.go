package tools

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/core"
	"github.com/workflowai/gateway/pipeline"
)

// Call is the canonical record of one tool invocation, folded back into the
// message stream regardless of outcome (§4.6: "the error, if any, is still
// appended so the LLM can react").
type Call struct {
	ID       string
	ToolName string
	Input    json.RawMessage
	Result   json.RawMessage
	Error    *core.ToolError
}

// ToBlock converts a Call into the canonical tool_call_result content block
// the runner appends to the conversation.
func (c Call) ToBlock() adapter.ContentBlock {
	b := adapter.ContentBlock{
		Kind: adapter.BlockToolCallResult, ToolCallID: c.ID, ToolName: c.ToolName, ToolResult: c.Result,
	}
	if c.Error != nil {
		b.ToolError = c.Error.Error()
	}
	return b
}

// errUnknownTool builds the core.ToolError reported for an "@"-prefixed request
// with no matching registry entry (§4.6 split rule).
func errUnknownTool(name string) *core.ToolError {
	return &core.ToolError{
		Code:     "UNKNOWN_TOOL",
		Message:  "no internal tool registered for \"" + name + "\"",
		Category: core.CategoryInputError,
	}
}

// Execute runs one internal tool call under its own timeout, validating
// input against the tool's schema first.
func (r *Registry) Execute(ctx context.Context, req adapter.ToolCallRequest) Call {
	call := Call{ID: req.ID, ToolName: req.ToolName, Input: req.Input}

	t, ok := r.Lookup(req.ToolName)
	if !ok {
		call.Error = errUnknownTool(req.ToolName)
		return call
	}

	if t.InputSchema != nil {
		schema, err := pipeline.Streamline(t.InputSchema)
		if err == nil {
			var decoded interface{}
			if jerr := json.Unmarshal(req.Input, &decoded); jerr == nil {
				if verr := schema.Validate(decoded); verr != nil {
					call.Error = &core.ToolError{
						Code: "INVALID_INPUT", Message: verr.Error(), Category: core.CategoryInputError,
					}
					return call
				}
			}
		}
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = core.DefaultConfig().Run.DefaultToolTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, toolErr := t.Run(runCtx, req.Input)
	if toolErr != nil {
		call.Error = toolErr
		return call
	}
	raw, err := json.Marshal(result)
	if err != nil {
		call.Error = &core.ToolError{Code: "MARSHAL_ERROR", Message: err.Error(), Category: core.CategoryServiceError}
		return call
	}
	call.Result = raw
	return call
}

// ExecuteAll runs every request concurrently via errgroup, preserving
// request order in the returned slice regardless of completion order (one
// loop iteration's worth of tool calls, per §4.6).
func (r *Registry) ExecuteAll(ctx context.Context, reqs []adapter.ToolCallRequest) []Call {
	calls := make([]Call, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			calls[i] = r.Execute(gctx, req)
			return nil
		})
	}
	_ = g.Wait() // Execute never returns an error through errgroup; failures live in Call.Error
	return calls
}
