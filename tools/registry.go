// Package tools implements the internal (hosted) tool registry (C6): a
// fixed, process-local map populated at startup, replacing the dynamic
// capability-registration mesh the gateway's ancestor used for agent-to-agent
// discovery. Every internal tool name is `core.HostedToolPrefix`-prefixed.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/workflowai/gateway/adapter"
	"github.com/workflowai/gateway/core"
)

// Func is the implementation signature every internal tool registers. It
// receives already-schema-validated input and returns a JSON-serializable
// result, or a *core.ToolError the caller folds into the canonical ToolCall.
type Func func(ctx context.Context, input json.RawMessage) (interface{}, *core.ToolError)

// Tool is one registered internal capability.
type Tool struct {
	Name         string // canonical, "@"-prefixed
	InputSchema  map[string]interface{}
	OutputSchema map[string]interface{}
	Timeout      time.Duration
	Run          Func
}

// Registry is a fixed map of internal tools, safe for concurrent read-only
// use after New returns (no runtime registration).
type Registry struct {
	tools map[string]*Tool
}

// New builds a Registry from a fixed tool list, panicking on a duplicate or
// non-"@"-prefixed name since that is a startup wiring bug, not a runtime
// condition.
func New(entries ...*Tool) *Registry {
	r := &Registry{tools: make(map[string]*Tool, len(entries))}
	for _, t := range entries {
		if len(t.Name) == 0 || t.Name[0] != core.HostedToolPrefix[0] {
			panic(fmt.Sprintf("tools: internal tool name %q must start with %q", t.Name, core.HostedToolPrefix))
		}
		if _, exists := r.tools[t.Name]; exists {
			panic(fmt.Sprintf("tools: duplicate internal tool %q", t.Name))
		}
		r.tools[t.Name] = t
	}
	return r
}

// Lookup returns the registered tool by name, if any.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Defs returns every registered tool as an adapter.ToolDef, for adapters that
// always advertise the full internal set regardless of what a version
// explicitly enables.
func (r *Registry) Defs() []adapter.ToolDef {
	out := make([]adapter.ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, adapter.ToolDef{
			Name: t.Name, InputSchema: t.InputSchema, OutputSchema: t.OutputSchema, Internal: true,
		})
	}
	return out
}

// ClassifyRequest reports whether req names an internal tool (by "@" prefix
// and registry presence). A "@"-prefixed name absent from the registry is
// still classified internal: the caller must fail it with "unknown tool"
// rather than forward it to the client as an external call (§4.6 split
// rule).
func (r *Registry) ClassifyRequest(toolName string) (internal bool, known bool) {
	if len(toolName) == 0 || toolName[0] != core.HostedToolPrefix[0] {
		return false, false
	}
	_, known = r.tools[toolName]
	return true, known
}
