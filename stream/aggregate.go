package stream

import (
	"encoding/json"

	"github.com/workflowai/gateway/adapter"
)

// Validator checks an already-parsed structured output against the run's
// output schema. *pipeline.Schema satisfies this without stream importing
// pipeline directly, avoiding a cycle back through adapter.
type Validator interface {
	Validate(data interface{}) error
}

// Chunk is one fanned-out update: either a growing partial view of the
// completion, or (Final) the fully validated result.
type Chunk struct {
	Final bool

	Content          string
	StructuredOutput json.RawMessage // best-effort parse of Content; nil until it parses as JSON
	ReasoningSteps    []string
	ToolCalls        []adapter.ToolCallRequest
	Usage            adapter.Usage
	FinishReason     string

	// Err is set on the final chunk when aggregation failed irrecoverably
	// (§4.5: unparseable structured output at end-of-stream with no tool
	// calls produces failed_generation).
	Err *adapter.Error
}

const defaultMaxToolBufferBytes = 256 * 1024

// Aggregator folds a provider's Delta stream into growing Chunks. One
// Aggregator serves exactly one completion; construct a fresh one per
// attempt.
type Aggregator struct {
	maxRawBytes      int
	maxToolBufBytes  int
	structured       bool
	validator        Validator

	raw            []byte
	droppedPrefix  bool
	reasoningSteps []string
	toolCalls      map[int]*adapter.ToolCallRequest
	toolOrder      []int
	usage          adapter.Usage
	finishReason   string

	onWarn func(msg string)
}

// NewAggregator builds an Aggregator. maxRawBytes bounds the raw text
// accumulator (§4.5 "memory safety"); structured indicates the run expects a
// JSON structured output, in which case the final chunk is validated against
// validator (nil validator skips validation, used for plain-text runs).
func NewAggregator(maxRawBytes int, structured bool, validator Validator) *Aggregator {
	if maxRawBytes <= 0 {
		maxRawBytes = 1 << 20
	}
	return &Aggregator{
		maxRawBytes:     maxRawBytes,
		maxToolBufBytes: defaultMaxToolBufferBytes,
		structured:      structured,
		validator:       validator,
		toolCalls:       make(map[int]*adapter.ToolCallRequest),
		onWarn:          func(string) {},
	}
}

// OnWarn registers a callback invoked when the raw accumulator drops its
// oldest prefix past the high-water mark, so the caller can log it.
func (a *Aggregator) OnWarn(fn func(msg string)) { a.onWarn = fn }

// Apply folds one Delta into the aggregate and returns the partial Chunk to
// fan out to the caller. It never returns the final chunk; call Finish once
// the delta stream ends (Done or channel close).
func (a *Aggregator) Apply(d *adapter.Delta) Chunk {
	if d.ContentDelta != "" {
		a.appendRaw(d.ContentDelta)
	}
	if d.ReasoningDelta != "" {
		if len(a.reasoningSteps) == 0 {
			a.reasoningSteps = append(a.reasoningSteps, "")
		}
		a.reasoningSteps[len(a.reasoningSteps)-1] += d.ReasoningDelta
	}
	for _, td := range d.ToolCallDeltas {
		a.applyToolDelta(td)
	}
	if d.Usage != nil {
		a.usage = *d.Usage
	}
	if d.FinishReason != "" {
		a.finishReason = d.FinishReason
	}
	return a.partial()
}

func (a *Aggregator) appendRaw(s string) {
	a.raw = append(a.raw, s...)
	if len(a.raw) > a.maxRawBytes {
		drop := len(a.raw) - a.maxRawBytes
		a.raw = a.raw[drop:]
		if !a.droppedPrefix {
			a.droppedPrefix = true
			a.onWarn("stream: raw accumulator exceeded high-water mark, dropping oldest prefix")
		}
	}
}

func (a *Aggregator) applyToolDelta(td adapter.ToolCallDelta) {
	tc, ok := a.toolCalls[td.Index]
	if !ok {
		tc = &adapter.ToolCallRequest{ID: td.ID, ToolName: td.ToolName}
		a.toolCalls[td.Index] = tc
		a.toolOrder = append(a.toolOrder, td.Index)
	}
	if td.ID != "" {
		tc.ID = td.ID
	}
	if td.ToolName != "" {
		tc.ToolName = td.ToolName
	}
	if td.Complete && len(td.Input) > 0 {
		tc.Input = td.Input
		return
	}
	if len(tc.Input)+len(td.InputDelta) > a.maxToolBufBytes {
		a.onWarn("stream: tool-call input buffer exceeded limit, truncating")
		return
	}
	tc.Input = append(append(json.RawMessage{}, tc.Input...), []byte(td.InputDelta)...)
}

func (a *Aggregator) completedToolCalls() []adapter.ToolCallRequest {
	out := make([]adapter.ToolCallRequest, 0, len(a.toolOrder))
	for _, idx := range a.toolOrder {
		tc := a.toolCalls[idx]
		var probe json.RawMessage
		if len(tc.Input) > 0 && json.Unmarshal(tc.Input, &probe) == nil {
			out = append(out, *tc)
		}
	}
	return out
}

func (a *Aggregator) partial() Chunk {
	c := Chunk{
		Content:        string(a.raw),
		ReasoningSteps: append([]string(nil), a.reasoningSteps...),
		ToolCalls:      a.completedToolCalls(),
		Usage:          a.usage,
		FinishReason:   a.finishReason,
	}
	if a.structured {
		var probe json.RawMessage
		if json.Unmarshal(a.raw, &probe) == nil {
			c.StructuredOutput = probe
		}
	}
	return c
}

// Finish produces the final Chunk once the delta stream has ended. Per §4.5,
// a structured run whose raw text never parsed as JSON and produced no tool
// calls fails with failed_generation (retry-eligible once).
func (a *Aggregator) Finish() Chunk {
	c := a.partial()
	c.Final = true

	if !a.structured {
		return c
	}

	var parsed interface{}
	if err := json.Unmarshal(a.raw, &parsed); err != nil {
		if len(c.ToolCalls) > 0 {
			return c
		}
		c.Err = adapter.NewError(adapter.KindFailedGeneration, 200, "stream ended without parseable structured output")
		return c
	}
	c.StructuredOutput = append(json.RawMessage{}, a.raw...)

	if a.validator != nil {
		if err := a.validator.Validate(parsed); err != nil {
			c.Err = adapter.NewError(adapter.KindStructuredGenerationError, 200, err.Error())
		}
	}
	return c
}
