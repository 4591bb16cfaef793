package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowai/gateway/adapter"
)

func TestAggregator_PlainTextAccumulates(t *testing.T) {
	agg := NewAggregator(1024, false, nil)

	c1 := agg.Apply(&adapter.Delta{ContentDelta: "Hello, "})
	assert.Equal(t, "Hello, ", c1.Content)
	assert.False(t, c1.Final)

	c2 := agg.Apply(&adapter.Delta{ContentDelta: "world!"})
	assert.Equal(t, "Hello, world!", c2.Content)

	final := agg.Finish()
	require.True(t, final.Final)
	assert.Nil(t, final.Err)
	assert.Equal(t, "Hello, world!", final.Content)
}

func TestAggregator_StructuredValidatesOnFinish(t *testing.T) {
	agg := NewAggregator(1024, true, fakeValidator{err: nil})

	agg.Apply(&adapter.Delta{ContentDelta: `{"name":`})
	mid := agg.Apply(&adapter.Delta{ContentDelta: `"Ada"}`})
	assert.NotNil(t, mid.StructuredOutput)

	final := agg.Finish()
	assert.Nil(t, final.Err)
	assert.JSONEq(t, `{"name":"Ada"}`, string(final.StructuredOutput))
}

func TestAggregator_StructuredValidationFailureSurfacesError(t *testing.T) {
	agg := NewAggregator(1024, true, fakeValidator{err: errors.New("missing required field")})
	agg.Apply(&adapter.Delta{ContentDelta: `{"name":"Ada"}`})

	final := agg.Finish()
	require.NotNil(t, final.Err)
	assert.Equal(t, adapter.KindStructuredGenerationError, final.Err.Kind)
}

func TestAggregator_UnparseableStructuredOutputWithoutToolCallsFails(t *testing.T) {
	agg := NewAggregator(1024, true, nil)
	agg.Apply(&adapter.Delta{ContentDelta: "not json at all"})

	final := agg.Finish()
	require.NotNil(t, final.Err)
	assert.Equal(t, adapter.KindFailedGeneration, final.Err.Kind)
}

func TestAggregator_UnparseableStructuredOutputWithToolCallsSucceeds(t *testing.T) {
	agg := NewAggregator(1024, true, nil)
	agg.Apply(&adapter.Delta{ContentDelta: "not json"})
	agg.Apply(&adapter.Delta{ToolCallDeltas: []adapter.ToolCallDelta{
		{Index: 0, ID: "call_1", ToolName: "lookup", Complete: true, Input: []byte(`{"q":"x"}`)},
	}})

	final := agg.Finish()
	assert.Nil(t, final.Err)
	require.Len(t, final.ToolCalls, 1)
	assert.Equal(t, "lookup", final.ToolCalls[0].ToolName)
}

func TestAggregator_ToolCallInputAccumulatesAcrossDeltas(t *testing.T) {
	agg := NewAggregator(1024, false, nil)
	agg.Apply(&adapter.Delta{ToolCallDeltas: []adapter.ToolCallDelta{
		{Index: 0, ID: "call_1", ToolName: "search", InputDelta: `{"q":`},
	}})
	c := agg.Apply(&adapter.Delta{ToolCallDeltas: []adapter.ToolCallDelta{
		{Index: 0, InputDelta: `"cats"}`},
	}})

	require.Len(t, c.ToolCalls, 1)
	assert.Equal(t, "search", c.ToolCalls[0].ToolName)
	assert.JSONEq(t, `{"q":"cats"}`, string(c.ToolCalls[0].Input))
}

func TestAggregator_RawAccumulatorDropsPastHighWaterMark(t *testing.T) {
	warned := false
	agg := NewAggregator(8, false, nil)
	agg.OnWarn(func(string) { warned = true })

	agg.Apply(&adapter.Delta{ContentDelta: "0123456789"})
	assert.True(t, warned)
}

type fakeValidator struct{ err error }

func (f fakeValidator) Validate(data interface{}) error { return f.err }
