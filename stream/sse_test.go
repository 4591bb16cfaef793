package stream

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowai/gateway/adapter"
)

func TestReadSSE_ParsesDataLines(t *testing.T) {
	body := "data: {\"a\":1}\n\ndata: {\"a\":2}\n\ndata: [DONE]\n"
	events := make(chan adapter.SSEEvent, 10)

	err := ReadSSE(context.Background(), strings.NewReader(body), events)
	require.NoError(t, err)

	var got []string
	for e := range events {
		got = append(got, string(e.Data))
	}
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`}, got)
}

func TestReadSSE_SkipsComments(t *testing.T) {
	body := ": this is a comment\ndata: {\"a\":1}\n"
	events := make(chan adapter.SSEEvent, 10)

	err := ReadSSE(context.Background(), strings.NewReader(body), events)
	require.NoError(t, err)

	var got []string
	for e := range events {
		got = append(got, string(e.Data))
	}
	assert.Equal(t, []string{`{"a":1}`}, got)
}

func TestReadSSE_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events := make(chan adapter.SSEEvent, 10)

	err := ReadSSE(ctx, strings.NewReader("data: {}\n"), events)
	assert.Error(t, err)
}
