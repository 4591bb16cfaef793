package stream

import (
	"context"
	"io"

	"github.com/workflowai/gateway/adapter"
)

// Run drives one streaming completion end-to-end: reads SSE frames from
// body, extracts deltas via a, folds them through agg, and sends a Chunk to
// out for every delta plus one final Chunk once the stream ends. The
// returned error is non-nil only for transport-level failures (context
// cancellation, read errors); aggregation failures surface as the final
// Chunk's Err field instead, since a partial completion is still useful to
// the caller.
func Run(ctx context.Context, a adapter.Adapter, body io.Reader, agg *Aggregator, out chan<- Chunk) error {
	defer close(out)

	events := make(chan adapter.SSEEvent)
	deltas := make(chan *adapter.Delta)
	state := adapter.NewStreamState()

	sseErrCh := make(chan error, 1)
	go func() { sseErrCh <- ReadSSE(ctx, body, events) }()

	drainErrCh := make(chan error, 1)
	go func() { drainErrCh <- DrainDeltas(a, events, state, deltas) }()

	for d := range deltas {
		select {
		case out <- agg.Apply(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	out <- agg.Finish()

	if err := <-drainErrCh; err != nil {
		return err
	}
	return <-sseErrCh
}
