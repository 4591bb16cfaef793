// Package stream implements the streaming aggregator (C5): it drives a
// provider adapter's SSE stream, folds successive Delta events into a
// growing aggregate, and emits partial/final chunks to the caller.
//
// ReadSSE is an adapter-agnostic `bufio.Reader`/`data:` line-parsing loop
// that any provider's stream can feed; each adapter then decodes the events
// through its ExtractStreamDelta.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/workflowai/gateway/adapter"
)

// ReadSSE parses resp.Body as a Server-Sent Events stream and sends one
// adapter.SSEEvent per `data:` line to events, until the body is exhausted,
// ctx is done, or a read error occurs. It closes events before returning.
// `[DONE]` sentinel lines (OpenAI's stream terminator) are dropped rather
// than forwarded.
func ReadSSE(ctx context.Context, body io.Reader, events chan<- adapter.SSEEvent) error {
	defer close(events)
	reader := bufio.NewReader(body)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				line = strings.TrimSpace(line)
				if data, ok := dataLine(line); ok {
					if err := send(ctx, events, data); err != nil {
						return err
					}
				}
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := dataLine(line)
		if !ok {
			continue
		}
		if err := send(ctx, events, data); err != nil {
			return err
		}
	}
}

func dataLine(line string) (string, bool) {
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "[DONE]" {
		return "", false
	}
	return data, true
}

func send(ctx context.Context, events chan<- adapter.SSEEvent, data string) error {
	select {
	case events <- adapter.SSEEvent{Data: []byte(data)}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DrainDeltas runs the adapter's ExtractStreamDelta over every event on
// events, sending each resulting Delta to out. It stops at the first Delta
// with Done set, at a non-nil error, or when events closes.
func DrainDeltas(a adapter.Adapter, events <-chan adapter.SSEEvent, state *adapter.StreamState, out chan<- *adapter.Delta) error {
	defer close(out)
	for event := range events {
		if len(bytes.TrimSpace(event.Data)) == 0 {
			continue
		}
		delta, err := a.ExtractStreamDelta(event, state)
		if err != nil {
			return err
		}
		out <- delta
		if delta.Done {
			return nil
		}
	}
	return nil
}
