// Package stream decodes the NDJSON ("stream-json") output of a child agent
// run: one system/init event carrying the session id, assistant events with
// content blocks, and a final result event.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
)

const maxLineSize = 1024 * 1024 // 1 MB

// Parse reads NDJSON lines from r and sends one Item per line on the
// returned channel. Lines that fail to decode are delivered with Err set so
// the caller can log them without losing the raw bytes. The channel closes
// on EOF or context cancellation.
func Parse(ctx context.Context, r io.Reader) <-chan Item {
	ch := make(chan Item, 64)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, maxLineSize), maxLineSize)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			raw := make([]byte, len(line))
			copy(raw, line)

			var ev Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				ch <- Item{Line: raw, Err: err}
				continue
			}
			ch <- Item{Line: raw, Event: ev}
		}

		if err := scanner.Err(); err != nil {
			ch <- Item{Err: err}
		}
	}()
	return ch
}

// Outcome accumulates the facts a run supervisor needs from the stream: the
// session id from init, the latest assistant text, and the final result.
type Outcome struct {
	SessionID string
	Model     string
	Text      string
	IsError   bool
	NumTurns  int
	sawResult bool
}

// Observe folds one event into the outcome. The result event's text wins
// over accumulated assistant text when present.
func (o *Outcome) Observe(ev *Event) {
	switch {
	case ev.IsInit():
		o.SessionID = ev.SessionID
		o.Model = ev.Model
	case ev.Type == TypeAssistant:
		if t := ev.AssistantText(); t != "" {
			o.Text = t
		}
	case ev.Type == TypeResult:
		o.sawResult = true
		o.IsError = ev.IsError
		o.NumTurns = ev.NumTurns
		if ev.ResultText != "" {
			o.Text = ev.ResultText
		}
	}
}

// Complete reports whether a result event was seen; a stream that ends
// without one indicates the child died mid-run.
func (o *Outcome) Complete() bool {
	return o.sawResult
}
