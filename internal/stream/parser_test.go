package stream

import (
	"context"
	"strings"
	"testing"
)

const testNDJSON = `{"type":"system","subtype":"init","session_id":"abc123","model":"claude-sonnet-4-5","tools":["Bash","Read","Write"]}
{"type":"assistant","message":{"id":"msg_01","model":"claude-sonnet-4-5","role":"assistant","content":[{"type":"text","text":"Hello, world!"}],"usage":{"input_tokens":100,"output_tokens":50}}}
{"type":"result","subtype":"success","is_error":false,"duration_ms":141000,"num_turns":3,"result":"Hello, world!"}
`

const testNDJSONWithTools = `{"type":"system","subtype":"init","session_id":"def456","model":"claude-opus-4"}
{"type":"assistant","message":{"id":"msg_02","role":"assistant","content":[{"type":"tool_use","name":"Bash","id":"tool_1","input":{"command":"ls"}}]}}
{"type":"assistant","message":{"id":"msg_03","role":"assistant","content":[{"type":"text","text":"Done."}]}}
{"type":"result","subtype":"success","is_error":false,"duration_ms":5000,"num_turns":2}
`

func collect(t *testing.T, input string) []Item {
	t.Helper()
	var items []Item
	for it := range Parse(context.Background(), strings.NewReader(input)) {
		if it.Err != nil {
			t.Fatalf("unexpected parse error: %v", it.Err)
		}
		items = append(items, it)
	}
	return items
}

func TestParseNDJSON(t *testing.T) {
	items := collect(t, testNDJSON)
	if len(items) != 3 {
		t.Fatalf("expected 3 events, got %d", len(items))
	}

	init := items[0].Event
	if !init.IsInit() {
		t.Errorf("event[0] not recognized as init: %+v", init)
	}
	if init.SessionID != "abc123" {
		t.Errorf("session_id = %q, want %q", init.SessionID, "abc123")
	}
	if len(init.Tools) != 3 {
		t.Errorf("tools = %v, want 3 entries", init.Tools)
	}

	if got := items[1].Event.AssistantText(); got != "Hello, world!" {
		t.Errorf("assistant text = %q, want %q", got, "Hello, world!")
	}

	res := items[2].Event
	if res.Type != TypeResult || res.NumTurns != 3 || res.DurationMS != 141000 {
		t.Errorf("result event = %+v", res)
	}
}

func TestAssistantTextSkipsToolBlocks(t *testing.T) {
	items := collect(t, testNDJSONWithTools)
	if len(items) != 4 {
		t.Fatalf("expected 4 events, got %d", len(items))
	}
	if got := items[1].Event.AssistantText(); got != "" {
		t.Errorf("tool-only turn text = %q, want empty", got)
	}
	if got := items[2].Event.AssistantText(); got != "Done." {
		t.Errorf("text = %q, want %q", got, "Done.")
	}
}

func TestParseMalformedLineReported(t *testing.T) {
	input := `{"type":"system","subtype":"init","session_id":"x"}` + "\n" +
		`{not json` + "\n" +
		`{"type":"result","result":"ok"}` + "\n"

	var items []Item
	for it := range Parse(context.Background(), strings.NewReader(input)) {
		items = append(items, it)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[1].Err == nil {
		t.Error("malformed line did not carry an error")
	}
	if string(items[1].Line) != `{not json` {
		t.Errorf("raw line = %q", items[1].Line)
	}
	if items[2].Err != nil {
		t.Errorf("parsing resumed with error: %v", items[2].Err)
	}
}

func TestParseContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := Parse(ctx, strings.NewReader(`{"type":"system"}`+"\n"))
	count := 0
	for range ch {
		count++
	}
	// May see 0 or 1 events depending on timing; it must terminate.
	if count > 1 {
		t.Fatalf("expected at most 1 event after cancel, got %d", count)
	}
}

func TestParseEmptyLines(t *testing.T) {
	items := collect(t, "\n\n{\"type\":\"system\"}\n\n\n")
	if len(items) != 1 {
		t.Fatalf("expected 1 event (blank lines skipped), got %d", len(items))
	}
}

func TestOutcomeAccumulation(t *testing.T) {
	var o Outcome
	for it := range Parse(context.Background(), strings.NewReader(testNDJSONWithTools)) {
		if it.Err != nil {
			t.Fatal(it.Err)
		}
		o.Observe(&it.Event)
	}
	if o.SessionID != "def456" {
		t.Errorf("session id = %q", o.SessionID)
	}
	if o.Text != "Done." {
		t.Errorf("text = %q, want assistant text when result has none", o.Text)
	}
	if !o.Complete() || o.IsError {
		t.Errorf("outcome = %+v", o)
	}
}

func TestOutcomeResultTextWins(t *testing.T) {
	var o Outcome
	for it := range Parse(context.Background(), strings.NewReader(testNDJSON)) {
		if it.Err != nil {
			t.Fatal(it.Err)
		}
		o.Observe(&it.Event)
	}
	if o.Text != "Hello, world!" || o.NumTurns != 3 {
		t.Errorf("outcome = %+v", o)
	}
}

func TestOutcomeIncompleteStream(t *testing.T) {
	var o Outcome
	input := `{"type":"system","subtype":"init","session_id":"s1"}` + "\n"
	for it := range Parse(context.Background(), strings.NewReader(input)) {
		o.Observe(&it.Event)
	}
	if o.Complete() {
		t.Error("stream without result event reported complete")
	}
}
