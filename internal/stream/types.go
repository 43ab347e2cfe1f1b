package stream

import (
	"encoding/json"
	"strings"
)

// Event types emitted by the agent CLI in stream-json mode.
const (
	TypeSystem    = "system"
	TypeAssistant = "assistant"
	TypeResult    = "result"

	SubtypeInit = "init"
)

// Item pairs one NDJSON line with its parse outcome. When Err is set the
// line did not decode and Event is zero.
type Item struct {
	Line  []byte
	Event Event
	Err   error
}

// Event is one decoded line of an agent run's stream-json output. Fields are
// a union over the event types; consult Type (and Subtype for system events)
// before reading them.
type Event struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`

	// system/init
	SessionID string   `json:"session_id,omitempty"`
	Model     string   `json:"model,omitempty"`
	Tools     []string `json:"tools,omitempty"`

	// assistant
	Message *AssistantMessage `json:"message,omitempty"`

	// result
	ResultText   string  `json:"result,omitempty"`
	IsError      bool    `json:"is_error,omitempty"`
	DurationMS   float64 `json:"duration_ms,omitempty"`
	TotalCostUSD float64 `json:"total_cost_usd,omitempty"`
	NumTurns     int     `json:"num_turns,omitempty"`
	Usage        *Usage  `json:"usage,omitempty"`
}

// IsInit reports whether this is the run's system/init event, which carries
// the session identifier the remote-control socket is named after.
func (e *Event) IsInit() bool {
	return e.Type == TypeSystem && e.Subtype == SubtypeInit
}

// AssistantText joins the text content blocks of an assistant event. Empty
// for non-assistant events and for assistant turns that only used tools.
func (e *Event) AssistantText() string {
	if e.Type != TypeAssistant || e.Message == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range e.Message.Content {
		if block.Type != "text" || block.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(block.Text)
	}
	return b.String()
}

// AssistantMessage is the message payload inside an assistant event.
type AssistantMessage struct {
	ID      string         `json:"id,omitempty"`
	Model   string         `json:"model,omitempty"`
	Role    string         `json:"role,omitempty"`
	Content []ContentBlock `json:"content,omitempty"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// ContentBlock is one element of an assistant message: a text block or a
// tool invocation.
type ContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	ID    string          `json:"id,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Usage holds token accounting from the run.
type Usage struct {
	InputTokens              int `json:"input_tokens,omitempty"`
	OutputTokens             int `json:"output_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
}
