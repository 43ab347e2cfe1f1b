// Package rc is the remote-control client for live peer sessions. Each
// session exposes a Unix socket speaking newline-delimited JSON: requests
// carry {type, id}, responses {type:"response", command, id, success},
// server pushes {type:"event", event, data}.
package rc

import (
	"encoding/json"
	"path/filepath"
)

// Wire message and request types.
const (
	typeResponse = "response"
	typeEvent    = "event"

	reqSubscribe = "subscribe"
	reqSend      = "send"

	eventTurnEnd = "turn_end"
)

// request is a client-to-session message. One struct covers both request
// kinds; unused fields are omitted from the wire.
type request struct {
	Type string `json:"type"`
	ID   string `json:"id"`

	// subscribe
	Event string `json:"event,omitempty"`

	// send
	Text string `json:"text,omitempty"`
}

// serverMsg is any session-to-client line: a response or a pushed event.
type serverMsg struct {
	Type string `json:"type"`

	// responses
	Command string `json:"command,omitempty"`
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`

	// events
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SocketPath returns the control socket path for a session under the shared
// state directory.
func SocketPath(base, sessionID string) string {
	return filepath.Join(base, "sessions", sessionID+".sock")
}
