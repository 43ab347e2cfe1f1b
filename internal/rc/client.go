package rc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"agentmesh/internal/debug"
)

const (
	scannerInitialBuffer = 64 * 1024
	scannerMaxBuffer     = 1024 * 1024
)

// ErrAwaitTimeout means no turn-end (or missing send ack) within the wait
// window.
var ErrAwaitTimeout = errors.New("rc: timed out waiting for turn end")

// Client talks to peer session sockets under one shared state directory.
type Client struct {
	base string
}

// NewClient returns a Client rooted at the shared state directory.
func NewClient(base string) *Client {
	return &Client{base: base}
}

// Reachable probes the session's control socket: true only if a connection
// succeeds within the timeout.
func (c *Client) Reachable(sessionID string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("unix", SocketPath(c.base, sessionID), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// SendAndAwaitTurnEnd pushes text into the named live session and blocks
// until that session's current turn completes. It subscribes for the
// turn-end event and issues the send, both with correlation ids, and
// resolves only once the send is acknowledged successfully AND a turn-end
// event has been observed. The turn-end may legitimately arrive before the
// send ack; it is buffered until the ack lands. A failed ack, the wait
// deadline, context cancellation, or the socket closing are all terminal.
func (c *Client) SendAndAwaitTurnEnd(ctx context.Context, sessionID, text string, wait time.Duration) error {
	path := SocketPath(c.base, sessionID)
	conn, err := net.DialTimeout("unix", path, wait)
	if err != nil {
		return fmt.Errorf("rc: connecting to session %s: %w", sessionID, err)
	}
	defer conn.Close()

	// Closing the connection is how both cancellation and the deadline
	// interrupt the blocked read below.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()
	if wait > 0 {
		if err := conn.SetDeadline(time.Now().Add(wait)); err != nil {
			return fmt.Errorf("rc: setting deadline: %w", err)
		}
	}

	subID := uuid.NewString()
	sendID := uuid.NewString()

	if err := writeRequest(conn, request{Type: reqSubscribe, ID: subID, Event: eventTurnEnd}); err != nil {
		return fmt.Errorf("rc: subscribing: %w", err)
	}
	if err := writeRequest(conn, request{Type: reqSend, ID: sendID, Text: text}); err != nil {
		return fmt.Errorf("rc: sending: %w", err)
	}

	debug.LogKV("rc", "awaiting turn end", "session", sessionID, "send_id", sendID)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, scannerInitialBuffer), scannerMaxBuffer)

	var sendAcked, turnEnded bool
	for scanner.Scan() {
		var msg serverMsg
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}

		switch msg.Type {
		case typeResponse:
			switch msg.ID {
			case sendID:
				if !msg.Success {
					return fmt.Errorf("rc: session %s rejected send: %s", sessionID, msg.Error)
				}
				sendAcked = true
			case subID:
				if !msg.Success {
					return fmt.Errorf("rc: session %s rejected subscription: %s", sessionID, msg.Error)
				}
			}
		case typeEvent:
			if msg.Event == eventTurnEnd {
				turnEnded = true
			}
		}

		if sendAcked && turnEnded {
			debug.LogKV("rc", "turn ended", "session", sessionID)
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("rc: awaiting turn end: %w", err)
	}
	if err := scanner.Err(); err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return ErrAwaitTimeout
		}
		return fmt.Errorf("rc: reading from session %s: %w", sessionID, err)
	}
	return fmt.Errorf("rc: session %s closed the connection before the turn ended", sessionID)
}

func writeRequest(conn net.Conn, req request) error {
	line, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(line, '\n'))
	return err
}
