package mailbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentmesh/internal/debug"
)

// invalidDir is the quarantine subdirectory for malformed inbox payloads.
const invalidDir = ".invalid"

// Handler consumes one inbox message. Returning an error leaves the message
// file in place so a later drain retries it (at-least-once delivery).
type Handler func(Message) error

// Drain processes the agent's pending inbox files in filename order.
// Malformed payloads are moved to the quarantine subdirectory instead of
// being retried forever. On handler success the file is deleted; on handler
// failure (error or panic) it stays. Returns the number of successfully
// handled messages together with any handler errors joined.
func (b *Mailbox) Drain(self string, handler Handler) (int, error) {
	dir := b.store.Path(InboxDir(self))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	processed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			// Likely consumed by a concurrent drain; skip.
			continue
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			b.quarantine(self, e.Name(), path)
			continue
		}

		if err := callHandler(handler, m); err != nil {
			debug.LogKV("mailbox", "handler failed, keeping message",
				"self", self, "id", m.ID, "err", err)
			errs = append(errs, fmt.Errorf("message %s: %w", m.ID, err))
			continue
		}
		os.Remove(path)
		processed++
	}
	return processed, errors.Join(errs...)
}

// callHandler invokes the handler, converting a panic into an error so a
// misbehaving handler cannot take down the drain loop or consume a message
// it did not actually process.
func callHandler(handler Handler, m Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(m)
}

func (b *Mailbox) quarantine(self, name, path string) {
	qdir := b.store.Path(filepath.Join(InboxDir(self), invalidDir))
	if err := os.MkdirAll(qdir, 0755); err != nil {
		return
	}
	if err := os.Rename(path, filepath.Join(qdir, name)); err == nil {
		debug.LogKV("mailbox", "quarantined malformed message", "self", self, "file", name)
	}
}

// Pending returns how many message files are waiting in the agent's inbox.
func (b *Mailbox) Pending(self string) (int, error) {
	entries, err := os.ReadDir(b.store.Path(InboxDir(self)))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
	}
	return n, nil
}
