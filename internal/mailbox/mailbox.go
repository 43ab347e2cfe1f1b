// Package mailbox implements inter-agent messaging over the shared state
// directory: one pending-message file per delivery in the recipient's inbox,
// plus a single append-only messages.jsonl audit log that survives
// consumption.
package mailbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentmesh/internal/debug"
	"agentmesh/internal/fstore"
	"agentmesh/internal/registry"
)

// Message kinds.
const (
	KindDirect    = "direct"
	KindBroadcast = "broadcast"
)

// LogFile is the append-only message log, relative to the store root.
const LogFile = "messages.jsonl"

// Validation errors. All local and non-retryable.
var (
	ErrEmptyMessage       = errors.New("mailbox: message text is empty")
	ErrSelfTarget         = errors.New("mailbox: cannot send a message to yourself")
	ErrTargetNotActive    = errors.New("mailbox: target agent has no live registration")
	ErrNoActiveRecipients = errors.New("mailbox: no active recipients")
)

// Message is a single queued delivery in a recipient's inbox.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"ts"`
	Urgent    bool      `json:"urgent,omitempty"`
	ReplyTo   string    `json:"reply_to,omitempty"`
}

// LogEvent is the append-only audit record for a send. For broadcasts it
// carries the recipient list resolved at send time. Never rewritten.
type LogEvent struct {
	Message
	Recipients []string `json:"recipients,omitempty"`
}

// Delivery is the urgency handed to the host runtime alongside a message.
type Delivery int

const (
	// DeliveryQueued asks the host to hold the message until the current
	// turn ends.
	DeliveryQueued Delivery = iota
	// DeliveryInterrupt asks the host to inject the message immediately.
	DeliveryInterrupt
)

func (d Delivery) String() string {
	if d == DeliveryInterrupt {
		return "interrupt"
	}
	return "queue"
}

// Delivery maps the message's urgent flag onto the host delivery intent.
func (m *Message) Delivery() Delivery {
	if m.Urgent {
		return DeliveryInterrupt
	}
	return DeliveryQueued
}

// DeliveryFailure records one recipient that could not be enqueued during a
// broadcast.
type DeliveryFailure struct {
	Recipient string
	Err       error
}

// BroadcastResult reports per-recipient broadcast outcomes.
// len(Delivered)+len(Failed) always equals the resolved recipient count.
type BroadcastResult struct {
	Message   Message
	Delivered []string
	Failed    []DeliveryFailure
}

// Mailbox sends and drains messages for agents sharing a state directory.
type Mailbox struct {
	store *fstore.Store
	reg   *registry.Registry
}

// New returns a Mailbox backed by the given store and registry.
func New(s *fstore.Store, reg *registry.Registry) *Mailbox {
	return &Mailbox{store: s, reg: reg}
}

// InboxDir returns the relative inbox directory for an agent.
func InboxDir(name string) string {
	return filepath.Join("inbox", name)
}

// SendDirect enqueues one message into the recipient's inbox and appends one
// log event. The recipient must have a live registration.
func (b *Mailbox) SendDirect(from, to, text, replyTo string, urgent bool) (*Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if to == from {
		return nil, ErrSelfTarget
	}
	if r := b.reg.Get(to); r == nil || !r.Alive() {
		return nil, fmt.Errorf("%q: %w", to, ErrTargetNotActive)
	}

	m := b.newMessage(from, to, text, KindDirect, urgent, replyTo)
	if err := b.enqueue(to, m); err != nil {
		return nil, fmt.Errorf("enqueueing for %q: %w", to, err)
	}
	if err := b.appendLog(LogEvent{Message: *m}); err != nil {
		return nil, fmt.Errorf("appending message log: %w", err)
	}
	debug.LogKV("mailbox", "direct sent", "from", from, "to", to, "id", m.ID, "urgent", urgent)
	return m, nil
}

// SendBroadcast enqueues one copy of the message for every live agent other
// than the sender. A failed enqueue for one recipient is recorded and does
// not abort delivery to the rest. Exactly one log event is appended carrying
// the full resolved recipient list, regardless of per-recipient failures.
func (b *Mailbox) SendBroadcast(from, text string, urgent bool) (*BroadcastResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	peers, err := b.reg.ListActive(from)
	if err != nil {
		return nil, fmt.Errorf("listing recipients: %w", err)
	}
	if len(peers) == 0 {
		return nil, ErrNoActiveRecipients
	}

	m := b.newMessage(from, "", text, KindBroadcast, urgent, "")
	res := &BroadcastResult{Message: *m}
	recipients := make([]string, 0, len(peers))

	for _, peer := range peers {
		recipients = append(recipients, peer.Name)
		copyMsg := *m
		copyMsg.To = peer.Name
		if err := b.enqueue(peer.Name, &copyMsg); err != nil {
			debug.LogKV("mailbox", "broadcast enqueue failed", "to", peer.Name, "err", err)
			res.Failed = append(res.Failed, DeliveryFailure{Recipient: peer.Name, Err: err})
			continue
		}
		res.Delivered = append(res.Delivered, peer.Name)
	}

	if err := b.appendLog(LogEvent{Message: *m, Recipients: recipients}); err != nil {
		return res, fmt.Errorf("appending message log: %w", err)
	}
	debug.LogKV("mailbox", "broadcast sent",
		"from", from, "delivered", len(res.Delivered), "failed", len(res.Failed))
	return res, nil
}

func (b *Mailbox) newMessage(from, to, text, kind string, urgent bool, replyTo string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Text:      text,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Urgent:    urgent,
		ReplyTo:   replyTo,
	}
}

// enqueue writes one message file into the recipient's inbox. The filename
// leads with a nanosecond timestamp so a lexical directory listing yields
// FIFO-ish drain order.
func (b *Mailbox) enqueue(to string, m *Message) error {
	name := fmt.Sprintf("%d-%s.json", m.Timestamp.UnixNano(), m.ID[:8])
	return b.store.WriteJSON(filepath.Join(InboxDir(to), name), m)
}

func (b *Mailbox) appendLog(ev LogEvent) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.store.AppendLine(LogFile, line)
}
