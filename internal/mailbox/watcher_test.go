package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"
)

// startWatcher runs a Watcher in the background and returns a channel of
// handled messages plus a stop function that cancels the watch and waits
// for Run to return.
func startWatcher(t *testing.T, box *Mailbox, self string) (<-chan Message, func()) {
	t.Helper()

	handled := make(chan Message, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	w := NewWatcher(box, self, func(m Message) error {
		handled <- m
		return nil
	}, 10*time.Millisecond)
	go func() { done <- w.Run(ctx) }()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Run returned %v, want context.Canceled", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop after cancel")
		}
	}
	return handled, stop
}

func waitFor(t *testing.T, ch <-chan Message, what string) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return Message{}
	}
}

func TestWatcherDrainsBacklogOnStart(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Sender")
	f.register(t, "Watcherd")

	if _, err := f.box.SendDirect("Sender", "Watcherd", "queued before watch", "", false); err != nil {
		t.Fatalf("SendDirect: %v", err)
	}

	handled, stop := startWatcher(t, f.box, "Watcherd")
	defer stop()

	m := waitFor(t, handled, "startup drain")
	if m.Text != "queued before watch" {
		t.Errorf("text = %q", m.Text)
	}

	n, err := f.box.Pending("Watcherd")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("pending = %d after startup drain, want 0", n)
	}
}

func TestWatcherDrainsOnNewMessages(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Sender")
	f.register(t, "Watcherd")

	handled, stop := startWatcher(t, f.box, "Watcherd")
	defer stop()

	// A burst of sends should all come through, in enqueue order.
	for _, text := range []string{"first", "second", "third"} {
		if _, err := f.box.SendDirect("Sender", "Watcherd", text, "", false); err != nil {
			t.Fatalf("SendDirect %q: %v", text, err)
		}
		time.Sleep(2 * time.Millisecond) // distinct enqueue timestamps
	}

	for _, want := range []string{"first", "second", "third"} {
		m := waitFor(t, handled, want)
		if m.Text != want {
			t.Errorf("text = %q, want %q", m.Text, want)
		}
	}
}
