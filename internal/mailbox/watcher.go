package mailbox

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"agentmesh/internal/debug"
)

// DefaultDebounce coalesces bursts of inbox file events before draining.
const DefaultDebounce = 50 * time.Millisecond

// Watcher drains an agent's inbox whenever new message files land. A single
// goroutine owns the drain; fsnotify events only arm a debounce timer, so a
// burst of incoming messages results in one pass.
type Watcher struct {
	box      *Mailbox
	self     string
	handler  Handler
	debounce time.Duration
}

// NewWatcher returns a Watcher for the named agent's inbox. A zero debounce
// selects DefaultDebounce.
func NewWatcher(box *Mailbox, self string, handler Handler, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{box: box, self: self, handler: handler, debounce: debounce}
}

// Run watches the inbox until ctx is cancelled. Pending messages are drained
// once at startup so anything enqueued before the watch began is not missed.
// Drain errors are logged and do not stop the watch; they will be retried on
// the next event.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.box.store.EnsureDir(InboxDir(w.self)); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.box.store.Path(InboxDir(w.self))); err != nil {
		return err
	}

	w.drain()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			// (Re)arm the debounce window.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.drain()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			debug.LogKV("mailbox", "inbox watch error", "self", w.self, "err", err)
		}
	}
}

func (w *Watcher) drain() {
	n, err := w.box.Drain(w.self, w.handler)
	if err != nil {
		debug.LogKV("mailbox", "drain finished with errors", "self", w.self, "handled", n, "err", err)
		return
	}
	if n > 0 {
		debug.LogKV("mailbox", "drained inbox", "self", w.self, "handled", n)
	}
}
