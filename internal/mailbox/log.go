package mailbox

import (
	"bufio"
	"encoding/json"
	"os"
)

// logScannerBuffer bounds a single log line; messages are capped well below
// this by senders in practice.
const logScannerBuffer = 1024 * 1024

// Tail returns the last n events from the append-only message log.
// Unparseable lines are skipped: the log tolerates torn or corrupt records
// without failing the read.
func (b *Mailbox) Tail(n int) ([]LogEvent, error) {
	events, err := b.readLog(func(LogEvent) bool { return true })
	if err != nil {
		return nil, err
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

// Thread returns the last n direct messages exchanged between exactly the
// two named peers, in append order.
func (b *Mailbox) Thread(peerA, peerB string, n int) ([]LogEvent, error) {
	events, err := b.readLog(func(ev LogEvent) bool {
		if ev.Kind != KindDirect {
			return false
		}
		return (ev.From == peerA && ev.To == peerB) || (ev.From == peerB && ev.To == peerA)
	})
	if err != nil {
		return nil, err
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

func (b *Mailbox) readLog(keep func(LogEvent) bool) ([]LogEvent, error) {
	f, err := os.Open(b.store.Path(LogFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []LogEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), logScannerBuffer)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev LogEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		if keep(ev) {
			events = append(events, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return events, err
	}
	return events, nil
}
