package fstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agentmesh/internal/debug"
)

// ErrLockTimeout is returned when a lock cannot be acquired within the
// configured timeout. Callers treat the guarded operation as best-effort
// skipped; it is never fatal.
var ErrLockTimeout = errors.New("lock acquire timeout")

// LockOptions tunes lock acquisition and staleness recovery.
type LockOptions struct {
	// StaleAfter is the age past which a lock is force-reclaimed even when
	// its owner pid still resolves. Bounds how long a wedged holder can
	// block everyone else.
	StaleAfter time.Duration
	// RetryEvery is the sleep between acquisition attempts.
	RetryEvery time.Duration
	// AcquireTimeout bounds the total time spent retrying.
	AcquireTimeout time.Duration
}

// DefaultLockOptions returns the production lock tuning.
func DefaultLockOptions() LockOptions {
	return LockOptions{
		StaleAfter:     30 * time.Second,
		RetryEvery:     25 * time.Millisecond,
		AcquireTimeout: 1500 * time.Millisecond,
	}
}

// lockOwner is persisted inside the lock directory so other processes can
// decide whether the holder is still alive.
type lockOwner struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Host       string    `json:"host,omitempty"`
}

// WithLock executes fn while holding an exclusive cross-process lock on the
// named resource. The lock is a directory (<rel>.lock/) created with Mkdir,
// which is atomic on every filesystem we care about: exactly one racing
// process succeeds, the rest fail with EEXIST and retry.
//
// A lock whose recorded owner pid is dead, or whose age exceeds StaleAfter,
// is reclaimed by deleting the directory and retrying immediately.
func (s *Store) WithLock(ctx context.Context, rel string, fn func() error) error {
	lockDir := s.Path(rel + ".lock")
	if err := os.MkdirAll(filepath.Dir(lockDir), 0755); err != nil {
		return fmt.Errorf("creating lock parent: %w", err)
	}

	deadline := time.Now().Add(s.lockOpts.AcquireTimeout)
	for {
		err := os.Mkdir(lockDir, 0755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return fmt.Errorf("creating lock dir: %w", err)
		}
		if s.reclaimIfStale(lockDir) {
			continue
		}
		if time.Now().After(deadline) {
			debug.LogKV("fstore", "lock acquire timed out", "lock", rel)
			return fmt.Errorf("%s: %w", rel, ErrLockTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.lockOpts.RetryEvery):
		}
	}

	owner := lockOwner{PID: os.Getpid(), AcquiredAt: time.Now().UTC()}
	if host, err := os.Hostname(); err == nil {
		owner.Host = host
	}
	if data, err := json.Marshal(owner); err == nil {
		// Best effort: a missing owner.json just means age-based staleness.
		os.WriteFile(filepath.Join(lockDir, "owner.json"), data, 0644)
	}

	defer os.RemoveAll(lockDir)
	return fn()
}

// reclaimIfStale removes the lock directory when its holder is provably gone
// or too old. Returns true when the caller should retry acquisition without
// sleeping.
func (s *Store) reclaimIfStale(lockDir string) bool {
	ownerPath := filepath.Join(lockDir, "owner.json")

	data, err := os.ReadFile(ownerPath)
	if err == nil {
		var owner lockOwner
		if json.Unmarshal(data, &owner) == nil {
			dead := !ProcessAlive(owner.PID)
			expired := !owner.AcquiredAt.IsZero() && time.Since(owner.AcquiredAt) > s.lockOpts.StaleAfter
			if !dead && !expired {
				return false
			}
			debug.LogKV("fstore", "reclaiming stale lock",
				"lock", lockDir, "owner_pid", owner.PID, "dead", dead, "expired", expired)
			os.RemoveAll(lockDir)
			return true
		}
	}

	// No readable owner record. Fall back to directory age; a holder that
	// crashed between Mkdir and writing owner.json looks like this.
	info, err := os.Stat(lockDir)
	if err != nil {
		// Lock vanished between Mkdir failure and here.
		return true
	}
	if time.Since(info.ModTime()) > s.lockOpts.StaleAfter {
		os.RemoveAll(lockDir)
		return true
	}
	return false
}
