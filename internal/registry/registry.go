// Package registry maintains the file-backed roster of live agents: one JSON
// record per agent name under <base>/registry/, guarded by per-name locks.
// Liveness is derived from the recorded pid, never from wall-clock trust
// alone, so a crashed agent is pruned the next time anyone lists the roster.
package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"agentmesh/internal/debug"
	"agentmesh/internal/fstore"
)

// Agent roles.
const (
	RoleSubagent     = "subagent"
	RoleOrchestrator = "orchestrator"
)

// Registration is one live agent's record. At most one registration file
// exists per name; the (PID, SessionID) pair is the ownership token.
type Registration struct {
	Name            string        `json:"name"`
	PID             int           `json:"pid"`
	SessionID       string        `json:"session_id"`
	SessionFilePath string        `json:"session_file_path,omitempty"`
	Cwd             string        `json:"cwd"`
	Model           string        `json:"model,omitempty"`
	Role            string        `json:"role,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	LastSeenAt      time.Time     `json:"last_seen_at"`
	Reservations    []Reservation `json:"reservations,omitempty"`
}

// Reservation is a claimed exclusive write/edit intent over a path or, when
// the pattern ends in a path separator, a whole directory subtree.
type Reservation struct {
	Pattern string    `json:"pattern"`
	Reason  string    `json:"reason,omitempty"`
	Since   time.Time `json:"since"`
}

// Owner identifies the writer of a registration for guarded deletion.
type Owner struct {
	PID       int
	SessionID string
}

// Alive reports whether the registration's recorded pid is running.
func (r *Registration) Alive() bool {
	return fstore.ProcessAlive(r.PID)
}

// ownedBy reports whether the stored record belongs to the given owner.
func (r *Registration) ownedBy(pid int, sessionID string) bool {
	return r.PID == pid && r.SessionID == sessionID
}

// Registry is a handle to the registry directory.
type Registry struct {
	store *fstore.Store
}

// New returns a Registry backed by the given store.
func New(s *fstore.Store) *Registry {
	return &Registry{store: s}
}

func regPath(name string) string {
	return filepath.Join("registry", name+".json")
}

// Register writes the registration under the per-name lock. It returns false
// without modifying anything when a live registration with a different
// (pid, session) owner already holds the name; a dead owner is overwritten.
// Duplicate live ownership is an expected steady-state occurrence, so it is
// reported as a boolean, not an error.
func (reg *Registry) Register(ctx context.Context, r Registration) (bool, error) {
	if strings.TrimSpace(r.Name) == "" {
		return false, errors.New("registry: name is required")
	}
	now := time.Now().UTC()
	if r.StartedAt.IsZero() {
		r.StartedAt = now
	}
	r.LastSeenAt = now

	ok := false
	err := reg.store.WithLock(ctx, regPath(r.Name), func() error {
		var existing Registration
		if err := reg.store.ReadJSON(regPath(r.Name), &existing); err == nil {
			if existing.Alive() && !existing.ownedBy(r.PID, r.SessionID) {
				debug.LogKV("registry", "register refused: live owner",
					"name", r.Name, "owner_pid", existing.PID)
				return nil
			}
		}
		ok = true
		return reg.store.WriteJSON(regPath(r.Name), &r)
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Heartbeat refreshes LastSeenAt for an existing registration. Like Register
// it refuses to clobber a different live owner, which protects against a
// stale writer heartbeating after it already lost the name. Lock-acquisition
// failure is surfaced so callers can treat the heartbeat as best-effort
// skipped.
func (reg *Registry) Heartbeat(ctx context.Context, r Registration) (bool, error) {
	r.LastSeenAt = time.Now().UTC()

	ok := false
	err := reg.store.WithLock(ctx, regPath(r.Name), func() error {
		var existing Registration
		if err := reg.store.ReadJSON(regPath(r.Name), &existing); err == nil {
			if existing.Alive() && !existing.ownedBy(r.PID, r.SessionID) {
				return nil
			}
			// Preserve reservations written through Reserve/Release since the
			// caller's copy may be behind.
			if existing.ownedBy(r.PID, r.SessionID) {
				r.Reservations = existing.Reservations
				if !existing.StartedAt.IsZero() {
					r.StartedAt = existing.StartedAt
				}
			}
		}
		ok = true
		return reg.store.WriteJSON(regPath(r.Name), &r)
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Unregister deletes the named registration. When owner is non-nil, deletion
// only proceeds if both pid and session id match the stored record, so one
// agent cannot remove another's live registration.
func (reg *Registry) Unregister(ctx context.Context, name string, owner *Owner) error {
	return reg.store.WithLock(ctx, regPath(name), func() error {
		if owner != nil {
			var existing Registration
			if err := reg.store.ReadJSON(regPath(name), &existing); err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if !existing.ownedBy(owner.PID, owner.SessionID) {
				debug.LogKV("registry", "unregister refused: owner mismatch", "name", name)
				return nil
			}
		}
		err := os.Remove(reg.store.Path(regPath(name)))
		if os.IsNotExist(err) {
			return nil
		}
		return err
	})
}

// Get returns the stored registration for name, or nil when absent or
// unparseable.
func (reg *Registry) Get(name string) *Registration {
	var r Registration
	if err := reg.store.ReadJSON(regPath(name), &r); err != nil {
		return nil
	}
	return &r
}

// ListActive scans the registry directory and returns all live
// registrations sorted by name. Malformed entries and entries whose pid is
// dead are pruned best-effort as they are found. excludeName, when
// non-empty, is omitted from the result.
func (reg *Registry) ListActive(excludeName string) ([]Registration, error) {
	dir := reg.store.Path("registry")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var active []Registration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rel := filepath.Join("registry", e.Name())
		var r Registration
		if err := reg.store.ReadJSON(rel, &r); err != nil {
			debug.LogKV("registry", "pruning malformed registration", "file", e.Name())
			os.Remove(reg.store.Path(rel))
			continue
		}
		if !r.Alive() {
			debug.LogKV("registry", "pruning dead registration", "name", r.Name, "pid", r.PID)
			os.Remove(reg.store.Path(rel))
			continue
		}
		if excludeName != "" && r.Name == excludeName {
			continue
		}
		active = append(active, r)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Name < active[j].Name })
	return active, nil
}
