package registry

import (
	"context"
	"os"
	"testing"
	"time"

	"agentmesh/internal/fstore"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(fstore.New(t.TempDir()))
}

func liveReg(name string) Registration {
	return Registration{
		Name:      name,
		PID:       os.Getpid(),
		SessionID: "sess-" + name,
		Cwd:       "/tmp/" + name,
		Model:     "opus",
	}
}

func TestRegisterThenDuplicateRefused(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	first := liveReg("BlueFalcon")
	ok, err := reg.Register(ctx, first)
	if err != nil || !ok {
		t.Fatalf("first Register = (%v, %v), want (true, nil)", ok, err)
	}

	stored := reg.Get("BlueFalcon")
	if stored == nil {
		t.Fatal("registration not stored")
	}

	// A different live owner must be refused and must not alter the record.
	second := first
	second.SessionID = "sess-other"
	second.Model = "sonnet"
	ok, err = reg.Register(ctx, second)
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if ok {
		t.Fatal("second Register succeeded, want refusal")
	}

	after := reg.Get("BlueFalcon")
	if after.SessionID != first.SessionID || after.Model != "opus" {
		t.Errorf("record changed after refused register: %+v", after)
	}
	if !after.LastSeenAt.Equal(stored.LastSeenAt) {
		t.Errorf("timestamps changed after refused register")
	}
}

func TestRegisterOverwritesDeadOwner(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	dead := liveReg("GhostCrab")
	dead.PID = 1 << 30
	if ok, err := reg.Register(ctx, dead); err != nil || !ok {
		t.Fatalf("register dead precursor: (%v, %v)", ok, err)
	}

	replacement := liveReg("GhostCrab")
	ok, err := reg.Register(ctx, replacement)
	if err != nil || !ok {
		t.Fatalf("Register over dead owner = (%v, %v), want (true, nil)", ok, err)
	}
	if got := reg.Get("GhostCrab"); got.PID != os.Getpid() {
		t.Errorf("pid = %d, want %d", got.PID, os.Getpid())
	}
}

func TestHeartbeatRefusesDifferentLiveOwner(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	owner := liveReg("RedHeron")
	if ok, _ := reg.Register(ctx, owner); !ok {
		t.Fatal("register")
	}

	intruder := owner
	intruder.SessionID = "sess-stale"
	ok, err := reg.Heartbeat(ctx, intruder)
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if ok {
		t.Fatal("heartbeat from non-owner succeeded")
	}
	if got := reg.Get("RedHeron"); got.SessionID != owner.SessionID {
		t.Errorf("session id = %q, want %q", got.SessionID, owner.SessionID)
	}
}

func TestHeartbeatPreservesReservationsAndStartedAt(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	owner := liveReg("TealOtter")
	owner.StartedAt = time.Now().UTC().Add(-time.Hour)
	if ok, _ := reg.Register(ctx, owner); !ok {
		t.Fatal("register")
	}
	if err := reg.Reserve(ctx, "TealOtter", []string{"src/"}, "refactor"); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	// Heartbeat with a copy that predates the reservation.
	ok, err := reg.Heartbeat(ctx, owner)
	if err != nil || !ok {
		t.Fatalf("Heartbeat = (%v, %v)", ok, err)
	}

	got := reg.Get("TealOtter")
	if len(got.Reservations) != 1 || got.Reservations[0].Pattern != "src/" {
		t.Errorf("reservations lost on heartbeat: %+v", got.Reservations)
	}
	if !got.StartedAt.Equal(owner.StartedAt) {
		t.Errorf("StartedAt rewritten: %v, want %v", got.StartedAt, owner.StartedAt)
	}
	if !got.LastSeenAt.After(owner.StartedAt) {
		t.Error("LastSeenAt not refreshed")
	}
}

func TestUnregisterOwnerGuard(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	owner := liveReg("GoldIbis")
	if ok, _ := reg.Register(ctx, owner); !ok {
		t.Fatal("register")
	}

	// Wrong session id: no-op.
	if err := reg.Unregister(ctx, "GoldIbis", &Owner{PID: owner.PID, SessionID: "nope"}); err != nil {
		t.Fatalf("Unregister mismatch: %v", err)
	}
	if reg.Get("GoldIbis") == nil {
		t.Fatal("registration deleted despite owner mismatch")
	}

	// Wrong pid: no-op.
	if err := reg.Unregister(ctx, "GoldIbis", &Owner{PID: owner.PID + 1, SessionID: owner.SessionID}); err != nil {
		t.Fatalf("Unregister mismatch: %v", err)
	}
	if reg.Get("GoldIbis") == nil {
		t.Fatal("registration deleted despite pid mismatch")
	}

	// Exact owner: deleted.
	if err := reg.Unregister(ctx, "GoldIbis", &Owner{PID: owner.PID, SessionID: owner.SessionID}); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if reg.Get("GoldIbis") != nil {
		t.Fatal("registration still present after owner-matched unregister")
	}

	// Unregistering a missing name is not an error.
	if err := reg.Unregister(ctx, "GoldIbis", nil); err != nil {
		t.Fatalf("Unregister missing: %v", err)
	}
}

func TestListActivePrunesDeadAndMalformed(t *testing.T) {
	store := fstore.New(t.TempDir())
	reg := New(store)
	ctx := context.Background()

	for _, name := range []string{"Bravo", "Alpha"} {
		if ok, _ := reg.Register(ctx, liveReg(name)); !ok {
			t.Fatalf("register %s", name)
		}
	}
	dead := liveReg("Zombie")
	dead.PID = 1 << 30
	if ok, _ := reg.Register(ctx, dead); !ok {
		t.Fatal("register zombie")
	}
	if err := store.WriteFileAtomic("registry/garbage.json", []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	active, err := reg.ListActive("")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("got %d active, want 2: %+v", len(active), active)
	}
	// Deterministic name ordering.
	if active[0].Name != "Alpha" || active[1].Name != "Bravo" {
		t.Errorf("order = [%s %s], want [Alpha Bravo]", active[0].Name, active[1].Name)
	}

	// Dead and malformed files were pruned on disk.
	if _, err := os.Stat(store.Path("registry/Zombie.json")); !os.IsNotExist(err) {
		t.Error("dead registration not pruned")
	}
	if _, err := os.Stat(store.Path("registry/garbage.json")); !os.IsNotExist(err) {
		t.Error("malformed registration not pruned")
	}

	// Exclusion by name.
	active, err = reg.ListActive("Alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Name != "Bravo" {
		t.Errorf("exclude Alpha: got %+v", active)
	}
}
