package registry

import (
	"context"
	"strings"
	"testing"
)

func TestPatternMatches(t *testing.T) {
	cases := []struct {
		path, pattern string
		want          bool
	}{
		{"src/main.go", "src/", true},
		{"src/a/b/c.go", "src/", true},
		{"src/", "src/", true},
		{"src2/file", "src/", false}, // same-prefix sibling must not match
		{"srcfile.go", "src/", false},
		{"src/main.go", "src/main.go", true},
		{"./src/main.go", "src/main.go", true},
		{"src/main.go", "./src/main.go", true},
		{"src/main.go", "src/main", false},
		{"src/main.go", "", false},
		{"", "src/", false},
	}
	for _, tc := range cases {
		if got := PatternMatches(tc.path, tc.pattern); got != tc.want {
			t.Errorf("PatternMatches(%q, %q) = %v, want %v", tc.path, tc.pattern, got, tc.want)
		}
	}
}

func TestConflictsForExcludesSelf(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	me := liveReg("Me")
	peer := liveReg("Peer")
	for _, r := range []Registration{me, peer} {
		if ok, _ := reg.Register(ctx, r); !ok {
			t.Fatalf("register %s", r.Name)
		}
	}
	if err := reg.Reserve(ctx, "Me", []string{"shared/"}, "mine"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Reserve(ctx, "Peer", []string{"shared/"}, "theirs"); err != nil {
		t.Fatal(err)
	}

	conflicts, err := reg.ConflictsFor("Me", "shared/util.go")
	if err != nil {
		t.Fatalf("ConflictsFor: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1: %+v", len(conflicts), conflicts)
	}
	c := conflicts[0]
	if c.Agent != "Peer" || c.Pattern != "shared/" || c.Reason != "theirs" {
		t.Errorf("conflict = %+v", c)
	}
	if c.Path != "shared/util.go" {
		t.Errorf("path = %q", c.Path)
	}
}

func TestConflictsForIgnoresDeadHolders(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	holder := liveReg("Crashed")
	holder.Reservations = []Reservation{{Pattern: "docs/"}}
	if ok, _ := reg.Register(ctx, holder); !ok {
		t.Fatal("register")
	}
	if err := reg.Reserve(ctx, "Crashed", []string{"docs/"}, "writing"); err != nil {
		t.Fatal(err)
	}

	// Kill the holder by rewriting its pid to an impossible one.
	stored := reg.Get("Crashed")
	stored.PID = 1 << 30
	if err := reg.store.WriteJSON(regPath("Crashed"), stored); err != nil {
		t.Fatal(err)
	}

	conflicts, err := reg.ConflictsFor("Someone", "docs/readme.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) != 0 {
		t.Errorf("dead holder produced conflicts: %+v", conflicts)
	}
}

func TestCheckWrite(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	editor := liveReg("Editor")
	if ok, _ := reg.Register(ctx, editor); !ok {
		t.Fatal("register")
	}
	if err := reg.Reserve(ctx, "Editor", []string{"api/"}, "rewriting handlers"); err != nil {
		t.Fatal(err)
	}

	d := reg.CheckWrite("Other", "api/server.go")
	if d.Allowed {
		t.Fatal("write allowed despite reservation")
	}
	explain := d.Explain()
	for _, want := range []string{"Editor", "api/", "rewriting handlers"} {
		if !strings.Contains(explain, want) {
			t.Errorf("explanation %q missing %q", explain, want)
		}
	}

	if d := reg.CheckWrite("Editor", "api/server.go"); !d.Allowed {
		t.Error("own reservation blocked own write")
	}
	if d := reg.CheckWrite("Other", "web/index.html"); !d.Allowed {
		t.Error("unreserved path blocked")
	}
}
