package fstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	s := New(t.TempDir())

	if err := s.WriteFileAtomic("a/b.json", []byte("one")); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := s.WriteFileAtomic("a/b.json", []byte("two")); err != nil {
		t.Fatalf("WriteFileAtomic overwrite: %v", err)
	}

	data, err := os.ReadFile(s.Path("a/b.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("content = %q, want %q", data, "two")
	}

	// No temp files left behind.
	entries, err := os.ReadDir(s.Path("a"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}

func TestAppendLineAddsNewline(t *testing.T) {
	s := New(t.TempDir())

	if err := s.AppendLine("log.jsonl", []byte(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendLine("log.jsonl", []byte(`{"a":2}`+"\n")); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(s.Path("log.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(lines), lines)
	}
}

func TestWithLockMutualExclusion(t *testing.T) {
	s := New(t.TempDir())

	const n = 16
	counter := 0
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithLock(context.Background(), "registry/x.json", func() error {
				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1
				return nil
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	timeouts := 0
	for err := range errs {
		if errors.Is(err, ErrLockTimeout) {
			timeouts++
			continue
		}
		t.Fatalf("WithLock: %v", err)
	}
	// Every goroutine either ran its critical section or timed out; the
	// counter must reflect exactly the ones that ran.
	if counter != n-timeouts {
		t.Errorf("counter = %d, want %d (timeouts=%d)", counter, n-timeouts, timeouts)
	}
}

func TestWithLockReclaimsDeadOwner(t *testing.T) {
	s := New(t.TempDir())

	// Simulate a crashed holder: a lock dir whose owner pid cannot exist.
	lockDir := s.Path("registry/y.json.lock")
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		t.Fatal(err)
	}
	owner, _ := json.Marshal(lockOwner{PID: 1 << 30, AcquiredAt: time.Now().UTC()})
	if err := os.WriteFile(filepath.Join(lockDir, "owner.json"), owner, 0644); err != nil {
		t.Fatal(err)
	}

	ran := false
	err := s.WithLock(context.Background(), "registry/y.json", func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Error("critical section did not run after dead-owner reclaim")
	}
}

func TestWithLockReclaimsExpiredOwner(t *testing.T) {
	s := NewWithLockOptions(t.TempDir(), LockOptions{
		StaleAfter:     50 * time.Millisecond,
		RetryEvery:     5 * time.Millisecond,
		AcquireTimeout: time.Second,
	})

	lockDir := s.Path("z.json.lock")
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		t.Fatal(err)
	}
	// Live pid (our own), but acquired long ago.
	owner, _ := json.Marshal(lockOwner{
		PID:        os.Getpid(),
		AcquiredAt: time.Now().UTC().Add(-time.Minute),
	})
	if err := os.WriteFile(filepath.Join(lockDir, "owner.json"), owner, 0644); err != nil {
		t.Fatal(err)
	}

	ran := false
	if err := s.WithLock(context.Background(), "z.json", func() error { ran = true; return nil }); err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Error("critical section did not run after age-based reclaim")
	}
}

func TestWithLockTimesOutAgainstLiveHolder(t *testing.T) {
	s := NewWithLockOptions(t.TempDir(), LockOptions{
		StaleAfter:     time.Minute,
		RetryEvery:     5 * time.Millisecond,
		AcquireTimeout: 50 * time.Millisecond,
	})

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		s.WithLock(context.Background(), "busy.json", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := s.WithLock(context.Background(), "busy.json", func() error { return nil })
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("err = %v, want ErrLockTimeout", err)
	}
}

func TestProcessAlive(t *testing.T) {
	if !ProcessAlive(os.Getpid()) {
		t.Error("own pid reported dead")
	}
	if ProcessAlive(1 << 30) {
		t.Error("impossible pid reported alive")
	}
	if ProcessAlive(0) || ProcessAlive(-5) {
		t.Error("non-positive pid reported alive")
	}
}
