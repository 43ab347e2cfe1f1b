// Package fstore provides the shared-filesystem primitives the coordination
// layer is built on: atomic rename-based file replacement, single-write
// appends, and directory-based cross-process locks with staleness recovery.
//
// The "shared state" of the whole system is a directory tree mutated by many
// independent OS processes. Every mutation of registry or inbox state goes
// through these helpers so that concurrent readers never observe a partial
// write.
package fstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Store is a handle to the shared state directory. It carries no in-process
// state beyond the root path; the directory tree itself is the shared state.
type Store struct {
	root string

	// Lock tuning, overridable for tests.
	lockOpts LockOptions
}

// New returns a Store rooted at dir with default lock options.
func New(dir string) *Store {
	return &Store{root: dir, lockOpts: DefaultLockOptions()}
}

// NewWithLockOptions returns a Store with custom lock tuning.
func NewWithLockOptions(dir string, opts LockOptions) *Store {
	return &Store{root: dir, lockOpts: opts}
}

// Root returns the shared state root directory.
func (s *Store) Root() string {
	return s.root
}

// Path joins relative path elements onto the store root.
func (s *Store) Path(elem ...string) string {
	return filepath.Join(append([]string{s.root}, elem...)...)
}

// EnsureDir creates the directory (and parents) for the given relative path.
func (s *Store) EnsureDir(rel string) error {
	return os.MkdirAll(s.Path(rel), 0755)
}

// WriteFileAtomic writes data to the relative path via a temporary sibling
// file followed by a rename, so concurrent readers see either the old or the
// new content, never a partial write.
func (s *Store) WriteFileAtomic(rel string, data []byte) error {
	target := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating parent dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// WriteJSON marshals v with indentation and writes it atomically.
func (s *Store) WriteJSON(rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return s.WriteFileAtomic(rel, data)
}

// ReadJSON reads the relative path and unmarshals it into v.
func (s *Store) ReadJSON(rel string, v any) error {
	data, err := os.ReadFile(s.Path(rel))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// AppendLine appends a single newline-terminated record to the relative
// path. The write is issued as one O_APPEND write so records from concurrent
// processes never interleave mid-line.
func (s *Store) AppendLine(rel string, line []byte) error {
	target := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if n := len(line); n == 0 || line[n-1] != '\n' {
		line = append(line, '\n')
	}
	_, err = f.Write(line)
	return err
}

// ProcessAlive reports whether pid resolves to a running process. Signal 0
// probes existence without delivering anything; EPERM still means alive.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
