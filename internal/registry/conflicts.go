package registry

import (
	"fmt"
	"strings"
)

// Conflict is a reservation held by another live agent that matches a
// candidate path. Derived from a registry snapshot, never persisted.
type Conflict struct {
	Path         string
	Agent        string
	Pattern      string
	Reason       string
	Registration Registration
}

// NormalizePath strips a leading "./" and collapses backslashes so exact
// pattern comparison works on the same shape both sides.
func NormalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

// PatternMatches reports whether path falls under pattern. Patterns ending
// in a path separator claim the directory subtree: the match is a prefix
// test against the separator-terminated pattern, so "src2/x" does not match
// "src/". Any other pattern requires exact normalized equality.
func PatternMatches(path, pattern string) bool {
	path = NormalizePath(path)
	pattern = NormalizePath(pattern)
	if path == "" || pattern == "" {
		return false
	}
	if strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(path, pattern)
	}
	return path == pattern
}

// ConflictsFor matches the candidate path against every reservation of every
// other live agent and returns the matches. Pure over the registry snapshot
// read at call time; safe to call on every write/edit attempt.
func (reg *Registry) ConflictsFor(selfName, path string) ([]Conflict, error) {
	path = NormalizePath(path)
	if path == "" {
		return nil, fmt.Errorf("registry: path is required")
	}

	others, err := reg.ListActive(selfName)
	if err != nil {
		return nil, err
	}

	var conflicts []Conflict
	for _, other := range others {
		for _, res := range other.Reservations {
			if PatternMatches(path, res.Pattern) {
				conflicts = append(conflicts, Conflict{
					Path:         path,
					Agent:        other.Name,
					Pattern:      res.Pattern,
					Reason:       res.Reason,
					Registration: other,
				})
			}
		}
	}
	return conflicts, nil
}

// WriteDecision is the outcome of the edit/write interception hook.
type WriteDecision struct {
	Allowed   bool
	Conflicts []Conflict
}

// Explain renders a human-readable block reason for a denied write.
func (d WriteDecision) Explain() string {
	if d.Allowed {
		return ""
	}
	var b strings.Builder
	b.WriteString("path is reserved by another agent:")
	for _, c := range d.Conflicts {
		fmt.Fprintf(&b, "\n  %s (pattern %q", c.Agent, c.Pattern)
		if c.Reason != "" {
			fmt.Fprintf(&b, ", reason: %s", c.Reason)
		}
		b.WriteString(")")
	}
	return b.String()
}

// CheckWrite is the interception hook consumed by a host's edit/write tool
// pipeline: given the acting agent and a candidate path it returns allow, or
// block with the conflicting owners. Failure to read the registry degrades
// to allow, since conflict detection is advisory.
func (reg *Registry) CheckWrite(selfName, path string) WriteDecision {
	conflicts, err := reg.ConflictsFor(selfName, path)
	if err != nil {
		return WriteDecision{Allowed: true}
	}
	return WriteDecision{Allowed: len(conflicts) == 0, Conflicts: conflicts}
}
