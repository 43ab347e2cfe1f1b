package registry

import (
	"context"
	"fmt"
	"time"

	"agentmesh/internal/debug"
)

// Reserve adds reservations for the named agent's registration. Patterns the
// agent already holds are refreshed in place rather than duplicated. The
// agent must be registered.
func (reg *Registry) Reserve(ctx context.Context, name string, patterns []string, reason string) error {
	return reg.store.WithLock(ctx, regPath(name), func() error {
		var r Registration
		if err := reg.store.ReadJSON(regPath(name), &r); err != nil {
			return fmt.Errorf("agent %q is not registered: %w", name, err)
		}
		now := time.Now().UTC()
		for _, p := range patterns {
			p = NormalizePath(p)
			if p == "" {
				continue
			}
			replaced := false
			for i := range r.Reservations {
				if r.Reservations[i].Pattern == p {
					r.Reservations[i].Reason = reason
					r.Reservations[i].Since = now
					replaced = true
					break
				}
			}
			if !replaced {
				r.Reservations = append(r.Reservations, Reservation{
					Pattern: p,
					Reason:  reason,
					Since:   now,
				})
			}
		}
		debug.LogKV("registry", "reservations updated", "name", name, "count", len(r.Reservations))
		return reg.store.WriteJSON(regPath(name), &r)
	})
}

// Release removes the given patterns from the agent's reservations. An empty
// pattern list releases everything.
func (reg *Registry) Release(ctx context.Context, name string, patterns []string) error {
	return reg.store.WithLock(ctx, regPath(name), func() error {
		var r Registration
		if err := reg.store.ReadJSON(regPath(name), &r); err != nil {
			return fmt.Errorf("agent %q is not registered: %w", name, err)
		}
		if len(patterns) == 0 {
			r.Reservations = nil
		} else {
			drop := make(map[string]struct{}, len(patterns))
			for _, p := range patterns {
				drop[NormalizePath(p)] = struct{}{}
			}
			kept := r.Reservations[:0]
			for _, res := range r.Reservations {
				if _, ok := drop[res.Pattern]; !ok {
					kept = append(kept, res)
				}
			}
			r.Reservations = kept
		}
		return reg.store.WriteJSON(regPath(name), &r)
	})
}
