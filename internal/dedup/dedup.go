// Package dedup remembers which source identifiers have already been handled
// so later runs skip them. Membership only grows.
package dedup

import (
	"context"
	"sort"
)

// Store is a persistent, monotonic set of identifiers. Implementations are
// safe for concurrent use.
type Store interface {
	Contains(id string) bool
	// Add records id and persists it before returning. A persist failure is
	// returned, but the in-memory set keeps id either way.
	Add(ctx context.Context, id string) error
	// Snapshot returns a copy of the current set.
	Snapshot() map[string]struct{}
	Close() error
}

// Sorted returns the members of s in lexical order.
func Sorted(s Store) []string {
	snap := s.Snapshot()
	out := make([]string, 0, len(snap))
	for id := range snap {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
