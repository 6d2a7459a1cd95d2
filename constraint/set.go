// Package constraint holds the mutual-exclusion groups between job names
// that the scheduler consults before admitting or draining a job (spec.md
// §4.3's constraint check, §5's copy-on-write requirement).
//
// The teacher's own collections.HashSet is commented out in its entirety and
// does not compile (see DESIGN.md); groups are plain map[string]struct{}
// instead, which is the fallback idiom the teacher itself uses elsewhere
// (chrono's job registries) when no generic set type is in play.
package constraint

import "sync/atomic"

// Group is an immutable set of two or more job names that mutually exclude
// RUNNING state (spec.md §3.1's RunningConstraint).
type Group map[string]struct{}

// NewGroup builds a Group from the given names.
func NewGroup(names ...string) Group {
	g := make(Group, len(names))
	for _, n := range names {
		g[n] = struct{}{}
	}
	return g
}

// Contains reports whether name is a member of the group.
func (g Group) Contains(name string) bool {
	_, ok := g[name]
	return ok
}

// Set is the copy-on-write collection of registered constraint Groups.
// Reads never block a concurrent Add: Add builds a new slice and swaps it
// in, so an in-flight Blocks call always sees a complete, consistent
// snapshot (spec.md §5: "the running-constraint set is copy-on-write").
type Set struct {
	groups atomic.Pointer[[]Group]
}

// NewSet returns an empty Set.
func NewSet() *Set {
	s := &Set{}
	empty := make([]Group, 0)
	s.groups.Store(&empty)
	return s
}

// Add registers a new constraint group. It does not validate membership
// against any registry of known job names — callers (the scheduler) are
// responsible for rejecting unknown names with JobNotRegistered before
// calling Add, per spec.md §4.3.
func (s *Set) Add(group Group) {
	for {
		old := s.groups.Load()
		next := make([]Group, len(*old), len(*old)+1)
		copy(next, *old)
		next = append(next, group)
		if s.groups.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Blocker reports whether a record for candidateName is RUNNING, used by
// Blocks to evaluate every constraint group containing candidateName.
type Blocker func(name string) bool

// Blocks reports whether candidateName is blocked from becoming RUNNING by
// any constraint group it belongs to.
//
// This check is deliberately reflexive: per spec.md §9's Open Question, a
// group containing candidateName blocks the candidate if ANY member of the
// group — including candidateName itself — is currently RUNNING. That
// duplicates the separate "is there already a RUNNING record for this
// name" check the scheduler performs elsewhere, but the source behaves this
// way and the spec calls out that this duplication is intentional; it is
// preserved here rather than "fixed" into a non-reflexive check.
func (s *Set) Blocks(candidateName string, isRunning Blocker) bool {
	groups := *s.groups.Load()
	for _, g := range groups {
		if !g.Contains(candidateName) {
			continue
		}
		for member := range g {
			if isRunning(member) {
				return true
			}
		}
	}
	return false
}

// Groups returns a snapshot of every registered constraint group.
func (s *Set) Groups() []Group {
	groups := *s.groups.Load()
	out := make([]Group, len(groups))
	copy(out, groups)
	return out
}
