package matcher

import (
	"fmt"
	"sync"

	"github.com/nasubidev/splatrecorder/internal/model"
)

// Group is an ordered list of ScreenKeys sharing a group name. MatchedName
// returns the first key whose matcher passes, or "" if none do — group
// order is semantically load-bearing (invariant 6 / testable property 6):
// changing the order changes the result when multiple members match.
type Group struct {
	Name string
	Keys []model.ScreenKey
}

// Registry is loaded once from configuration and is immutable thereafter
// (invariant: thread-safe for concurrent readers; any later mutation is a
// programming error, asserted at load time per spec.md §9).
type Registry struct {
	mu       sync.RWMutex // guards nothing after loaded=true; documents the contract
	loaded   bool
	matchers map[model.ScreenKey]Matcher
	named    map[model.ScreenKey]Named
	groups   map[string]Group
}

// NewRegistry returns an empty, not-yet-loaded Registry. Populate it with
// Add/AddGroup (BuildRegistry does this from a File), then call Freeze.
func NewRegistry() *Registry {
	return &Registry{
		matchers: map[model.ScreenKey]Matcher{},
		named:    map[model.ScreenKey]Named{},
		groups:   map[string]Group{},
	}
}

// Add registers a matcher under key. Must be called before Freeze.
func (r *Registry) Add(key model.ScreenKey, m Matcher) error {
	if r.loaded {
		return fmt.Errorf("matcher: registry already frozen, cannot add %q", key)
	}
	if _, exists := r.matchers[key]; exists {
		return fmt.Errorf("matcher: duplicate screen key %q", key)
	}
	r.matchers[key] = m
	if n, ok := m.(Named); ok {
		r.named[key] = n
	}
	return nil
}

// AddGroup registers a named, ordered group of keys. Must be called before
// Freeze. Every key in the group must already be registered via Add.
func (r *Registry) AddGroup(g Group) error {
	if r.loaded {
		return fmt.Errorf("matcher: registry already frozen, cannot add group %q", g.Name)
	}
	for _, k := range g.Keys {
		if _, ok := r.matchers[k]; !ok {
			return fmt.Errorf("matcher: group %q references unknown key %q", g.Name, k)
		}
	}
	r.groups[g.Name] = g
	return nil
}

// Freeze marks the registry as loaded; Add/AddGroup after this point return
// errors (this is the "MatcherMisconfig: hard fail at startup" boundary from
// spec.md §7 — callers should treat a Freeze-time error as fatal).
func (r *Registry) Freeze() {
	r.loaded = true
}

// Match evaluates the matcher registered under key against frame. Returns
// false if key is unknown (caller error, logged by higher layers — the
// registry itself never raises per spec.md §4.1).
func (r *Registry) Match(key model.ScreenKey, frame model.Frame) bool {
	m, ok := r.matchers[key]
	if !ok {
		return false
	}
	return m.Match(frame)
}

// MatchedName returns the name of the first matcher in the named group whose
// Match passes, or "" if none do, or if the group is unknown.
func (r *Registry) MatchedName(group string, frame model.Frame) string {
	g, ok := r.groups[group]
	if !ok {
		return ""
	}
	for _, key := range g.Keys {
		n, ok := r.named[key]
		if !ok {
			continue
		}
		if n.Match(frame) {
			return n.Name()
		}
	}
	return ""
}

// MatchedKey is like MatchedName but returns the ScreenKey instead of the
// display name, useful when callers need to key further lookups.
func (r *Registry) MatchedKey(group string, frame model.Frame) (model.ScreenKey, bool) {
	g, ok := r.groups[group]
	if !ok {
		return "", false
	}
	for _, key := range g.Keys {
		m, ok := r.matchers[key]
		if !ok {
			continue
		}
		if m.Match(frame) {
			return key, true
		}
	}
	return "", false
}
