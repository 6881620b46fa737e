package model

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Children is an insertion-ordered container whose members are unique by id
// and by a per-container key (usually the folded display name).
type Children[T Node] struct {
	owner Node
	key   func(T) string
	items []T
}

func newChildren[T Node](owner Node, key func(T) string) *Children[T] {
	return &Children[T]{owner: owner, key: key}
}

func foldKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Add attaches child and raises Added. It returns false when child already has
// a parent or a sibling with the same id or key exists.
func (c *Children[T]) Add(child T) bool {
	mu := c.owner.object().mu
	mu.Lock()
	if child.object().parent != nil || c.conflicts(child) {
		mu.Unlock()
		return false
	}
	c.attach(child)
	mu.Unlock()

	notify(c.owner, Event{Kind: Added, Parent: c.owner, Object: child})
	return true
}

// attach appends without uniqueness checks. Used by restore so that corrupt
// snapshots can be loaded and pruned afterwards. Caller holds the lock.
func (c *Children[T]) attach(child T) {
	child.object().parent = c.owner
	adopt(child, c.owner.object().mu)
	c.items = append(c.items, child)
}

func (c *Children[T]) conflicts(child T) bool {
	k := c.key(child)
	for _, it := range c.items {
		if it.ID() == child.ID() || c.key(it) == k {
			return true
		}
	}
	return false
}

// Remove detaches child and raises Removed. It returns false if child is not
// a member.
func (c *Children[T]) Remove(child T) bool {
	mu := c.owner.object().mu
	mu.Lock()
	if !c.detach(child) {
		mu.Unlock()
		return false
	}
	mu.Unlock()

	notify(c.owner, Event{Kind: Removed, Parent: c.owner, Object: child})
	return true
}

func (c *Children[T]) detach(child T) bool {
	idx := slices.IndexFunc(c.items, func(it T) bool { return it.ID() == child.ID() })
	if idx < 0 {
		return false
	}
	c.items = slices.Delete(c.items, idx, idx+1)
	child.object().parent = nil
	return true
}

// ByName returns the first child whose name matches case-insensitively.
func (c *Children[T]) ByName(name string) (T, bool) {
	mu := c.owner.object().mu
	mu.RLock()
	defer mu.RUnlock()
	for _, it := range c.items {
		if strings.EqualFold(it.object().name, name) {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (c *Children[T]) ByID(id uuid.UUID) (T, bool) {
	mu := c.owner.object().mu
	mu.RLock()
	defer mu.RUnlock()
	for _, it := range c.items {
		if it.ID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (c *Children[T]) byKey(k string) (T, bool) {
	mu := c.owner.object().mu
	mu.RLock()
	defer mu.RUnlock()
	for _, it := range c.items {
		if c.key(it) == k {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// All returns a snapshot of the children in insertion order.
func (c *Children[T]) All() []T {
	mu := c.owner.object().mu
	mu.RLock()
	defer mu.RUnlock()
	return slices.Clone(c.items)
}

func (c *Children[T]) Len() int {
	mu := c.owner.object().mu
	mu.RLock()
	defer mu.RUnlock()
	return len(c.items)
}
