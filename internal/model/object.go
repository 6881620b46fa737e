package model

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a graph change.
type EventKind int

const (
	Added EventKind = iota + 1
	Removed
	Changed
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Changed:
		return "changed"
	default:
		return "unknown"
	}
}

// Event describes one change. For Added and Removed, Parent is the container
// and Object the child. For Changed, Object is the mutated entity, Parent its
// parent at the time of the change and Field the name of the field.
type Event struct {
	Kind   EventKind
	Parent Node
	Object Node
	Field  string
}

// Node is implemented by every entity in the graph.
type Node interface {
	ID() uuid.UUID
	Name() string
	object() *Object
	children() []Node
}

type observer struct {
	id int
	fn func(Event)
}

// Object is the base embedded by every entity.
type Object struct {
	id        uuid.UUID
	name      string
	enabled   bool
	connected bool
	modified  bool
	gen       uint64 // bumped by every effective write

	mu        *sync.RWMutex
	self      Node
	parent    Node
	observers []observer
	nextObs   int
}

func (o *Object) init(self Node, name string) {
	o.id = uuid.New()
	o.name = name
	o.mu = new(sync.RWMutex)
	o.self = self
}

func (o *Object) object() *Object  { return o }
func (o *Object) children() []Node { return nil }

// ID returns the stable identity of the entity.
func (o *Object) ID() uuid.UUID { return o.id }

func (o *Object) Name() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.name
}

func (o *Object) SetName(name string) { setValue(o, &o.name, name, "name") }

func (o *Object) Enabled() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.enabled
}

func (o *Object) SetEnabled(v bool) { setValue(o, &o.enabled, v, "enabled") }

func (o *Object) Connected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.connected
}

func (o *Object) SetConnected(v bool) { setValue(o, &o.connected, v, "connected") }

// Modified reports whether a setter changed a value since the last Commit.
func (o *Object) Modified() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.modified
}

// Commit clears the modified flag.
func (o *Object) Commit() {
	o.mu.Lock()
	o.modified = false
	o.mu.Unlock()
}

// Parent returns the owning container, or nil for roots and detached entities.
func (o *Object) Parent() Node {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.parent
}

// Observe registers fn for events on this node and every descendant.
func (o *Object) Observe(fn func(Event)) (cancel func()) {
	o.mu.Lock()
	o.nextObs++
	id := o.nextObs
	o.observers = append(o.observers, observer{id: id, fn: fn})
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.observers = slices.DeleteFunc(o.observers, func(ob observer) bool { return ob.id == id })
	}
}

// setValue writes field under the aggregate lock and notifies only when the
// value actually changed.
func setValue[V comparable](o *Object, field *V, v V, name string) {
	o.mu.Lock()
	if *field == v {
		o.mu.Unlock()
		return
	}
	*field = v
	o.modified = true
	o.gen++
	o.mu.Unlock()
	notify(o.self, Event{Kind: Changed, Object: o.self, Field: name})
}

func setTime(o *Object, field *time.Time, v time.Time, name string) {
	o.mu.Lock()
	if field.Equal(v) {
		o.mu.Unlock()
		return
	}
	*field = v
	o.modified = true
	o.gen++
	o.mu.Unlock()
	notify(o.self, Event{Kind: Changed, Object: o.self, Field: name})
}

func getValue[V any](o *Object, field *V) V {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return *field
}

// notify collects the observers of from and all its ancestors under the read
// lock and calls them after releasing it.
func notify(from Node, ev Event) {
	mu := from.object().mu
	mu.RLock()
	if ev.Kind == Changed {
		ev.Parent = from.object().parent
	}
	var fns []func(Event)
	for n := from; n != nil; n = n.object().parent {
		for _, ob := range n.object().observers {
			fns = append(fns, ob.fn)
		}
	}
	mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// adopt points n and its whole subtree at the aggregate lock mu.
func adopt(n Node, mu *sync.RWMutex) {
	n.object().mu = mu
	for _, c := range n.children() {
		adopt(c, mu)
	}
}

// walk visits n and every descendant depth first. Callers hold the lock.
func walk(n Node, fn func(Node)) {
	fn(n)
	for _, c := range n.children() {
		walk(c, fn)
	}
}

// commitTree clears the modified flag of n and all descendants.
func commitTree(n Node) {
	mu := n.object().mu
	mu.Lock()
	defer mu.Unlock()
	walk(n, func(c Node) { c.object().modified = false })
}

func nodes[T Node](items []T) []Node {
	out := make([]Node, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}
