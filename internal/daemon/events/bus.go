package events

import (
	"reflect"
	"sync"
)

// Bus fans graph events out to in-process subscribers. Delivery never
// blocks: observer callbacks run under graph locks, so a subscriber whose
// buffer is full simply misses the event and Offer reports the drop.
type Bus struct {
	mu     sync.RWMutex
	subs   map[reflect.Type]map[uint64]*subscriber
	nextID uint64
	closed bool
}

type subscriber struct {
	mu      sync.Mutex
	closed  bool
	try     func(evt any) bool
	closeCh func()
}

func (s *subscriber) deliver(evt any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.try(evt)
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.closeCh()
	}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[uint64]*subscriber)}
}

// Subscribe returns a channel receiving events of type T and a function
// that cancels the subscription and closes the channel.
//
// An interface T receives every event implementing it; a concrete T only
// events of exactly that type. Subscribing to a closed bus yields an
// already closed channel.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	eventType := reflect.TypeFor[T]()
	ch := make(chan T, buffer)
	sub := &subscriber{
		try: func(evt any) bool {
			v, ok := evt.(T)
			if !ok {
				return false
			}
			select {
			case ch <- v:
				return true
			default:
				return false
			}
		},
		closeCh: func() { close(ch) },
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return ch, func() {}
	}
	b.nextID++
	id := b.nextID
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]*subscriber)
	}
	b.subs[eventType][id] = sub
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if typeSubs, ok := b.subs[eventType]; ok {
				delete(typeSubs, id)
				if len(typeSubs) == 0 {
					delete(b.subs, eventType)
				}
			}
			b.mu.Unlock()
			sub.close()
		})
	}
}

// SubscriberCount reports how many subscriptions exist for exactly T.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[reflect.TypeFor[T]()])
}

func (b *Bus) targets(evt any) []*subscriber {
	evtType := reflect.TypeOf(evt)

	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*subscriber
	for subType, typeSubs := range b.subs {
		if subType != evtType && (subType.Kind() != reflect.Interface || !evtType.Implements(subType)) {
			continue
		}
		for _, s := range typeSubs {
			out = append(out, s)
		}
	}
	return out
}

// Offer hands evt to every matching subscriber with buffer space and
// returns how many matching subscribers dropped it.
func (b *Bus) Offer(evt any) int {
	if evt == nil {
		return 0
	}
	dropped := 0
	for _, s := range b.targets(evt) {
		if !s.deliver(evt) {
			dropped++
		}
	}
	return dropped
}

// Close ends every subscription. Later Offers are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	all := b.subs
	b.subs = make(map[reflect.Type]map[uint64]*subscriber)
	b.mu.Unlock()

	for _, typeSubs := range all {
		for _, s := range typeSubs {
			s.close()
		}
	}
}
