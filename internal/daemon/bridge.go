package daemon

import (
	"log/slog"
	"time"

	"git.home.luguber.info/inful/xgrab/internal/daemon/events"
	"git.home.luguber.info/inful/xgrab/internal/model"
)

// EventBridge turns graph observer callbacks into typed bus events.
type EventBridge struct {
	bus     *events.Bus
	now     func() time.Time
	cancels []func()
}

// NewEventBridge observes the three aggregates until Close.
func NewEventBridge(bus *events.Bus, servers *model.ServerSet, files *model.FileSet, searches *model.SearchSet) *EventBridge {
	b := &EventBridge{bus: bus, now: time.Now}
	b.cancels = append(b.cancels,
		servers.Observe(b.onServers),
		files.Observe(b.onFiles),
		searches.Observe(b.onSearches),
	)
	return b
}

func ref(n model.Node) events.Ref {
	if n == nil {
		return events.Ref{}
	}
	return events.Ref{ID: n.ID(), Name: n.Name(), Kind: kindOf(n)}
}

func kindOf(n model.Node) string {
	switch n.(type) {
	case *model.ServerSet:
		return "servers"
	case *model.Server:
		return "server"
	case *model.Channel:
		return "channel"
	case *model.Bot:
		return "bot"
	case *model.Packet:
		return "packet"
	case *model.FileSet:
		return "files"
	case *model.File:
		return "file"
	case *model.FilePart:
		return "file_part"
	case *model.SearchSet:
		return "searches"
	case *model.Search:
		return "search"
	}
	return "unknown"
}

func (b *EventBridge) offer(evt events.Typed) {
	if dropped := b.bus.Offer(evt); dropped > 0 {
		slog.Warn("Event dropped by slow subscriber", slog.String("type", evt.EventType()), slog.Int("dropped", dropped))
	}
}

func (b *EventBridge) onServers(ev model.Event) {
	switch ev.Kind {
	case model.Added:
		b.offer(events.ObjectAdded{Parent: ref(ev.Parent), Object: ref(ev.Object), At: b.now()})
	case model.Removed:
		b.offer(events.ObjectRemoved{Parent: ref(ev.Parent), Object: ref(ev.Object), At: b.now()})
	}
}

func (b *EventBridge) onFiles(ev model.Event) {
	switch obj := ev.Object.(type) {
	case *model.File:
		switch ev.Kind {
		case model.Added:
			b.offer(events.FileAdded{File: ref(obj), Size: obj.Size(), At: b.now()})
		case model.Removed:
			b.offer(events.FileRemoved{File: ref(obj), At: b.now()})
		}
	case *model.FilePart:
		if ev.Kind == model.Changed && ev.Field == "state" {
			b.offer(events.FilePartStateChanged{File: ref(ev.Parent), Part: ref(obj), State: obj.State().String(), At: b.now()})
		}
	}
}

func (b *EventBridge) onSearches(ev model.Event) {
	switch ev.Kind {
	case model.Added:
		b.offer(events.SearchAdded{Search: ref(ev.Object), At: b.now()})
	case model.Removed:
		b.offer(events.SearchRemoved{Search: ref(ev.Object), At: b.now()})
	}
}

// Close stops observing.
func (b *EventBridge) Close() {
	for _, c := range b.cancels {
		c()
	}
	b.cancels = nil
}
