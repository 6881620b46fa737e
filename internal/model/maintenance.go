package model

import (
	"log/slog"
	"time"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/logfields"
)

// duplicates returns every child whose id or key was already seen earlier in
// insertion order.
func (c *Children[T]) duplicates() []T {
	mu := c.owner.object().mu
	mu.RLock()
	defer mu.RUnlock()
	seen := make(map[string]bool, len(c.items))
	seenID := make(map[string]bool, len(c.items))
	var out []T
	for _, it := range c.items {
		k, id := c.key(it), it.ID().String()
		if seen[k] || seenID[id] {
			out = append(out, it)
			continue
		}
		seen[k], seenID[id] = true, true
	}
	return out
}

func logDuplicate(kind string, n Node, attrs ...any) {
	err := errors.ConsistencyError("duplicate " + kind).
		WithContext("id", n.ID().String()).
		Build()
	attrs = append(attrs, logfields.Kind(kind), slog.String("name", n.Name()), logfields.ID(n.ID().String()), logfields.Error(err))
	slog.Error("Removing duplicate", attrs...)
}

// PruneDuplicates removes servers, channels, bots and packets that share a
// name (or number) with an earlier sibling. The first in insertion order is
// kept; removals cascade. It returns the number of entities removed.
func (s *ServerSet) PruneDuplicates() int {
	removed := 0
	for _, srv := range s.servers.duplicates() {
		logDuplicate("server", srv)
		srv.purge()
		if s.servers.Remove(srv) {
			removed++
		}
	}
	for _, srv := range s.servers.All() {
		for _, ch := range srv.channels.duplicates() {
			logDuplicate("channel", ch, logfields.Server(srv.Name()))
			ch.purge()
			if srv.channels.Remove(ch) {
				removed++
			}
		}
		for _, ch := range srv.channels.All() {
			for _, b := range ch.bots.duplicates() {
				logDuplicate("bot", b, logfields.Server(srv.Name()), logfields.Channel(ch.Name()))
				b.purge()
				if ch.bots.Remove(b) {
					removed++
				}
			}
			for _, b := range ch.bots.All() {
				for _, p := range b.packets.duplicates() {
					logDuplicate("packet", p, logfields.Bot(b.Name()), logfields.Packet(p.Number()))
					if b.packets.Remove(p) {
						removed++
					}
				}
			}
		}
	}
	return removed
}

func (s *Server) purge() {
	for _, ch := range s.channels.All() {
		ch.purge()
		s.channels.Remove(ch)
	}
}

func (c *Channel) purge() {
	for _, b := range c.bots.All() {
		b.purge()
		c.bots.Remove(b)
	}
}

func (b *Bot) purge() {
	for _, p := range b.packets.All() {
		b.packets.Remove(p)
	}
}

// ResetTransient clears live connection state after a restart. Durable fields
// are untouched and no events are raised.
func (s *ServerSet) ResetTransient() {
	s.mu.Lock()
	defer s.mu.Unlock()
	walk(s, func(n Node) {
		n.object().connected = false
		if b, ok := n.(*Bot); ok {
			b.state = Idle
			b.queuePosition = 0
			b.queueTime = 0
			b.infoSlotCurrent = 0
			b.infoQueueCurrent = 0
		}
	})
}

// ResetTransient marks every download disconnected and zeroes part speeds.
func (s *FileSet) ResetTransient() {
	s.mu.Lock()
	defer s.mu.Unlock()
	walk(s, func(n Node) {
		n.object().connected = false
		if p, ok := n.(*FilePart); ok {
			p.speed = 0
		}
	})
}

// RemoveStaleBots removes bots that are offline, have no enabled packet and
// were last heard from before olderThan. It returns the number removed.
func (s *ServerSet) RemoveStaleBots(olderThan time.Time) int {
	type stale struct {
		ch  *Channel
		bot *Bot
	}
	var found []stale

	s.mu.RLock()
	for _, srv := range s.servers.items {
		for _, ch := range srv.channels.items {
			for _, b := range ch.bots.items {
				if b.connected || !b.lastContact.Before(olderThan) || hasEnabledPacket(b) {
					continue
				}
				found = append(found, stale{ch: ch, bot: b})
			}
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, st := range found {
		st.bot.purge()
		if st.ch.bots.Remove(st.bot) {
			removed++
		}
	}
	return removed
}

func hasEnabledPacket(b *Bot) bool {
	for _, p := range b.packets.items {
		if p.enabled {
			return true
		}
	}
	return false
}

// Counts summarizes the server hierarchy.
type Counts struct {
	Servers, ServersConnected    int
	Channels, ChannelsConnected  int
	Bots, BotsConnected          int
	BotsFreeSlots, BotsFreeQueue int
	Packets, PacketsConnected    int
	PacketsSize                  int64
}

// Counts walks the hierarchy under the read lock.
func (s *ServerSet) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c Counts
	walk(s, func(n Node) {
		o := n.object()
		switch v := n.(type) {
		case *Server:
			c.Servers++
			if o.connected {
				c.ServersConnected++
			}
		case *Channel:
			c.Channels++
			if o.connected {
				c.ChannelsConnected++
			}
		case *Bot:
			c.Bots++
			if o.connected {
				c.BotsConnected++
			}
			if v.infoSlotCurrent > 0 {
				c.BotsFreeSlots++
			}
			if v.infoQueueCurrent > 0 {
				c.BotsFreeQueue++
			}
		case *Packet:
			c.Packets++
			if o.connected {
				c.PacketsConnected++
			}
			c.PacketsSize += v.size
		}
	})
	return c
}
