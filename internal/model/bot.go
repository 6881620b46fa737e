package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BotState is the negotiation state of a bot.
type BotState int

const (
	Idle BotState = iota
	Waiting
	Active
)

func (s BotState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// ParseBotState is the inverse of BotState.String.
func ParseBotState(v string) (BotState, error) {
	switch strings.ToLower(v) {
	case "idle", "":
		return Idle, nil
	case "waiting":
		return Waiting, nil
	case "active":
		return Active, nil
	default:
		return Idle, fmt.Errorf("unknown bot state %q", v)
	}
}

// Bot is a remote participant offering packets.
type Bot struct {
	Object
	state            BotState
	queuePosition    int
	queueTime        int
	infoSlotCurrent  int
	infoSlotTotal    int
	infoQueueCurrent int
	infoQueueTotal   int
	lastMessage      string
	lastContact      time.Time
	packets          *Children[*Packet]
}

func NewBot(nick string) *Bot {
	b := &Bot{}
	b.init(b, strings.TrimSpace(nick))
	b.enabled = true
	b.packets = newChildren(b, func(v *Packet) string { return strconv.Itoa(v.number) })
	return b
}

func (b *Bot) children() []Node { return nodes(b.packets.items) }

func (b *Bot) State() BotState            { return getValue(&b.Object, &b.state) }
func (b *Bot) SetState(v BotState)        { setValue(&b.Object, &b.state, v, "state") }
func (b *Bot) QueuePosition() int         { return getValue(&b.Object, &b.queuePosition) }
func (b *Bot) SetQueuePosition(v int)     { setValue(&b.Object, &b.queuePosition, v, "queue_position") }
func (b *Bot) QueueTime() int             { return getValue(&b.Object, &b.queueTime) }
func (b *Bot) SetQueueTime(seconds int)   { setValue(&b.Object, &b.queueTime, seconds, "queue_time") }
func (b *Bot) InfoSlotCurrent() int       { return getValue(&b.Object, &b.infoSlotCurrent) }
func (b *Bot) SetInfoSlotCurrent(v int)   { setValue(&b.Object, &b.infoSlotCurrent, v, "info_slot_current") }
func (b *Bot) InfoSlotTotal() int         { return getValue(&b.Object, &b.infoSlotTotal) }
func (b *Bot) InfoQueueCurrent() int      { return getValue(&b.Object, &b.infoQueueCurrent) }
func (b *Bot) SetInfoQueueCurrent(v int)  { setValue(&b.Object, &b.infoQueueCurrent, v, "info_queue_current") }
func (b *Bot) InfoQueueTotal() int        { return getValue(&b.Object, &b.infoQueueTotal) }
func (b *Bot) SetInfoQueueTotal(v int)    { setValue(&b.Object, &b.infoQueueTotal, v, "info_queue_total") }
func (b *Bot) LastMessage() string        { return getValue(&b.Object, &b.lastMessage) }
func (b *Bot) SetLastMessage(v string)    { setValue(&b.Object, &b.lastMessage, v, "last_message") }
func (b *Bot) LastContact() time.Time     { return getValue(&b.Object, &b.lastContact) }
func (b *Bot) SetLastContact(t time.Time) { setTime(&b.Object, &b.lastContact, t, "last_contact") }

func (b *Bot) Packets() *Children[*Packet] { return b.packets }

// Packet returns the packet with the given offer number, or nil.
func (b *Bot) Packet(number int) *Packet {
	v, _ := b.packets.byKey(strconv.Itoa(number))
	return v
}

// AddPacket returns the existing packet numbered number or attaches a new one.
func (b *Bot) AddPacket(number int, name string, size int64) *Packet {
	p := NewPacket(number, name, size)
	if b.packets.Add(p) {
		return p
	}
	return b.Packet(number)
}

// OldestActivePacket returns the enabled packet with the lowest number.
func (b *Bot) OldestActivePacket() *Packet {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var oldest *Packet
	for _, p := range b.packets.items {
		if p.enabled && (oldest == nil || p.number < oldest.number) {
			oldest = p
		}
	}
	return oldest
}

// Channel returns the owning channel, or nil when detached.
func (b *Bot) Channel() *Channel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, _ := b.parent.(*Channel)
	return c
}

// Server returns the server owning the bot's channel.
func (b *Bot) Server() *Server {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if c, ok := b.parent.(*Channel); ok {
		s, _ := c.parent.(*Server)
		return s
	}
	return nil
}

func (b *Bot) String() string {
	return fmt.Sprintf("bot %s (%s)", b.Name(), b.State())
}

// Packet is one numbered file offer of a bot.
type Packet struct {
	Object
	number        int
	size          int64
	lastMentioned time.Time
}

func NewPacket(number int, name string, size int64) *Packet {
	p := &Packet{number: number, size: size}
	p.init(p, name)
	p.enabled = true
	return p
}

// Number is the offer id; it never changes.
func (p *Packet) Number() int { return p.number }

func (p *Packet) Size() int64              { return getValue(&p.Object, &p.size) }
func (p *Packet) SetSize(v int64)          { setValue(&p.Object, &p.size, v, "size") }
func (p *Packet) LastMentioned() time.Time { return getValue(&p.Object, &p.lastMentioned) }
func (p *Packet) SetLastMentioned(t time.Time) {
	setTime(&p.Object, &p.lastMentioned, t, "last_mentioned")
}

func (p *Packet) Bot() *Bot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, _ := p.parent.(*Bot)
	return b
}
