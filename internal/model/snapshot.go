package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ObjectData is the persisted form of the object base.
type ObjectData struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Connected bool      `json:"connected"`
}

type ServerSetSnapshot struct {
	Servers []ServerData `json:"servers"`
}

type ServerData struct {
	ObjectData
	Port      int           `json:"port"`
	ErrorCode int           `json:"error_code,omitempty"`
	Channels  []ChannelData `json:"channels"`
}

type ChannelData struct {
	ObjectData
	ErrorCode int       `json:"error_code,omitempty"`
	Bots      []BotData `json:"bots"`
}

type BotData struct {
	ObjectData
	State            string       `json:"state"`
	QueuePosition    int          `json:"queue_position"`
	QueueTime        int          `json:"queue_time"`
	InfoSlotCurrent  int          `json:"info_slot_current"`
	InfoSlotTotal    int          `json:"info_slot_total"`
	InfoQueueCurrent int          `json:"info_queue_current"`
	InfoQueueTotal   int          `json:"info_queue_total"`
	LastMessage      string       `json:"last_message,omitempty"`
	LastContact      time.Time    `json:"last_contact"`
	Packets          []PacketData `json:"packets"`
}

type PacketData struct {
	ObjectData
	Number        int       `json:"number"`
	Size          int64     `json:"size"`
	LastMentioned time.Time `json:"last_mentioned"`
}

type FileSetSnapshot struct {
	Files []FileData `json:"files"`
}

type FileData struct {
	ObjectData
	Size    int64      `json:"size"`
	TmpName string     `json:"tmp_name"`
	Parts   []PartData `json:"parts"`
}

type PartData struct {
	ObjectData
	Start   int64  `json:"start"`
	Stop    int64  `json:"stop"`
	Current int64  `json:"current"`
	State   string `json:"state"`
	Speed   int64  `json:"speed"`
}

type SearchSetSnapshot struct {
	Searches []ObjectData `json:"searches"`
}

func (o *Object) data() ObjectData {
	return ObjectData{ID: o.id, Name: o.name, Enabled: o.enabled, Connected: o.connected}
}

func (o *Object) restore(d ObjectData) {
	if d.ID != uuid.Nil {
		o.id = d.ID
	}
	o.name = d.Name
	o.enabled = d.Enabled
	o.connected = d.Connected
}

// Snapshot copies the hierarchy under the read lock.
func (s *ServerSet) Snapshot() ServerSetSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Checkpoint snapshots the aggregate and records the change generation of
// every entity in the same read-locked step.
func (s *ServerSet) Checkpoint() (ServerSetSnapshot, Checkpoint) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), checkpoint(s)
}

func (s *ServerSet) snapshotLocked() ServerSetSnapshot {
	snap := ServerSetSnapshot{Servers: make([]ServerData, 0, len(s.servers.items))}
	for _, srv := range s.servers.items {
		sd := ServerData{ObjectData: srv.data(), Port: srv.port, ErrorCode: srv.errorCode, Channels: []ChannelData{}}
		for _, ch := range srv.channels.items {
			cd := ChannelData{ObjectData: ch.data(), ErrorCode: ch.errorCode, Bots: []BotData{}}
			for _, b := range ch.bots.items {
				bd := BotData{
					ObjectData:       b.data(),
					State:            b.state.String(),
					QueuePosition:    b.queuePosition,
					QueueTime:        b.queueTime,
					InfoSlotCurrent:  b.infoSlotCurrent,
					InfoSlotTotal:    b.infoSlotTotal,
					InfoQueueCurrent: b.infoQueueCurrent,
					InfoQueueTotal:   b.infoQueueTotal,
					LastMessage:      b.lastMessage,
					LastContact:      b.lastContact,
					Packets:          []PacketData{},
				}
				for _, p := range b.packets.items {
					bd.Packets = append(bd.Packets, PacketData{
						ObjectData:    p.data(),
						Number:        p.number,
						Size:          p.size,
						LastMentioned: p.lastMentioned,
					})
				}
				cd.Bots = append(cd.Bots, bd)
			}
			sd.Channels = append(sd.Channels, cd)
		}
		snap.Servers = append(snap.Servers, sd)
	}
	return snap
}

// RestoreServerSet rebuilds a hierarchy from snap. Duplicates are kept so that
// PruneDuplicates can report them.
func RestoreServerSet(snap ServerSetSnapshot) (*ServerSet, error) {
	set := NewServerSet()
	for _, sd := range snap.Servers {
		srv := NewServer(sd.Name, sd.Port)
		srv.restore(sd.ObjectData)
		srv.errorCode = sd.ErrorCode
		for _, cd := range sd.Channels {
			ch := NewChannel(cd.Name)
			ch.restore(cd.ObjectData)
			ch.errorCode = cd.ErrorCode
			for _, bd := range cd.Bots {
				b, err := restoreBot(bd)
				if err != nil {
					return nil, fmt.Errorf("server %s channel %s: %w", sd.Name, cd.Name, err)
				}
				ch.bots.attach(b)
			}
			srv.channels.attach(ch)
		}
		set.servers.attach(srv)
	}
	return set, nil
}

// Check reports whether the snapshot can be restored.
func (snap ServerSetSnapshot) Check() error {
	_, err := RestoreServerSet(snap)
	return err
}

func restoreBot(bd BotData) (*Bot, error) {
	state, err := ParseBotState(bd.State)
	if err != nil {
		return nil, fmt.Errorf("bot %s: %w", bd.Name, err)
	}
	b := NewBot(bd.Name)
	b.restore(bd.ObjectData)
	b.state = state
	b.queuePosition = bd.QueuePosition
	b.queueTime = bd.QueueTime
	b.infoSlotCurrent = bd.InfoSlotCurrent
	b.infoSlotTotal = bd.InfoSlotTotal
	b.infoQueueCurrent = bd.InfoQueueCurrent
	b.infoQueueTotal = bd.InfoQueueTotal
	b.lastMessage = bd.LastMessage
	b.lastContact = bd.LastContact
	for _, pd := range bd.Packets {
		p := NewPacket(pd.Number, pd.Name, pd.Size)
		p.restore(pd.ObjectData)
		p.lastMentioned = pd.LastMentioned
		b.packets.attach(p)
	}
	return b, nil
}

func (s *FileSet) Snapshot() FileSetSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Checkpoint snapshots the aggregate and records the change generation of
// every entity in the same read-locked step.
func (s *FileSet) Checkpoint() (FileSetSnapshot, Checkpoint) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), checkpoint(s)
}

func (s *FileSet) snapshotLocked() FileSetSnapshot {
	snap := FileSetSnapshot{Files: make([]FileData, 0, len(s.files.items))}
	for _, f := range s.files.items {
		fd := FileData{ObjectData: f.data(), Size: f.size, TmpName: f.tmpName, Parts: []PartData{}}
		for _, p := range f.parts.items {
			fd.Parts = append(fd.Parts, PartData{
				ObjectData: p.data(),
				Start:      p.start,
				Stop:       p.stop,
				Current:    p.current,
				State:      p.state.String(),
				Speed:      p.speed,
			})
		}
		snap.Files = append(snap.Files, fd)
	}
	return snap
}

// Check reports whether the snapshot can be restored.
func (snap FileSetSnapshot) Check() error {
	_, err := RestoreFileSet(snap)
	return err
}

func RestoreFileSet(snap FileSetSnapshot) (*FileSet, error) {
	set := NewFileSet()
	for _, fd := range snap.Files {
		f := NewFile(fd.Name, fd.Size)
		f.restore(fd.ObjectData)
		for _, pd := range fd.Parts {
			state, err := ParsePartState(pd.State)
			if err != nil {
				return nil, fmt.Errorf("file %s: %w", fd.Name, err)
			}
			p := NewFilePart(pd.Start, pd.Stop)
			p.restore(pd.ObjectData)
			p.current = pd.Current
			p.state = state
			p.speed = pd.Speed
			f.parts.attach(p)
		}
		set.files.attach(f)
	}
	return set, nil
}

func (s *SearchSet) Snapshot() SearchSetSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Checkpoint snapshots the aggregate and records the change generation of
// every entity in the same read-locked step.
func (s *SearchSet) Checkpoint() (SearchSetSnapshot, Checkpoint) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), checkpoint(s)
}

func (s *SearchSet) snapshotLocked() SearchSetSnapshot {
	snap := SearchSetSnapshot{Searches: make([]ObjectData, 0, len(s.searches.items))}
	for _, v := range s.searches.items {
		snap.Searches = append(snap.Searches, v.data())
	}
	return snap
}

func RestoreSearchSet(snap SearchSetSnapshot) *SearchSet {
	set := NewSearchSet()
	for _, d := range snap.Searches {
		v := NewSearch(d.Name)
		v.restore(d)
		set.searches.attach(v)
	}
	return set
}

// Checkpoint remembers which version of each entity a snapshot captured.
type Checkpoint struct {
	root Node
	gens map[*Object]uint64
}

// checkpoint walks root under the caller's lock.
func checkpoint(root Node) Checkpoint {
	cp := Checkpoint{root: root, gens: make(map[*Object]uint64)}
	walk(root, func(n Node) {
		o := n.object()
		cp.gens[o] = o.gen
	})
	return cp
}

// Commit clears the modified flag of every entity that has not changed since
// the checkpoint was taken. Entities changed or added afterwards stay
// modified for the next save.
func (cp Checkpoint) Commit() {
	if cp.root == nil {
		return
	}
	mu := cp.root.object().mu
	mu.Lock()
	defer mu.Unlock()
	walk(cp.root, func(n Node) {
		o := n.object()
		if g, ok := cp.gens[o]; ok && g == o.gen {
			o.modified = false
		}
	})
}
