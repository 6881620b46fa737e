package events

import (
	"time"

	"github.com/google/uuid"
)

// Typed is implemented by every collaborator event. The type name doubles
// as the last token of the bus subject the transport bridge publishes on.
type Typed interface {
	EventType() string
}

// Ref identifies a graph entity without holding on to it.
type Ref struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Kind string    `json:"kind"`
}

// FileAdded is emitted when a download is registered in the file set.
type FileAdded struct {
	File Ref       `json:"file"`
	Size int64     `json:"size"`
	At   time.Time `json:"at"`
}

// FileRemoved is emitted when a download leaves the file set.
type FileRemoved struct {
	File Ref       `json:"file"`
	At   time.Time `json:"at"`
}

// FilePartStateChanged is emitted when a part moves between open, closed,
// ready and broken.
type FilePartStateChanged struct {
	File  Ref       `json:"file"`
	Part  Ref       `json:"part"`
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

// ObjectAdded covers servers, channels, bots and packets.
type ObjectAdded struct {
	Parent Ref       `json:"parent"`
	Object Ref       `json:"object"`
	At     time.Time `json:"at"`
}

// ObjectRemoved covers servers, channels, bots and packets.
type ObjectRemoved struct {
	Parent Ref       `json:"parent"`
	Object Ref       `json:"object"`
	At     time.Time `json:"at"`
}

type SearchAdded struct {
	Search Ref       `json:"search"`
	At     time.Time `json:"at"`
}

type SearchRemoved struct {
	Search Ref       `json:"search"`
	At     time.Time `json:"at"`
}

func (FileAdded) EventType() string            { return "file_added" }
func (FileRemoved) EventType() string          { return "file_removed" }
func (FilePartStateChanged) EventType() string { return "file_part_state_changed" }
func (ObjectAdded) EventType() string          { return "object_added" }
func (ObjectRemoved) EventType() string        { return "object_removed" }
func (SearchAdded) EventType() string          { return "search_added" }
func (SearchRemoved) EventType() string        { return "search_removed" }
