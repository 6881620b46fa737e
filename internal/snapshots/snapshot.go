package snapshots

import (
	"time"

	"git.home.luguber.info/inful/xgrab/internal/model"
)

// Snapshot is one row of graph statistics.
type Snapshot struct {
	ID        int64
	Timestamp time.Time
	model.Counts
	// Speed is the summed transfer speed of all file parts in bytes per second.
	Speed int64
}

func (s Snapshot) ServersDisconnected() int  { return s.Servers - s.ServersConnected }
func (s Snapshot) ChannelsDisconnected() int { return s.Channels - s.ChannelsConnected }
func (s Snapshot) BotsDisconnected() int     { return s.Bots - s.BotsConnected }
func (s Snapshot) PacketsDisconnected() int  { return s.Packets - s.PacketsConnected }

// Collect reads the current counters from both aggregates.
func Collect(servers *model.ServerSet, files *model.FileSet, now time.Time) Snapshot {
	snap := Snapshot{Timestamp: now, Counts: servers.Counts()}
	for _, f := range files.Files().All() {
		snap.Speed += f.Speed()
	}
	return snap
}
