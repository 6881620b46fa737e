package snapshots

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/xgrab/internal/logfields"
	"git.home.luguber.info/inful/xgrab/internal/metrics"
	"git.home.luguber.info/inful/xgrab/internal/model"
)

// Appender is the write side of a snapshot store.
type Appender interface {
	Append(ctx context.Context, snap Snapshot) (int64, error)
}

// Worker collects and records a snapshot each time Record is called. It is
// plugged into the state store as its statistics sink.
type Worker struct {
	Servers  *model.ServerSet
	Files    *model.FileSet
	Store    Appender
	Recorder metrics.Recorder
	Now      func() time.Time
}

// Record takes one snapshot. Failures are logged, never returned: statistics
// must not disturb the save loop.
func (w *Worker) Record(ctx context.Context) {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	snap := Collect(w.Servers, w.Files, now())
	w.publish(snap)

	if w.Store == nil {
		return
	}
	if _, err := w.Store.Append(ctx, snap); err != nil {
		slog.Error("Failed to record statistics snapshot", logfields.Error(err))
	}
}

func (w *Worker) publish(s Snapshot) {
	rec := w.Recorder
	if rec == nil {
		return
	}
	set := func(kind string, total, connected int) {
		rec.SetObjectCount(kind, true, connected)
		rec.SetObjectCount(kind, false, total-connected)
	}
	set("server", s.Servers, s.ServersConnected)
	set("channel", s.Channels, s.ChannelsConnected)
	set("bot", s.Bots, s.BotsConnected)
	set("packet", s.Packets, s.PacketsConnected)
	rec.SetTransferSpeed(s.Speed)
}
