package daemon

import (
	"log/slog"
	"time"

	"git.home.luguber.info/inful/xgrab/internal/logfields"
	"git.home.luguber.info/inful/xgrab/internal/model"
)

// Watchdog removes bots that went offline and have nothing left to offer.
type Watchdog struct {
	Servers *model.ServerSet
	// MaxSilence is how long a bot may stay unheard before it is removed.
	MaxSilence time.Duration
	Now        func() time.Time
}

// Run performs one sweep and returns the number of bots removed.
func (w *Watchdog) Run() int {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	n := w.Servers.RemoveStaleBots(now().Add(-w.MaxSilence))
	if n > 0 {
		slog.Info("Removed stale bots", logfields.Count(n))
	}
	return n
}
