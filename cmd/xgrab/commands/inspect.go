package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/xgrab/internal/config"
	"git.home.luguber.info/inful/xgrab/internal/daemon"
	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/snapshots"
	"git.home.luguber.info/inful/xgrab/internal/state"
)

// InspectCmd prints a read-only summary of the data directory.
type InspectCmd struct {
	DataDir string `short:"d" name:"data-dir" help:"Data directory to inspect instead of the configured one" type:"path"`
}

func (i *InspectCmd) Run(g *Global, root *CLI) error {
	dir := i.DataDir
	if dir == "" {
		cfg, err := config.Load(root.Config)
		if err != nil {
			return err
		}
		dir = cfg.Storage.DataDir
	}
	return inspect(context.Background(), dir, g.Out)
}

func inspect(ctx context.Context, dir string, out io.Writer) error {
	if _, err := os.Stat(dir); err != nil {
		return errors.NotFoundError("data directory not found").WithContext("path", dir).WithCause(err).Build()
	}
	backend, err := state.NewFileBackend(dir)
	if err != nil {
		return err
	}
	// The store is never closed: closing saves, and inspecting must not write.
	store := state.Open(backend, state.Options{})
	counts := store.Servers().Counts()

	var active, ready int
	for _, f := range store.Files().Files().All() {
		if f.Complete() {
			ready++
		} else {
			active++
		}
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "servers\t%d\t(%d connected)\n", counts.Servers, counts.ServersConnected)
	_, _ = fmt.Fprintf(w, "channels\t%d\t(%d connected)\n", counts.Channels, counts.ChannelsConnected)
	_, _ = fmt.Fprintf(w, "bots\t%d\t(%d connected)\n", counts.Bots, counts.BotsConnected)
	_, _ = fmt.Fprintf(w, "packets\t%d\t(%d bytes)\n", counts.Packets, counts.PacketsSize)
	_, _ = fmt.Fprintf(w, "files\t%d\t(%d complete)\n", active+ready, ready)
	_, _ = fmt.Fprintf(w, "searches\t%d\t\n", store.Searches().Searches().Len())

	statsPath := filepath.Join(dir, daemon.StatsFile)
	if _, err := os.Stat(statsPath); err == nil {
		stats, err := snapshots.NewSQLiteStore(statsPath)
		if err != nil {
			return err
		}
		defer func() { _ = stats.Close() }()
		snap, err := stats.Latest(ctx)
		switch {
		case errors.IsNotFound(err):
			_, _ = fmt.Fprintln(w, "statistics\tnone recorded\t")
		case err != nil:
			return err
		default:
			_, _ = fmt.Fprintf(w, "statistics\t%s\t(%d bytes/s)\n", snap.Timestamp.UTC().Format(time.RFC3339), snap.Speed)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to write summary").Build()
	}
	return nil
}
