package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/xgrab/internal/config"
	"git.home.luguber.info/inful/xgrab/internal/daemon"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	NoWatch bool `name:"no-watch" help:"Do not reload timings when the configuration file changes"`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	applyLogging(g, root, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := daemon.Options{LogLevel: g.LogLevel}
	if !d.NoWatch {
		opts.ConfigPath = root.Config
	}
	dm, err := daemon.New(cfg, opts)
	if err != nil {
		return err
	}

	slog.Info("Daemon started, waiting for shutdown signal")
	return dm.Run(ctx)
}
