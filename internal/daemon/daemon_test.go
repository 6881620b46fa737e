package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/xgrab/internal/config"
	"git.home.luguber.info/inful/xgrab/internal/model"
	"git.home.luguber.info/inful/xgrab/internal/state"
	"git.home.luguber.info/inful/xgrab/internal/transport"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Storage.TempDir = filepath.Join(dir, "tmp")
	cfg.Timing.CommandWaitMS = 30
	cfg.Timing.BotWaitMS = 60
	cfg.Timing.TickIntervalMS = 10
	cfg.Timing.BackupStatsIntervalMS = 20
	return cfg
}

func startDaemon(t *testing.T, d *Daemon) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	require.Eventually(t, func() bool { return d.GetStatus() == StatusRunning }, waitFor, tick)
	return done
}

func stopDaemon(t *testing.T, d *Daemon, done <-chan error) {
	t.Helper()
	d.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.Equal(t, StatusStopped, d.GetStatus())
}

func TestDaemonEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	sender := &recordingSender{}
	d, err := New(cfg, Options{Sender: sender})
	require.NoError(t, err)
	done := startDaemon(t, d)

	d.Offer(t.Context(), transport.Offer{Server: "irc.example.net", Channel: "#files", Nick: "Bot1", Packet: 5, Name: "foo.mkv", Size: 100, Request: true})
	require.Equal(t, []transport.Action{transport.ActionRequestPacket}, sender.actions())

	require.NoError(t, d.Submit(t.Context(), transport.Notice{Server: "irc.example.net", Nick: "Bot1", Text: queuedLine}))
	bot := d.Servers().Server("irc.example.net").Bot("Bot1")
	require.Eventually(t, func() bool { return bot.State() == model.Waiting }, waitFor, tick)

	require.NoError(t, d.Submit(t.Context(), transport.Notice{Server: "irc.example.net", Nick: "Bot1", Text: removedLine}))
	require.Eventually(t, func() bool { return len(sender.commands()) == 2 }, waitFor, tick)
	assert.Equal(t, transport.Command{
		Action:  transport.ActionRequestPacket,
		Server:  "irc.example.net",
		Nick:    "Bot1",
		Channel: "#files",
		Packet:  5,
	}, sender.commands()[1])

	d.Progress(transport.Progress{File: "foo.mkv", Size: 100, Start: 0, Stop: 100, Current: 10, State: "open"})
	d.Progress(transport.Progress{File: "foo.mkv", State: "bogus"})
	require.Len(t, d.Files().Files().All(), 1)

	stopDaemon(t, d, done)

	backend, err := state.NewFileBackend(cfg.Storage.DataDir)
	require.NoError(t, err)
	for _, kind := range state.Kinds {
		assert.FileExists(t, backend.Path(kind))
	}
	assert.FileExists(t, filepath.Join(cfg.Storage.DataDir, StatsFile))

	reopened, err := New(cfg, Options{Sender: sender})
	require.NoError(t, err)
	defer reopened.closeStores()
	p := reopened.Servers().Server("irc.example.net").Bot("Bot1").Packet(5)
	require.NotNil(t, p)
	assert.True(t, p.Enabled())
	assert.Empty(t, reopened.Files().Files().All(), "file without partial data is dropped on startup")
}

func TestDaemonRunRejectsSecondStart(t *testing.T) {
	d, err := New(testConfig(t), Options{Sender: &recordingSender{}})
	require.NoError(t, err)
	done := startDaemon(t, d)

	err = d.Run(t.Context())
	require.Error(t, err)

	stopDaemon(t, d, done)
}

func TestDaemonStopsWithContext(t *testing.T) {
	d, err := New(testConfig(t), Options{Sender: &recordingSender{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	require.Eventually(t, func() bool { return d.GetStatus() == StatusRunning }, waitFor, tick)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestReloadConfig(t *testing.T) {
	cfg := testConfig(t)
	var level slog.LevelVar
	d, err := New(cfg, Options{Sender: &recordingSender{}, LogLevel: &level})
	require.NoError(t, err)
	defer d.closeStores()

	next := *cfg
	next.Timing.CommandWaitMS = 1234
	next.Logging.Level = config.LogLevelDebug
	d.ReloadConfig(&next)

	assert.Equal(t, 1234*time.Millisecond, d.Classifier().Timing().CommandWait)
	assert.Equal(t, slog.LevelDebug, level.Level())
	assert.Same(t, &next, d.Config())
}
