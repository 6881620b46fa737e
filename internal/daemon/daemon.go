package daemon

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/xgrab/internal/config"
	"git.home.luguber.info/inful/xgrab/internal/daemon/events"
	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/logfields"
	"git.home.luguber.info/inful/xgrab/internal/metrics"
	"git.home.luguber.info/inful/xgrab/internal/model"
	"git.home.luguber.info/inful/xgrab/internal/notice"
	"git.home.luguber.info/inful/xgrab/internal/retry"
	"git.home.luguber.info/inful/xgrab/internal/snapshots"
	"git.home.luguber.info/inful/xgrab/internal/state"
	"git.home.luguber.info/inful/xgrab/internal/transport"
)

// Status represents the lifecycle state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// StatsFile is the SQLite database for statistics snapshots inside data_dir.
const StatsFile = "xgrab.stats.db"

const shutdownTimeout = 10 * time.Second

// Options carries the collaborators that are not derived from configuration.
type Options struct {
	// ConfigPath enables hot reload of timings when set.
	ConfigPath string
	// LogLevel is adjusted on reload when set.
	LogLevel *slog.LevelVar
	// Sender overrides the transport chosen from configuration.
	Sender transport.Sender
	// Recorder overrides the metrics recorder chosen from configuration.
	Recorder metrics.Recorder
}

// Daemon wires the persisted graph, the classifier and the transport.
type Daemon struct {
	cfg    atomic.Pointer[config.Config]
	opts   Options
	status atomic.Value

	ctx    context.Context
	cancel context.CancelFunc

	store      *state.Store
	stats      *snapshots.SQLiteStore
	classifier *notice.Classifier
	scheduler  *Scheduler
	dispatcher *Dispatcher
	router     *Router
	bus        *events.Bus
	bridge     *EventBridge
	sender     transport.Sender
	nats       *transport.NATS
	recorder   metrics.Recorder
	registry   *prom.Registry
	watcher    *ConfigWatcher
	httpServer *http.Server

	workers  WorkerGroup
	stopOnce sync.Once
}

// New opens persisted state, reconciles partial downloads and builds every
// component. Nothing runs until Run.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	d := &Daemon{opts: opts}
	d.cfg.Store(cfg)
	d.status.Store(StatusStopped)
	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.recorder = opts.Recorder
	if d.recorder == nil {
		if cfg.Metrics.Enabled {
			d.registry = prom.NewRegistry()
			d.recorder = metrics.NewPrometheusRecorder(d.registry)
		} else {
			d.recorder = metrics.NoopRecorder{}
		}
	}

	backend, err := state.NewFileBackend(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	d.stats, err = snapshots.NewSQLiteStore(filepath.Join(cfg.Storage.DataDir, StatsFile))
	if err != nil {
		slog.Error("Statistics disabled", logfields.Error(err))
		d.stats = nil
	}

	worker := &snapshots.Worker{Recorder: d.recorder}
	if d.stats != nil {
		worker.Store = d.stats
	}
	d.store = state.Open(backend, state.Options{
		TickInterval:        cfg.Timing.TickInterval(),
		BackupDataInterval:  cfg.Timing.BackupDataInterval(),
		BackupStatsInterval: cfg.Timing.BackupStatsInterval(),
		StatsSink:           worker.Record,
		Recorder:            d.recorder,
	})
	worker.Servers = d.store.Servers()
	worker.Files = d.store.Files()

	rep, err := Recover(d.store.Files(), cfg.Storage.TempDir)
	if err != nil {
		d.closeStores()
		return nil, err
	}
	slog.Info("Recovered partial downloads",
		slog.Int("missing_removed", rep.MissingRemoved),
		slog.Int("complete_removed", rep.CompleteRemoved),
		slog.Int("parts_adjusted", rep.PartsAdjusted),
		slog.Int("orphans_deleted", rep.OrphansDeleted))

	d.classifier = notice.New(timingOf(cfg))
	d.scheduler, err = NewScheduler(d.recorder)
	if err != nil {
		d.closeStores()
		return nil, err
	}

	d.sender = opts.Sender
	if d.sender == nil {
		if cfg.NATS.URL != "" {
			d.nats, err = transport.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, d.recorder)
			if err != nil {
				d.closeStores()
				return nil, err
			}
			d.sender = d.nats
			if policy := retry.FromConfig(cfg.NATS.Retry); policy.MaxRetries > 0 {
				d.sender = transport.NewRetrySender(d.nats, policy)
			}
		} else {
			slog.Warn("No NATS URL configured, transport commands are only logged")
			d.sender = transport.LogSender{}
		}
	}

	d.bus = events.NewBus()
	d.bridge = NewEventBridge(d.bus, d.store.Servers(), d.store.Files(), d.store.Searches())
	d.dispatcher = NewDispatcher(d.ctx, d.scheduler, d.sender, d.store.Servers(), d.classifier.Timing, d.recorder)
	d.router = NewRouter(d.ctx, d.store.Servers(), d.classifier, d.dispatcher, d.recorder)
	return d, nil
}

func timingOf(cfg *config.Config) notice.Timing {
	return notice.Timing{CommandWait: cfg.Timing.CommandWait(), BotWait: cfg.Timing.BotWait()}
}

func (d *Daemon) Config() *config.Config         { return d.cfg.Load() }
func (d *Daemon) Servers() *model.ServerSet      { return d.store.Servers() }
func (d *Daemon) Files() *model.FileSet          { return d.store.Files() }
func (d *Daemon) Searches() *model.SearchSet     { return d.store.Searches() }
func (d *Daemon) Bus() *events.Bus               { return d.bus }
func (d *Daemon) Scheduler() *Scheduler          { return d.scheduler }
func (d *Daemon) Classifier() *notice.Classifier { return d.classifier }

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusStopped
	}
	return status
}

// Submit queues a bot notice for classification.
func (d *Daemon) Submit(ctx context.Context, n transport.Notice) error {
	return d.router.Submit(ctx, n)
}

// Offer records an advertised packet. Requested packets are asked for right
// away when their bot is idle.
func (d *Daemon) Offer(ctx context.Context, o transport.Offer) {
	p := ApplyOffer(d.store.Servers(), o, time.Now())
	if !o.Request {
		return
	}
	bot := p.Bot()
	if bot == nil || bot.State() != model.Idle {
		return
	}
	if err := d.dispatcher.RequestNow(ctx, bot); err != nil {
		slog.Error("Packet request failed", logfields.Bot(bot.Name()), logfields.Packet(p.Number()), logfields.Error(err))
	}
}

// Progress applies a transfer engine report.
func (d *Daemon) Progress(p transport.Progress) {
	if _, err := ApplyProgress(d.store.Files(), p); err != nil {
		slog.Warn("Ignoring progress report", logfields.File(p.File), logfields.Error(err))
	}
}

// Run starts every component and blocks until ctx is done, then shuts down
// and performs the final save.
func (d *Daemon) Run(ctx context.Context) error {
	if d.GetStatus() != StatusStopped {
		return errors.DaemonError("daemon is not in stopped state").
			WithContext("status", string(d.GetStatus())).Build()
	}
	cfg := d.Config()
	slog.Info("Starting xgrab daemon",
		logfields.Path(cfg.Storage.DataDir),
		slog.String("temp_dir", cfg.Storage.TempDir),
		slog.Bool("nats", d.nats != nil))

	d.scheduler.Start()
	watchdog := &Watchdog{Servers: d.store.Servers(), MaxSilence: cfg.Timing.BotOfflineCheck()}
	if err := d.scheduler.Every("watchdog", cfg.Timing.BotOfflineCheck(), func() error {
		watchdog.Run()
		return nil
	}); err != nil {
		return d.abort(err)
	}

	if d.nats != nil {
		if err := d.subscribe(); err != nil {
			return d.abort(err)
		}
		d.workers.Go(func() { d.nats.ForwardEvents(d.ctx, d.bus) })
	}

	if d.opts.ConfigPath != "" {
		w, err := NewConfigWatcher(d.opts.ConfigPath, d.ReloadConfig)
		if err == nil {
			err = w.Start(d.ctx)
		}
		if err != nil {
			slog.Error("Config watcher disabled", logfields.Error(err))
		} else {
			d.watcher = w
		}
	}

	if d.registry != nil && cfg.Metrics.Listen != "" {
		d.startMetricsServer(cfg.Metrics.Listen)
	}

	storeDone := make(chan error, 1)
	go func() { storeDone <- d.store.Run(d.ctx) }()

	d.status.Store(StatusRunning)
	slog.Info("xgrab daemon started")

	select {
	case <-ctx.Done():
	case <-d.ctx.Done():
	}

	d.status.Store(StatusStopping)
	d.shutdown()
	err := <-storeDone
	d.closeStores()
	d.status.Store(StatusStopped)
	slog.Info("xgrab daemon stopped")
	return err
}

// abort undoes a partial start. The save loop never ran, so the store is
// closed here to persist what recovery changed.
func (d *Daemon) abort(err error) error {
	d.shutdown()
	if cerr := d.store.Close(); cerr != nil {
		slog.Error("Final save failed", logfields.Error(cerr))
	}
	d.closeStores()
	return err
}

func (d *Daemon) subscribe() error {
	if err := d.nats.SubscribeNotices(func(n transport.Notice) {
		if err := d.router.Submit(d.ctx, n); err != nil {
			slog.Warn("Notice not queued", logfields.Bot(n.Nick), logfields.Error(err))
		}
	}); err != nil {
		return err
	}
	if err := d.nats.SubscribeOffers(func(o transport.Offer) { d.Offer(d.ctx, o) }); err != nil {
		return err
	}
	return d.nats.SubscribeProgress(d.Progress)
}

func (d *Daemon) startMetricsServer(addr string) {
	d.httpServer = metrics.NewServer(addr, d.registry)
	d.workers.Go(func() {
		slog.Info("Serving metrics", slog.String("listen", addr))
		if err := d.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	})
}

// shutdown stops producers before consumers: inbound transport, lanes,
// scheduler, then the bus. Cancelling d.ctx also ends the save loop, which
// writes every aggregate one last time.
func (d *Daemon) shutdown() {
	d.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if d.watcher != nil {
			if err := d.watcher.Stop(); err != nil {
				slog.Error("Failed to stop config watcher", logfields.Error(err))
			}
		}
		if d.nats != nil {
			if err := d.nats.Close(); err != nil {
				slog.Error("Failed to drain NATS connection", logfields.Error(err))
			}
		}
		if err := d.router.Stop(ctx); err != nil {
			slog.Error("Notice lanes did not stop in time", logfields.Error(err))
		}
		if err := d.scheduler.Stop(); err != nil {
			slog.Error("Failed to stop scheduler", logfields.Error(err))
		}
		if d.httpServer != nil {
			if err := d.httpServer.Shutdown(ctx); err != nil {
				slog.Error("Failed to stop metrics server", logfields.Error(err))
			}
		}
		d.bridge.Close()
		d.cancel()
		d.bus.Close()
		if err := d.workers.StopAndWait(ctx); err != nil {
			slog.Error("Workers did not stop in time", logfields.Error(err))
		}
	})
}

// Stop requests shutdown of a running daemon; Run returns once the final
// save is done.
func (d *Daemon) Stop() { d.cancel() }

func (d *Daemon) closeStores() {
	if d.stats != nil {
		if err := d.stats.Close(); err != nil {
			slog.Error("Failed to close statistics store", logfields.Error(err))
		}
		d.stats = nil
	}
}

// ReloadConfig applies what can change at runtime: classifier timings and
// the log level. Storage, transport and save intervals need a restart.
func (d *Daemon) ReloadConfig(cfg *config.Config) {
	old := d.cfg.Swap(cfg)
	if !old.Timing.Equal(cfg.Timing) {
		d.classifier.SetTiming(timingOf(cfg))
		slog.Info("Applied new timings",
			logfields.Delay(cfg.Timing.CommandWait()),
			slog.Duration("bot_wait", cfg.Timing.BotWait()))
	}
	if d.opts.LogLevel != nil {
		d.opts.LogLevel.Set(cfg.Logging.Level.SlogLevel())
	}
	if old.Storage != cfg.Storage || old.NATS != cfg.NATS || old.Metrics != cfg.Metrics {
		slog.Warn("Storage, transport or metrics changes take effect after restart")
	}
}
