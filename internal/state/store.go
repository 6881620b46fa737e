package state

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/logfields"
	"git.home.luguber.info/inful/xgrab/internal/metrics"
	"git.home.luguber.info/inful/xgrab/internal/model"
)

// Options configures the save loop.
type Options struct {
	TickInterval        time.Duration
	BackupDataInterval  time.Duration
	BackupStatsInterval time.Duration
	// StatsSink is invoked every BackupStatsInterval from the save loop.
	StatsSink func(ctx context.Context)
	Recorder  metrics.Recorder
}

func (o *Options) applyDefaults() {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.BackupDataInterval <= 0 {
		o.BackupDataInterval = 900 * time.Second
	}
	if o.BackupStatsInterval <= 0 {
		o.BackupStatsInterval = 60 * time.Second
	}
	if o.Recorder == nil {
		o.Recorder = metrics.NoopRecorder{}
	}
}

// Store owns the three aggregates and keeps them persisted.
type Store struct {
	backend Backend
	opts    Options

	servers  *model.ServerSet
	files    *model.FileSet
	searches *model.SearchSet

	serversMu  sync.Mutex
	filesMu    sync.Mutex
	searchesMu sync.Mutex

	// filesDirty is the coalescing signal for in-progress part updates.
	filesDirty chan struct{}

	mu        sync.Mutex
	lastSaved map[Kind]time.Time
	cancels   []func()
	closed    bool
}

// Open loads every aggregate from backend. A failed load never aborts: the
// aggregate starts empty and the failure is logged.
func Open(backend Backend, opts Options) *Store {
	opts.applyDefaults()
	s := &Store{
		backend:    backend,
		opts:       opts,
		filesDirty: make(chan struct{}, 1),
		lastSaved:  make(map[Kind]time.Time),
	}

	s.servers = loadServers(backend)
	s.files = loadFiles(backend)
	s.searches = loadSearches(backend)

	if n := s.servers.PruneDuplicates(); n > 0 {
		opts.Recorder.IncAnomaly(string(errors.CategoryConsistency))
		slog.Warn("Pruned duplicate objects after load", logfields.Count(n))
	}
	s.servers.ResetTransient()
	s.files.ResetTransient()

	s.cancels = []func(){
		s.servers.Observe(s.onServerEvent),
		s.files.Observe(s.onFileEvent),
		s.searches.Observe(s.onSearchEvent),
	}
	return s
}

func logLoadFailure(kind Kind, err error) {
	if errors.IsNotFound(err) {
		slog.Info("No snapshot found, starting empty", logfields.Kind(string(kind)))
		return
	}
	slog.Error("Failed to restore snapshot, starting empty", logfields.Kind(string(kind)), logfields.Error(err))
}

func loadServers(b Backend) *model.ServerSet {
	var snap model.ServerSetSnapshot
	if err := b.Load(KindServers, &snap); err != nil {
		logLoadFailure(KindServers, err)
		return model.NewServerSet()
	}
	set, err := model.RestoreServerSet(snap)
	if err != nil {
		logLoadFailure(KindServers, err)
		return model.NewServerSet()
	}
	return set
}

func loadFiles(b Backend) *model.FileSet {
	var snap model.FileSetSnapshot
	if err := b.Load(KindFiles, &snap); err != nil {
		logLoadFailure(KindFiles, err)
		return model.NewFileSet()
	}
	set, err := model.RestoreFileSet(snap)
	if err != nil {
		logLoadFailure(KindFiles, err)
		return model.NewFileSet()
	}
	return set
}

func loadSearches(b Backend) *model.SearchSet {
	var snap model.SearchSetSnapshot
	if err := b.Load(KindSearches, &snap); err != nil {
		logLoadFailure(KindSearches, err)
		return model.NewSearchSet()
	}
	return model.RestoreSearchSet(snap)
}

func (s *Store) Servers() *model.ServerSet  { return s.servers }
func (s *Store) Files() *model.FileSet      { return s.files }
func (s *Store) Searches() *model.SearchSet { return s.searches }

// LastSaved returns the time of the last successful save of kind.
func (s *Store) LastSaved(kind Kind) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastSaved[kind]
	return t, ok
}

func (s *Store) onServerEvent(ev model.Event) {
	if ev.Kind == model.Changed {
		return
	}
	switch ev.Object.(type) {
	case *model.Server, *model.Channel:
		s.saveNow(KindServers)
	}
}

func (s *Store) onFileEvent(ev model.Event) {
	if ev.Kind != model.Changed {
		s.saveNow(KindFiles)
		return
	}
	switch obj := ev.Object.(type) {
	case *model.File:
		s.saveNow(KindFiles)
	case *model.FilePart:
		if ev.Field == "state" && obj.State().Terminal() {
			s.saveNow(KindFiles)
			return
		}
		s.MarkFilesDirty()
	}
}

func (s *Store) onSearchEvent(ev model.Event) {
	if ev.Kind != model.Changed {
		s.saveNow(KindSearches)
	}
}

// MarkFilesDirty arms the coalescing signal; repeated calls before the next
// save collapse into one.
func (s *Store) MarkFilesDirty() {
	select {
	case s.filesDirty <- struct{}{}:
	default:
	}
}

// FilesDirty reports whether a coalesced files save is pending.
func (s *Store) FilesDirty() bool { return len(s.filesDirty) > 0 }

func (s *Store) saveNow(kind Kind) {
	if err := s.Save(kind); err != nil {
		slog.Error("Immediate save failed, retrying on next tick",
			logfields.Kind(string(kind)), logfields.Error(err))
	}
}

func (s *Store) kindLock(kind Kind) *sync.Mutex {
	switch kind {
	case KindFiles:
		return &s.filesMu
	case KindSearches:
		return &s.searchesMu
	default:
		return &s.serversMu
	}
}

// Save snapshots kind under its aggregate read lock and writes it outside of
// that lock. Only entities unchanged since the snapshot are committed. Saves of the same kind are serialized; a failed files save
// re-arms the dirty signal so the next tick retries.
func (s *Store) Save(kind Kind) error {
	mu := s.kindLock(kind)
	mu.Lock()
	defer mu.Unlock()

	if kind == KindFiles {
		select {
		case <-s.filesDirty:
		default:
		}
	}

	var (
		snap any
		cp   model.Checkpoint
	)
	switch kind {
	case KindServers:
		snap, cp = s.servers.Checkpoint()
	case KindFiles:
		snap, cp = s.files.Checkpoint()
	case KindSearches:
		snap, cp = s.searches.Checkpoint()
	default:
		return errors.InternalError("unknown aggregate kind").WithContext("kind", string(kind)).Build()
	}

	start := time.Now()
	err := s.backend.Save(kind, snap)
	s.opts.Recorder.ObserveSaveDuration(string(kind), time.Since(start))
	s.opts.Recorder.IncSaveResult(string(kind), metrics.ResultOf(err))
	if err != nil {
		if kind == KindFiles {
			s.MarkFilesDirty()
		}
		return errors.PersistenceError("failed to save aggregate").
			WithCause(err).
			WithContext("kind", string(kind)).
			Build()
	}

	cp.Commit()

	s.mu.Lock()
	s.lastSaved[kind] = time.Now()
	s.mu.Unlock()
	return nil
}

// Run drives the periodic saves until ctx is cancelled, then performs a
// final save of every aggregate. Stop is observed between ticks only, so a
// save in progress always completes.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	lastData := time.Now()
	lastStats := time.Now()

	for {
		select {
		case <-ctx.Done():
			return s.Close()
		case now := <-ticker.C:
			if now.Sub(lastData) >= s.opts.BackupDataInterval {
				lastData = now
				if err := s.Save(KindServers); err != nil {
					slog.Error("Periodic servers save failed", logfields.Error(err))
				}
			}
			if s.FilesDirty() {
				if err := s.Save(KindFiles); err != nil {
					slog.Error("Coalesced files save failed", logfields.Error(err))
				}
			}
			if now.Sub(lastStats) >= s.opts.BackupStatsInterval {
				lastStats = now
				if s.opts.StatsSink != nil {
					s.opts.StatsSink(ctx)
				}
			}
		}
	}
}

// Close detaches the observers and saves every aggregate once. It is safe to
// call more than once; later calls are no-ops.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	var errs []error
	for _, kind := range Kinds {
		if err := s.Save(kind); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
