package daemon

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/xgrab/internal/config"
	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/logfields"
)

// ConfigWatcher reloads the YAML config when it changes on disk and hands
// each valid result to apply. Bursts of events are collapsed into one
// reload after debounceTime, and a file whose bytes did not change is not
// applied again.
type ConfigWatcher struct {
	path         string
	apply        func(*config.Config)
	fs           *fsnotify.Watcher
	debounceTime time.Duration

	mu     sync.Mutex
	digest [sha256.Size]byte
	loaded bool

	stopOnce sync.Once
	stop     chan struct{}
}

func NewConfigWatcher(configPath string, apply func(*config.Config)) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to resolve config path").
			WithContext("path", configPath).Build()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to create file watcher").Build()
	}
	return &ConfigWatcher{
		path:         absPath,
		apply:        apply,
		fs:           fs,
		debounceTime: 2 * time.Second,
		stop:         make(chan struct{}),
	}, nil
}

// Start watches the directory holding the config file, since editors and
// config management tools usually replace the file instead of writing it.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(cw.path)
	if err := cw.fs.Add(dir); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to watch config directory").
			WithContext("path", dir).Build()
	}
	slog.Info("Starting configuration watcher", logfields.Path(cw.path))
	go cw.loop(ctx)
	return nil
}

func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.stop)
		err = cw.fs.Close()
	})
	return err
}

func (cw *ConfigWatcher) loop(ctx context.Context) {
	name := filepath.Base(cw.path)
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stop:
			return
		case ev, ok := <-cw.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Remove) {
				slog.Warn("Config file removed; keeping running configuration", logfields.Path(ev.Name))
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				slog.Debug("Config file change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
				debounce.Reset(cw.debounceTime)
			}
		case err, ok := <-cw.fs.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		case <-debounce.C:
			if err := cw.Reload(); err != nil {
				slog.Error("Failed to reload configuration", logfields.Error(err))
			}
		}
	}
}

// Reload reads the file and applies it if its content changed since the
// last successful reload. An invalid file leaves the running configuration
// untouched.
func (cw *ConfigWatcher) Reload() error {
	raw, err := os.ReadFile(cw.path)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", cw.path).Build()
	}
	sum := sha256.Sum256(raw)

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.loaded && sum == cw.digest {
		slog.Debug("Config file unchanged", logfields.Path(cw.path))
		return nil
	}
	cfg, err := config.Load(cw.path)
	if err != nil {
		return err
	}
	cw.apply(cfg)
	cw.digest, cw.loaded = sum, true
	slog.Info("Configuration reloaded", logfields.Path(cw.path))
	return nil
}
