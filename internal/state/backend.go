package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/logfields"
)

// Kind names one independently saved aggregate.
type Kind string

const (
	KindServers  Kind = "servers"
	KindFiles    Kind = "files"
	KindSearches Kind = "searches"
)

// Kinds lists every aggregate in save order.
var Kinds = []Kind{KindServers, KindFiles, KindSearches}

// Backend reads and writes aggregate snapshots.
type Backend interface {
	Save(kind Kind, v any) error
	Load(kind Kind, v any) error
}

// FileBackend stores each aggregate as <dir>/xgrab.<kind>.json.
type FileBackend struct {
	dir string
}

// NewFileBackend creates dir if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.PersistenceError("failed to create data directory").
			WithCause(err).
			WithContext("data_dir", dir).
			Build()
	}
	return &FileBackend{dir: dir}, nil
}

// Path returns the primary snapshot path for kind.
func (b *FileBackend) Path(kind Kind) string {
	return filepath.Join(b.dir, fmt.Sprintf("xgrab.%s.json", kind))
}

// Save writes v to <path>.new, syncs it, rotates the current file to
// <path>.bak and moves the new file into place. A crash at any point leaves
// either the previous or the new snapshot readable.
func (b *FileBackend) Save(kind Kind, v any) error {
	path := b.Path(kind)
	tmp, bak := path+".new", path+".bak"

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	if err := writeSynced(tmp, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if err := os.Remove(bak); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove backup %s: %w", bak, err)
	}
	if err := os.Rename(path, bak); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	syncDir(b.dir)
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// syncDir makes the renames durable where the platform supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Load decodes the primary snapshot into v, falling back to the backup when
// the primary is missing, unreadable or fails its Check. Stale .new files are ignored. When
// neither file can be decoded a not_found ClassifiedError is returned.
func (b *FileBackend) Load(kind Kind, v any) error {
	path := b.Path(kind)
	bak := path + ".bak"

	err := decodeFile(path, v)
	if err == nil {
		return nil
	}
	primaryMissing := os.IsNotExist(err)
	if !primaryMissing {
		slog.Error("Snapshot unreadable, trying backup",
			logfields.Kind(string(kind)), logfields.Path(path), logfields.Error(err))
	}

	berr := decodeFile(bak, v)
	if berr == nil {
		if primaryMissing {
			slog.Warn("Recovered snapshot from backup after interrupted save",
				logfields.Kind(string(kind)), logfields.Path(bak))
		}
		return nil
	}
	if !os.IsNotExist(berr) {
		slog.Error("Backup snapshot unreadable",
			logfields.Kind(string(kind)), logfields.Path(bak), logfields.Error(berr))
	}

	return errors.NotFoundError("no readable snapshot").
		WithCause(err).
		WithContext("kind", string(kind)).
		WithContext("path", path).
		Build()
}

// Checker is implemented by snapshots that can be well-formed JSON and still
// unusable. A failed Check makes Load treat the file as corrupt.
type Checker interface {
	Check() error
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	err = json.Unmarshal(data, v)
	if c, ok := v.(Checker); ok && err == nil {
		err = c.Check()
	}
	if err != nil {
		// a failed decode may have filled v partially
		reflect.ValueOf(v).Elem().SetZero()
		return err
	}
	return nil
}
