package daemon

import (
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/logfields"
	"git.home.luguber.info/inful/xgrab/internal/model"
)

// RecoveryReport summarizes a startup reconciliation of the file set with the
// temp directory.
type RecoveryReport struct {
	MissingRemoved  int
	CompleteRemoved int
	PartsAdjusted   int
	OrphansDeleted  int
}

// Recover reconciles files with their partial downloads in tempDir. Each file
// owns tempDir/<TmpName>.
//
//   - files whose temp file is gone are removed
//   - completed files are removed; their data is left for the transfer engine
//   - part progress beyond the on-disk length is rewound and open parts closed
//   - temp files no file refers to are deleted
func Recover(files *model.FileSet, tempDir string) (RecoveryReport, error) {
	var rep RecoveryReport
	if err := os.MkdirAll(tempDir, 0o750); err != nil {
		return rep, errors.WrapError(err, errors.CategoryPersistence, "failed to create temp directory").
			WithContext("path", tempDir).Build()
	}

	referenced := make(map[string]bool)
	for _, f := range files.Files().All() {
		path := filepath.Join(tempDir, f.TmpName())
		info, err := os.Stat(path)
		if err != nil {
			slog.Warn("Removing file without partial data", logfields.File(f.Name()), logfields.Path(path))
			files.Files().Remove(f)
			rep.MissingRemoved++
			continue
		}
		referenced[f.TmpName()] = true

		if f.Complete() {
			slog.Info("Removing completed file", logfields.File(f.Name()))
			files.Files().Remove(f)
			rep.CompleteRemoved++
			continue
		}
		rep.PartsAdjusted += clampParts(f, info.Size())
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return rep, errors.WrapError(err, errors.CategoryPersistence, "failed to list temp directory").
			WithContext("path", tempDir).Build()
	}
	for _, e := range entries {
		if e.IsDir() || referenced[e.Name()] {
			continue
		}
		path := filepath.Join(tempDir, e.Name())
		if err := os.Remove(path); err != nil {
			slog.Error("Failed to delete orphan temp file", logfields.Path(path), logfields.Error(err))
			continue
		}
		slog.Info("Deleted orphan temp file", logfields.Path(path))
		rep.OrphansDeleted++
	}
	return rep, nil
}

func clampParts(f *model.File, onDisk int64) int {
	adjusted := 0
	for _, p := range f.Parts().All() {
		changed := false
		if cur := p.CurrentSize(); cur > onDisk {
			p.SetCurrentSize(max(p.StartSize(), onDisk))
			changed = true
		}
		if p.State() == model.PartOpen {
			p.SetState(model.PartClosed)
			changed = true
		}
		if changed {
			adjusted++
		}
	}
	return adjusted
}
