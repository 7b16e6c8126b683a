package journal

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/checksum"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/noteid"
)

// settle is how long a path must stay quiet before its state is recorded.
const settle = 150 * time.Millisecond

// Watch observes the vault root and records changes made by other programs
// until ctx is cancelled. Changes are recorded from the file's settled state,
// not from individual events, and a change whose checksum matches the newest
// journal entry is skipped: that entry is the note service's own write.
//
// New directories created at runtime are added to the watch list;
// dot-directories are never watched.
func Watch(ctx context.Context, db *DB, vault string, v Vault, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := v.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("vault", vault))

	pending := make(map[string]struct{})
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func(abs string) {
		pending[abs] = struct{}{}
		if flushTimer == nil {
			flushTimer = time.NewTimer(settle)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped", slog.String("vault", vault))
			return nil

		case <-flushCh:
			for abs := range pending {
				observe(ctx, db, vault, v, abs, logger)
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(abs); statErr == nil && info.IsDir() {
					if strings.HasPrefix(filepath.Base(abs), ".") {
						continue
					}
					if addErr := addDirsRecursive(w, abs); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", abs),
							slog.String("error", addErr.Error()))
						continue
					}
					logger.Debug("watcher: watching new dir", slog.String("path", abs))
					// Files may have landed before the directory was watched.
					_ = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
						if err == nil && !d.IsDir() {
							schedule(p)
						}
						return nil
					})
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule(abs)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// observe records the current state of one path if it differs from the
// journal.
func observe(ctx context.Context, db *DB, vault string, v Vault, abs string, logger *slog.Logger) {
	id, ok := v.IDFor(abs)
	if !ok {
		return
	}
	latest, err := db.Latest(ctx, vault, id.String())
	if err != nil {
		logger.Warn("watcher: lookup failed", slog.String("note", id.String()), slog.String("error", err.Error()))
		return
	}

	a, changed, err := settledState(v, vault, id, latest)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("note", id.String()), slog.String("error", err.Error()))
		return
	}
	if !changed {
		return
	}
	if err := db.Record(ctx, a); err != nil {
		logger.Warn("watcher: record failed", slog.String("note", id.String()), slog.String("error", err.Error()))
		return
	}
	logger.Info("watcher: external change",
		slog.String("vault", vault),
		slog.String("note", id.String()),
		slog.String("op", a.Op))
}

func settledState(v Vault, vault string, id noteid.ID, latest *models.Activity) (models.Activity, bool, error) {
	data, err := v.Read(id)
	switch {
	case errors.Is(err, apperr.ErrNoteNotFound):
		if latest == nil || latest.Op == models.OpDelete {
			return models.Activity{}, false, nil
		}
		return external(vault, id.String(), models.OpDelete, ""), true, nil
	case err != nil:
		return models.Activity{}, false, err
	}

	if latest != nil && latest.Op != models.OpDelete && checksum.Matches(latest.Checksum, data) {
		return models.Activity{}, false, nil
	}
	op := models.OpModify
	if latest == nil || latest.Op == models.OpDelete {
		op = models.OpCreate
	}
	return external(vault, id.String(), op, checksum.Sum(data)), true, nil
}

// addDirsRecursive adds root and all its subdirectories to the watcher,
// skipping dot-directories.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
