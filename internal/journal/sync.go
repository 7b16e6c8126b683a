package journal

import (
	"context"
	"log/slog"

	"github.com/starford/notevault/internal/checksum"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/noteid"
)

// Vault is the view of a vault the watcher and reconciler need.
type Vault interface {
	Root() string
	IDFor(abs string) (noteid.ID, bool)
	Read(id noteid.ID) ([]byte, error)
	List(folder string) ([]models.NoteInfo, error)
}

// Reconcile compares the vault on disk with the newest journal entry of each
// note and records what changed while nobody was watching:
//   - notes that are new or whose content differs get a "modify" entry
//   - notes that vanished get a "delete" entry
func Reconcile(ctx context.Context, db *DB, vault string, v Vault, logger *slog.Logger) error {
	notes, err := v.List("")
	if err != nil {
		return err
	}
	known, err := db.Snapshot(ctx, vault)
	if err != nil {
		return err
	}

	onDisk := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		id := n.ID.String()
		onDisk[id] = struct{}{}

		data, err := v.Read(n.ID)
		if err != nil {
			logger.Warn("reconcile: read failed", slog.String("note", id), slog.String("error", err.Error()))
			continue
		}
		if checksum.Matches(known[id], data) {
			continue
		}
		if err := db.Record(ctx, external(vault, id, models.OpModify, checksum.Sum(data))); err != nil {
			return err
		}
		logger.Debug("reconcile: recorded change", slog.String("note", id))
	}

	for id := range known {
		if _, ok := onDisk[id]; ok {
			continue
		}
		if err := db.Record(ctx, external(vault, id, models.OpDelete, "")); err != nil {
			return err
		}
		logger.Debug("reconcile: recorded removal", slog.String("note", id))
	}
	return nil
}

func external(vault, note, op, sum string) models.Activity {
	return models.Activity{
		Vault:    vault,
		Note:     note,
		Op:       op,
		Checksum: sum,
		Source:   models.SourceWatcher,
	}
}
