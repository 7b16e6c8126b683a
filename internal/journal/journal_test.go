package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notevault/internal/checksum"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return fs.Root(), fs
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM activity`).Scan(&count); err != nil {
		t.Fatalf("activity table missing: %v", err)
	}
}

func TestRecordAndHistory(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, op := range []string{models.OpCreate, models.OpAppend, models.OpSection} {
		if err := db.Record(ctx, models.Activity{Vault: "v", Note: "a", Op: op, Source: models.SourceService}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := db.Record(ctx, models.Activity{Vault: "v", Note: "b", Op: models.OpCreate, Source: models.SourceService}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := db.Record(ctx, models.Activity{Vault: "other", Note: "a", Op: models.OpCreate, Source: models.SourceService}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := db.History(ctx, "v", "a", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Op != models.OpSection || got[2].Op != models.OpCreate {
		t.Errorf("order = %s..%s, want newest first", got[0].Op, got[2].Op)
	}
	if got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Errorf("id and timestamp should be filled in: %+v", got[0])
	}

	limited, err := db.History(ctx, "v", "a", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len = %d, want 2", len(limited))
	}
}

func TestHistory_Empty(t *testing.T) {
	db := testDB(t)
	got, err := db.History(context.Background(), "v", "missing", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestLatestAndSnapshot(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	latest, err := db.Latest(ctx, "v", "a")
	if err != nil || latest != nil {
		t.Fatalf("Latest on empty journal = %v, %v", latest, err)
	}

	_ = db.Record(ctx, models.Activity{Vault: "v", Note: "a", Op: models.OpCreate, Checksum: "1", Source: models.SourceService})
	_ = db.Record(ctx, models.Activity{Vault: "v", Note: "a", Op: models.OpAppend, Checksum: "2", Source: models.SourceService})
	_ = db.Record(ctx, models.Activity{Vault: "v", Note: "gone", Op: models.OpCreate, Checksum: "3", Source: models.SourceService})
	_ = db.Record(ctx, models.Activity{Vault: "v", Note: "gone", Op: models.OpDelete, Source: models.SourceService})

	latest, err = db.Latest(ctx, "v", "a")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Checksum != "2" {
		t.Errorf("latest checksum = %q, want 2", latest.Checksum)
	}

	snap, err := db.Snapshot(ctx, "v")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 1 || snap["a"] != "2" {
		t.Errorf("snapshot = %v, want map[a:2]", snap)
	}
}

func TestReconcile(t *testing.T) {
	db := testDB(t)
	root, fs := testVault(t)
	ctx := context.Background()
	logger := discardLogger()

	same := []byte("# same\n")
	_ = os.WriteFile(filepath.Join(root, "same.md"), same, 0o644)
	_ = os.WriteFile(filepath.Join(root, "changed.md"), []byte("new"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "fresh.md"), []byte("fresh"), 0o644)

	_ = db.Record(ctx, models.Activity{Vault: "v", Note: "same", Op: models.OpCreate, Checksum: checksum.Sum(same), Source: models.SourceService})
	_ = db.Record(ctx, models.Activity{Vault: "v", Note: "changed", Op: models.OpCreate, Checksum: "old", Source: models.SourceService})
	_ = db.Record(ctx, models.Activity{Vault: "v", Note: "removed", Op: models.OpCreate, Checksum: "x", Source: models.SourceService})

	if err := Reconcile(ctx, db, "v", fs, logger); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	expect := map[string]string{
		"same":    models.OpCreate,
		"changed": models.OpModify,
		"fresh":   models.OpModify,
		"removed": models.OpDelete,
	}
	for note, op := range expect {
		latest, err := db.Latest(ctx, "v", note)
		if err != nil || latest == nil {
			t.Fatalf("Latest(%s) = %v, %v", note, latest, err)
		}
		if latest.Op != op {
			t.Errorf("%s: op = %s, want %s", note, latest.Op, op)
		}
	}

	// A second pass finds nothing new.
	before, _ := db.History(ctx, "v", "changed", 0)
	if err := Reconcile(ctx, db, "v", fs, logger); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	after, _ := db.History(ctx, "v", "changed", 0)
	if len(before) != len(after) {
		t.Errorf("second reconcile recorded %d extra entries", len(after)-len(before))
	}
}

func TestSettledState(t *testing.T) {
	root, fs := testVault(t)
	_ = os.WriteFile(filepath.Join(root, "n.md"), []byte("body"), 0o644)
	sum := checksum.Sum([]byte("body"))

	tests := []struct {
		name    string
		note    string
		latest  *models.Activity
		changed bool
		op      string
	}{
		{name: "unknown note", note: "n", latest: nil, changed: true, op: models.OpCreate},
		{name: "own write", note: "n", latest: &models.Activity{Op: models.OpAppend, Checksum: sum}, changed: false},
		{name: "external edit", note: "n", latest: &models.Activity{Op: models.OpAppend, Checksum: "stale"}, changed: true, op: models.OpModify},
		{name: "recreated", note: "n", latest: &models.Activity{Op: models.OpDelete}, changed: true, op: models.OpCreate},
		{name: "external removal", note: "missing", latest: &models.Activity{Op: models.OpCreate}, changed: true, op: models.OpDelete},
		{name: "removal already known", note: "missing", latest: &models.Activity{Op: models.OpDelete}, changed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := fs.IDFor(filepath.Join(root, tt.note+".md"))
			if !ok {
				t.Fatal("IDFor failed")
			}
			a, changed, err := settledState(fs, "v", id, tt.latest)
			if err != nil {
				t.Fatalf("settledState: %v", err)
			}
			if changed != tt.changed {
				t.Fatalf("changed = %v, want %v", changed, tt.changed)
			}
			if changed && a.Op != tt.op {
				t.Errorf("op = %s, want %s", a.Op, tt.op)
			}
			if changed && a.Source != models.SourceWatcher {
				t.Errorf("source = %s, want watcher", a.Source)
			}
		})
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
