package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/noteid"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestCreateAndRead(t *testing.T) {
	s := tempVault(t)
	id := noteid.MustParse("note")
	content := []byte("# Hello\nWorld\n")
	require.NoError(t, s.Create(context.Background(), id, content))

	got, err := s.Read(id)
	require.NoError(t, err)
	assert.Equal(t, string(content), string(got))

	_, err = os.Stat(filepath.Join(s.Root(), "note.md"))
	assert.NoError(t, err)
}

func TestCreateExisting(t *testing.T) {
	s := tempVault(t)
	id := noteid.MustParse("dup")
	require.NoError(t, s.Create(context.Background(), id, []byte("a")))
	err := s.Create(context.Background(), id, []byte("b"))
	assert.True(t, errors.Is(err, apperr.ErrAlreadyExists), "got %v", err)

	got, _ := s.Read(id)
	assert.Equal(t, "a", string(got))
}

func TestCreateMakesSubdirs(t *testing.T) {
	s := tempVault(t)
	id := noteid.MustParse("a/b/c")
	require.NoError(t, s.Create(context.Background(), id, []byte("deep")))
	got, err := s.Read(id)
	require.NoError(t, err)
	assert.Equal(t, "deep", string(got))
}

func TestReadMissing(t *testing.T) {
	s := tempVault(t)
	_, err := s.Read(noteid.MustParse("nope"))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.True(t, errors.Is(err, apperr.ErrNoteNotFound))
}

func TestUpdate(t *testing.T) {
	s := tempVault(t)
	ctx := context.Background()
	id := noteid.MustParse("u")
	require.NoError(t, s.Create(ctx, id, []byte("v1")))

	err := s.Update(ctx, id, func(cur []byte) ([]byte, error) {
		assert.Equal(t, "v1", string(cur))
		return append(cur, "+v2"...), nil
	})
	require.NoError(t, err)
	got, _ := s.Read(id)
	assert.Equal(t, "v1+v2", string(got))

	// nil result skips the write
	require.NoError(t, s.Update(ctx, id, func([]byte) ([]byte, error) { return nil, nil }))
	got, _ = s.Read(id)
	assert.Equal(t, "v1+v2", string(got))

	// handler errors abort without writing
	boom := errors.New("boom")
	err = s.Update(ctx, id, func([]byte) ([]byte, error) { return []byte("x"), boom })
	assert.ErrorIs(t, err, boom)
	got, _ = s.Read(id)
	assert.Equal(t, "v1+v2", string(got))

	assert.Equal(t, 0, s.locks.Len(), "locks must be released on every path")
}

func TestUpdateCancelledBeforeWrite(t *testing.T) {
	s := tempVault(t)
	id := noteid.MustParse("c")
	require.NoError(t, s.Create(context.Background(), id, []byte("orig")))

	ctx, cancel := context.WithCancel(context.Background())
	err := s.Update(ctx, id, func([]byte) ([]byte, error) {
		cancel()
		return []byte("new"), nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	got, _ := s.Read(id)
	assert.Equal(t, "orig", string(got))
}

func TestUpdateMissing(t *testing.T) {
	s := tempVault(t)
	err := s.Update(context.Background(), noteid.MustParse("ghost"), func(b []byte) ([]byte, error) { return b, nil })
	assert.True(t, errors.Is(err, apperr.ErrNoteNotFound))
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	ctx := context.Background()
	id := noteid.MustParse("del")
	require.NoError(t, s.Create(ctx, id, []byte("bye")))
	require.NoError(t, s.Delete(ctx, id))
	_, err := s.Read(id)
	assert.Error(t, err)

	err = s.Delete(ctx, id)
	assert.True(t, errors.Is(err, apperr.ErrNoteNotFound))
}

func TestMove(t *testing.T) {
	s := tempVault(t)
	ctx := context.Background()
	from, to := noteid.MustParse("old"), noteid.MustParse("sub/new")
	require.NoError(t, s.Create(ctx, from, []byte("data")))
	require.NoError(t, s.Move(ctx, from, to))

	got, err := s.Read(to)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
	_, err = s.Read(from)
	assert.Error(t, err, "old path should not exist")
}

func TestMoveConflicts(t *testing.T) {
	s := tempVault(t)
	ctx := context.Background()
	a, b := noteid.MustParse("a"), noteid.MustParse("b")

	err := s.Move(ctx, a, b)
	assert.True(t, errors.Is(err, apperr.ErrNoteNotFound))

	require.NoError(t, s.Create(ctx, a, []byte("a")))
	require.NoError(t, s.Create(ctx, b, []byte("b")))
	err = s.Move(ctx, a, b)
	assert.True(t, errors.Is(err, apperr.ErrAlreadyExists))
}

func TestList(t *testing.T) {
	s := tempVault(t)
	ctx := context.Background()
	for _, id := range []string{"b", "a", "sub/c"} {
		require.NoError(t, s.Create(ctx, noteid.MustParse(id), []byte(id)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "readme.txt"), []byte("not md"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), ".obsidian"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), ".obsidian", "hidden.md"), []byte("x"), 0o644))

	items, err := s.List("")
	require.NoError(t, err)
	var ids []noteid.ID
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []noteid.ID{"a", "b", "sub/c"}, ids)

	items, err = s.List("sub")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, noteid.ID("sub/c"), items[0].ID)
	assert.Equal(t, "c", items[0].Name)
	assert.Equal(t, "sub", items[0].Folder)
	assert.EqualValues(t, len("sub/c"), items[0].Size)

	_, err = s.List("missing")
	assert.True(t, errors.Is(err, apperr.ErrFolderNotFound))

	_, err = s.List("../")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestResolveStaysInsideRoot(t *testing.T) {
	s := tempVault(t)
	p, err := s.Resolve(noteid.MustParse("x/y"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "x", "y.md"), p)

	// Identifiers that bypassed validation are still caught by containment.
	for _, raw := range []string{"../outside", "a/../../b", "../../etc/passwd"} {
		_, err := s.Resolve(noteid.ID(raw))
		assert.True(t, errors.Is(err, apperr.ErrSandboxEscape), "%q: got %v", raw, err)
		assert.True(t, errors.Is(err, apperr.ErrSecurity))
	}
}

func TestResolveSymlinkEscape(t *testing.T) {
	s := tempVault(t)
	outside := t.TempDir()

	require.NoError(t, os.Symlink(outside, filepath.Join(s.Root(), "linked")))
	_, err := s.Resolve(noteid.MustParse("linked/secret"))
	assert.True(t, errors.Is(err, apperr.ErrSandboxEscape), "got %v", err)

	err = s.Create(context.Background(), noteid.MustParse("linked/secret"), []byte("x"))
	assert.True(t, errors.Is(err, apperr.ErrSandboxEscape))
	_, statErr := os.Stat(filepath.Join(outside, "secret.md"))
	assert.True(t, os.IsNotExist(statErr), "nothing may be written outside the vault")
}

func TestResolveDanglingSymlinkEscape(t *testing.T) {
	s := tempVault(t)
	target := filepath.Join(t.TempDir(), "planted.md")
	require.NoError(t, os.Symlink(target, filepath.Join(s.Root(), "trap.md")))

	_, err := s.Resolve(noteid.MustParse("trap"))
	assert.True(t, errors.Is(err, apperr.ErrSandboxEscape), "got %v", err)
}

func TestResolveSymlinkInsideVault(t *testing.T) {
	s := tempVault(t)
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "real"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(s.Root(), "real"), filepath.Join(s.Root(), "alias")))

	p, err := s.Resolve(noteid.MustParse("alias/n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "real", "n.md"), p)
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempVault(t)
	ctx := context.Background()
	id := noteid.MustParse("atomic")
	require.NoError(t, s.Create(ctx, id, []byte("original content")))
	require.NoError(t, s.Update(ctx, id, func([]byte) ([]byte, error) {
		return []byte("updated content"), nil
	}))
	got, _ := s.Read(id)
	assert.Equal(t, "updated content", string(got))

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1, "leftover temp files")
	assert.Equal(t, "atomic.md", entries[0].Name())
}

func TestIDFor(t *testing.T) {
	s := tempVault(t)
	id, ok := s.IDFor(filepath.Join(s.Root(), "a", "b.md"))
	require.True(t, ok)
	assert.Equal(t, noteid.ID("a/b"), id)

	_, ok = s.IDFor(filepath.Join(s.Root(), "a", "b.txt"))
	assert.False(t, ok)
	_, ok = s.IDFor("/elsewhere/x.md")
	assert.False(t, ok)
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestNewFS_FileNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err := NewFS(f)
	assert.Error(t, err)
}
