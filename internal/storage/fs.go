package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/noteid"
)

// maxLinkHops bounds symlink resolution when a dangling link is encountered.
const maxLinkHops = 40

// FS implements Provider backed by the local file system.
type FS struct {
	root  string // canonical absolute path to the vault directory
	locks *Locks
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(canon)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: canon, locks: NewLocks()}, nil
}

// Root returns the canonical vault root.
func (f *FS) Root() string {
	return f.root
}

// Resolve joins id onto the vault root, follows symlinks on the existing part
// of the path and rejects any result that is not inside the root. The note
// itself does not need to exist.
func (f *FS) Resolve(id noteid.ID) (string, error) {
	return f.confine(id.String(), filepath.Join(f.root, filepath.FromSlash(id.FileName())))
}

func (f *FS) confine(name, joined string) (string, error) {
	canon, err := canonicalize(joined)
	if err != nil {
		return "", apperr.IO(name, fmt.Errorf("storage: resolve path: %w", err))
	}
	if !within(f.root, canon) {
		return "", apperr.SandboxEscape(name)
	}
	return canon, nil
}

// canonicalize evaluates symlinks on the deepest existing ancestor of p and
// re-appends the components that do not exist yet.
func canonicalize(p string) (string, error) {
	cur := filepath.Clean(p)
	var tail []string
	for hops := 0; ; {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return joinTail(real, tail), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		// A dangling symlink still exists as a directory entry; follow its
		// target so the containment check sees where a write would land.
		if info, lerr := os.Lstat(cur); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
			if hops++; hops > maxLinkHops {
				return "", fmt.Errorf("too many levels of symbolic links: %s", p)
			}
			target, rerr := os.Readlink(cur)
			if rerr != nil {
				return "", rerr
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(cur), target)
			}
			cur = filepath.Clean(target)
			continue
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return joinTail(cur, tail), nil
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

func joinTail(base string, tail []string) string {
	for i := len(tail) - 1; i >= 0; i-- {
		base = filepath.Join(base, tail[i])
	}
	return base
}

// within reports whether p is root or a descendant of root.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// IDFor maps an absolute path inside the vault back to a note identifier.
// ok is false for paths outside the vault or files that are not notes.
func (f *FS) IDFor(abs string) (noteid.ID, bool) {
	if !within(f.root, abs) {
		return "", false
	}
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return "", false
	}
	return noteid.FromPath(filepath.ToSlash(rel))
}

// Read returns the raw bytes of a note.
func (f *FS) Read(id noteid.ID) ([]byte, error) {
	abs, err := f.Resolve(id)
	if err != nil {
		return nil, err
	}
	return readNote(id, abs)
}

func readNote(id noteid.ID, abs string) ([]byte, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NoteNotFound(id.String())
		}
		return nil, apperr.IO(id.String(), fmt.Errorf("storage: read: %w", err))
	}
	return data, nil
}

func fileExists(id noteid.ID, abs string) (bool, error) {
	info, err := os.Stat(abs)
	switch {
	case err == nil:
		return info.Mode().IsRegular(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, apperr.IO(id.String(), fmt.Errorf("storage: stat: %w", err))
	}
}

// Create writes a new note; it fails with AlreadyExists if the note exists.
func (f *FS) Create(ctx context.Context, id noteid.ID, content []byte) error {
	return f.withLock(ctx, []noteid.ID{id}, func(paths []string) error {
		exists, err := fileExists(id, paths[0])
		if err != nil {
			return err
		}
		if exists {
			return apperr.AlreadyExists(id.String())
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return writeFile(id, paths[0], content)
	})
}

// Update runs one read-modify-write cycle under the note's lock. The write is
// atomic, so an abandoned or failed cycle leaves the previous content intact.
func (f *FS) Update(ctx context.Context, id noteid.ID, fn UpdateFunc) error {
	return f.withLock(ctx, []noteid.ID{id}, func(paths []string) error {
		current, err := readNote(id, paths[0])
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil // read-only or no change
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return writeFile(id, paths[0], next)
	})
}

// Delete removes a note.
func (f *FS) Delete(ctx context.Context, id noteid.ID) error {
	return f.withLock(ctx, []noteid.ID{id}, func(paths []string) error {
		if err := os.Remove(paths[0]); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return apperr.NoteNotFound(id.String())
			}
			return apperr.IO(id.String(), fmt.Errorf("storage: delete: %w", err))
		}
		return nil
	})
}

// Move renames a note within the vault. Both paths are locked for the duration.
func (f *FS) Move(ctx context.Context, from, to noteid.ID) error {
	return f.withLock(ctx, []noteid.ID{from, to}, func(paths []string) error {
		src, dst := paths[0], paths[1]
		exists, err := fileExists(from, src)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NoteNotFound(from.String())
		}
		if exists, err = fileExists(to, dst); err != nil {
			return err
		} else if exists {
			return apperr.AlreadyExists(to.String())
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return apperr.IO(to.String(), fmt.Errorf("storage: mkdir for move: %w", err))
		}
		if err := os.Rename(src, dst); err != nil {
			return apperr.IO(from.String(), fmt.Errorf("storage: move: %w", err))
		}
		return nil
	})
}

// withLock resolves ids, locks the resulting paths and runs fn with them.
func (f *FS) withLock(ctx context.Context, ids []noteid.ID, fn func(paths []string) error) error {
	paths := make([]string, len(ids))
	for i, id := range ids {
		p, err := f.Resolve(id)
		if err != nil {
			return err
		}
		paths[i] = p
	}
	release, err := f.locks.AcquireMany(ctx, paths...)
	if err != nil {
		return err
	}
	defer release()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(paths)
}

// writeFile atomically replaces abs: temp file in the same dir, fsync, rename.
func writeFile(id noteid.ID, abs string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return apperr.IO(id.String(), fmt.Errorf("storage: mkdir: %w", err))
	}
	if err := atomic.WriteFile(abs, bytes.NewReader(content)); err != nil {
		return apperr.IO(id.String(), fmt.Errorf("storage: write: %w", err))
	}
	return nil
}

// List walks folder (relative to root, "" for everything) and returns every
// note beneath it. Dot-directories such as .obsidian or .trash are skipped.
func (f *FS) List(folder string) ([]models.NoteInfo, error) {
	base := f.root
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder != "" {
		dir, err := noteid.Parse(folder)
		if err != nil {
			return nil, err
		}
		parts := append([]string{f.root}, dir.Segments()...)
		if base, err = f.confine(folder, filepath.Join(parts...)); err != nil {
			return nil, err
		}
		if info, err := os.Stat(base); err != nil || !info.IsDir() {
			return nil, apperr.FolderNotFound(folder)
		}
	}

	var out []models.NoteInfo
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		id, ok := f.IDFor(p)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, models.NoteInfo{
			ID:         id,
			Name:       id.Leaf(),
			Folder:     id.Folder(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, apperr.IO(folder, fmt.Errorf("storage: list: %w", err))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
