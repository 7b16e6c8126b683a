package noteservice

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/document"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/noteid"
	"github.com/starford/notevault/internal/section"
)

// Create writes a new note. It fails with AlreadyExists when the note is
// already there; missing folders are created.
func (s *Service) Create(ctx context.Context, raw, content string) (*Change, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	data := []byte(content)
	if err := s.store.Create(ctx, id, data); err != nil {
		return nil, s.fail(models.OpCreate, id, err)
	}
	s.record(ctx, models.OpCreate, id, data, "")
	return s.change(id, "created"), nil
}

// Read returns the raw content of a note.
func (s *Service) Read(_ context.Context, raw string) (*Note, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(id)
	if err != nil {
		return nil, s.fail("read", id, err)
	}
	return &Note{Vault: s.name, ID: id, Content: string(data)}, nil
}

// Replace overwrites the body of a note. The existing frontmatter block is
// kept byte for byte unless content carries a block of its own.
func (s *Service) Replace(ctx context.Context, raw, content string) (*Change, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	_, err = s.mutate(ctx, id, models.OpReplace, func(current []byte) ([]byte, error) {
		if head, _, _ := document.Split([]byte(content)); head != "" {
			return []byte(content), nil
		}
		head, _, _ := document.Split(current)
		return []byte(head + content), nil
	})
	if err != nil {
		return nil, err
	}
	return s.change(id, "replaced"), nil
}

// Append adds content at the end of the note, joined by a single newline
// when neither side provides one.
func (s *Service) Append(ctx context.Context, raw, content string) (*Change, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	_, err = s.mutate(ctx, id, models.OpAppend, func(current []byte) ([]byte, error) {
		return []byte(joinLines(string(current), content)), nil
	})
	if err != nil {
		return nil, err
	}
	return s.change(id, "appended"), nil
}

// Prepend adds content at the start of the body, after any frontmatter block.
func (s *Service) Prepend(ctx context.Context, raw, content string) (*Change, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	_, err = s.mutate(ctx, id, models.OpPrepend, func(current []byte) ([]byte, error) {
		head, _, body := document.Split(current)
		return []byte(head + joinLines(content, body)), nil
	})
	if err != nil {
		return nil, err
	}
	return s.change(id, "prepended"), nil
}

// Delete removes a note.
func (s *Service) Delete(ctx context.Context, raw string) (*Change, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, s.fail(models.OpDelete, id, err)
	}
	s.record(ctx, models.OpDelete, id, nil, "")
	return s.change(id, "deleted"), nil
}

// List sort orders.
const (
	SortPath     = "path"
	SortName     = "name"
	SortModified = "modified"
)

// ListOptions narrows and orders a listing.
type ListOptions struct {
	// Folder limits the listing to one folder, "" meaning the vault root.
	Folder string
	// Recursive includes notes in subfolders of Folder.
	Recursive bool
	// Sort is SortPath (the default), SortName or SortModified (newest first).
	Sort string
}

// List returns the notes under opts.Folder. Dot-directories are skipped.
func (s *Service) List(_ context.Context, opts ListOptions) ([]models.NoteInfo, error) {
	switch opts.Sort {
	case "", SortPath, SortName, SortModified:
	default:
		return nil, apperr.InvalidArgument("sort", fmt.Sprintf("must be %q, %q or %q", SortPath, SortName, SortModified))
	}
	notes, err := s.store.List(opts.Folder)
	if err != nil {
		return nil, err
	}
	if !opts.Recursive {
		folder := strings.Trim(strings.TrimSpace(opts.Folder), "/")
		if folder != "" {
			id, err := noteid.Parse(folder)
			if err != nil {
				return nil, err
			}
			folder = id.String()
		}
		notes = slices.DeleteFunc(notes, func(n models.NoteInfo) bool { return n.Folder != folder })
	}

	switch opts.Sort {
	case SortName:
		sort.SliceStable(notes, func(i, j int) bool {
			return strings.ToLower(notes[i].Name) < strings.ToLower(notes[j].Name)
		})
	case SortModified:
		sort.SliceStable(notes, func(i, j int) bool { return notes[i].ModifiedAt.After(notes[j].ModifiedAt) })
	}
	if notes == nil {
		notes = []models.NoteInfo{}
	}
	return notes, nil
}

// Outline returns the headings of a note's body in document order.
func (s *Service) Outline(_ context.Context, raw string) ([]section.Heading, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(id)
	if err != nil {
		return nil, s.fail("outline", id, err)
	}
	_, _, body := document.Split(data)
	return section.Outline(body), nil
}

// joinLines concatenates left and right, inserting one newline when neither
// side already provides one at the seam.
func joinLines(left, right string) string {
	switch {
	case left == "":
		return right
	case right == "":
		return left
	case !strings.HasSuffix(left, "\n") && !strings.HasPrefix(right, "\n"):
		return left + "\n" + right
	default:
		return left + right
	}
}
