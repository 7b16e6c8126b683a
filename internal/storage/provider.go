// Package storage confines note identifiers to a vault directory and performs
// the file-level reads and lock-protected, atomic writes behind every note operation.
package storage

import (
	"context"

	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/noteid"
)

// UpdateFunc receives the current file content and returns the new content.
// Returning nil content skips the write; returning an error aborts the cycle.
type UpdateFunc func(current []byte) ([]byte, error)

// Provider is the interface for vault file operations.
type Provider interface {
	// Resolve maps id to an absolute path confined to the vault root.
	Resolve(id noteid.ID) (string, error)
	// Read returns the raw bytes of a note.
	Read(id noteid.ID) ([]byte, error)
	// Create writes a new note; it fails if the note already exists.
	Create(ctx context.Context, id noteid.ID, content []byte) error
	// Update runs one locked read-modify-write cycle on an existing note.
	Update(ctx context.Context, id noteid.ID, fn UpdateFunc) error
	// Delete removes a note.
	Delete(ctx context.Context, id noteid.ID) error
	// Move renames from to to; to must not exist.
	Move(ctx context.Context, from, to noteid.ID) error
	// List returns every note under folder ("" for the whole vault), sorted by id.
	List(folder string) ([]models.NoteInfo, error)
}

var _ Provider = (*FS)(nil)
