// Package models defines the domain types shared across notevault layers.
package models

import (
	"time"

	"github.com/starford/notevault/internal/noteid"
)

// NoteInfo is a lightweight representation returned by list operations.
type NoteInfo struct {
	ID         noteid.ID `json:"note"`
	Name       string    `json:"name"`
	Folder     string    `json:"folder"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified"`
}

// VaultInfo describes one configured vault without exposing its root path.
type VaultInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Default     bool   `json:"default"`
}

// Activity sources.
const (
	SourceService = "service"
	SourceWatcher = "watcher"
)

// Activity operations.
const (
	OpCreate      = "create"
	OpReplace     = "replace"
	OpAppend      = "append"
	OpPrepend     = "prepend"
	OpDelete      = "delete"
	OpMove        = "move"
	OpLinks       = "rewrite_links"
	OpSection     = "edit_section"
	OpFrontmatter = "edit_frontmatter"
	OpModify      = "modify"
)

// Activity is one journal entry describing a change to a note.
type Activity struct {
	ID        string    `json:"id"`
	Vault     string    `json:"vault"`
	Note      string    `json:"note"`
	Op        string    `json:"op"`
	Checksum  string    `json:"checksum,omitempty"`
	Source    string    `json:"source"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
