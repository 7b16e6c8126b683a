// Package noteid canonicalises caller-supplied note identifiers.
//
// A canonical identifier is a forward-slash separated relative path without
// the .md extension, e.g. "Projects/Ideas". Parse performs no I/O.
package noteid

import (
	"strings"

	"github.com/starford/notevault/internal/apperr"
)

// Ext is the file extension every note carries on disk.
const Ext = ".md"

// ID is a canonical note identifier. The zero value is invalid.
type ID string

// Parse validates raw and returns its canonical form.
// Parse(id.String()) returns id for every valid id.
func Parse(raw string) (ID, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return "", apperr.Validation(apperr.ErrEmptyIdentifier, raw, "provide a note identifier like 'Daily Notes/2025-10-27'")
	}
	if isAbsolute(cleaned) {
		return "", apperr.Validation(apperr.ErrAbsoluteIdentifier, raw, "identifier must be relative to the vault root")
	}

	// Strip until stable so that Parse is idempotent for inputs like "a.md.md" or "a .md".
	for hasExt(cleaned) {
		cleaned = strings.TrimSpace(cleaned[:len(cleaned)-len(Ext)])
	}
	if cleaned == "" {
		return "", apperr.Validation(apperr.ErrEmptyIdentifier, raw, "identifier cannot be just the extension")
	}

	for _, seg := range strings.Split(cleaned, "/") {
		switch {
		case seg == "":
			return "", apperr.Validation(apperr.ErrInvalidSegment, raw, "empty path segment")
		case seg == "." || seg == "..":
			return "", apperr.Validation(apperr.ErrInvalidSegment, raw, "'.' and '..' segments are not allowed")
		case strings.ContainsAny(seg, "\\\x00"):
			return "", apperr.Validation(apperr.ErrInvalidSegment, raw, "segment contains a reserved character")
		}
	}
	return ID(cleaned), nil
}

// MustParse is Parse for trusted literals; it panics on error.
func MustParse(raw string) ID {
	id, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// FromPath converts a vault-relative, slash-separated file path ending in .md
// into an identifier. ok is false for anything that is not a valid note path.
func FromPath(rel string) (ID, bool) {
	if !hasExt(rel) {
		return "", false
	}
	id, err := Parse(rel)
	if err != nil {
		return "", false
	}
	return id, true
}

// isAbsolute reports a leading slash, backslash, or a drive-letter prefix such as "C:".
func isAbsolute(s string) bool {
	if s[0] == '/' || s[0] == '\\' {
		return true
	}
	if len(s) >= 2 && s[1] == ':' {
		c := s[0]
		return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
	}
	return false
}

// String returns the canonical identifier.
func (id ID) String() string { return string(id) }

// Segments returns the slash-separated parts of the identifier.
func (id ID) Segments() []string { return strings.Split(string(id), "/") }

// Leaf returns the final segment (the note's file name without extension).
func (id ID) Leaf() string {
	s := string(id)
	return s[strings.LastIndexByte(s, '/')+1:]
}

// Folder returns the parent folder identifier, or "" for notes at the vault root.
func (id ID) Folder() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[:i]
	}
	return ""
}

// FileName returns the slash-separated relative file path, e.g. "a/b.md".
func (id ID) FileName() string { return string(id) + Ext }

func hasExt(s string) bool {
	return len(s) >= len(Ext) && strings.EqualFold(s[len(s)-len(Ext):], Ext)
}
