// Package apperr defines the error taxonomy shared by every notevault layer.
//
// Each failure carries a category (validation, security, not found, conflict,
// metadata, I/O) and a specific code. Both are sentinels, so callers can match
// either with errors.Is:
//
//	errors.Is(err, apperr.ErrNotFound)        // any missing note or heading
//	errors.Is(err, apperr.ErrHeadingNotFound) // only a missing heading
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Categories.
var (
	ErrValidation = errors.New("validation error")
	ErrSecurity   = errors.New("security error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrMetadata   = errors.New("metadata error")
	ErrIO         = errors.New("i/o error")
)

// Codes.
var (
	ErrEmptyIdentifier      = errors.New("empty identifier")
	ErrInvalidSegment       = errors.New("invalid identifier segment")
	ErrAbsoluteIdentifier   = errors.New("absolute identifier")
	ErrSandboxEscape        = errors.New("path escapes vault root")
	ErrNoteNotFound         = errors.New("note not found")
	ErrFolderNotFound       = errors.New("folder not found")
	ErrVaultNotFound        = errors.New("vault not found")
	ErrHeadingNotFound      = errors.New("heading not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrSameIdentifier       = errors.New("source and destination are the same")
	ErrMalformedMetadata    = errors.New("malformed metadata")
	ErrMetadataTooLarge     = errors.New("metadata too large")
	ErrUnsupportedValueType = errors.New("unsupported metadata value type")
	ErrInvalidArgument      = errors.New("invalid argument")
)

// Error is a structured failure. Only the fields relevant to Code are set.
type Error struct {
	Kind       error
	Code       error
	Identifier string
	Heading    string
	Key        string
	Line       int
	Size       int
	Limit      int
	Msg        string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.Error())
	if e.Identifier != "" {
		fmt.Fprintf(&b, ": %q", e.Identifier)
	}
	if e.Heading != "" {
		fmt.Fprintf(&b, ": heading %q", e.Heading)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, ": key %q", e.Key)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, ": line %d", e.Line)
	}
	if e.Limit > 0 {
		fmt.Fprintf(&b, ": %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the category, the code and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind, e.Code}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newErr(kind, code error, id string) *Error {
	return &Error{Kind: kind, Code: code, Identifier: id}
}

// Validation returns a ValidationError for a malformed identifier.
func Validation(code error, raw, msg string) *Error {
	e := newErr(ErrValidation, code, raw)
	e.Msg = msg
	return e
}

// InvalidArgument reports a tool argument outside its accepted values.
func InvalidArgument(name, msg string) *Error {
	e := newErr(ErrValidation, ErrInvalidArgument, "")
	e.Key = name
	e.Msg = msg
	return e
}

// SandboxEscape returns the SecurityError for an identifier that resolved outside the vault.
func SandboxEscape(id string) *Error {
	return newErr(ErrSecurity, ErrSandboxEscape, id)
}

// NoteNotFound reports a missing note.
func NoteNotFound(id string) *Error {
	return newErr(ErrNotFound, ErrNoteNotFound, id)
}

// FolderNotFound reports a missing folder in a listing.
func FolderNotFound(folder string) *Error {
	return newErr(ErrNotFound, ErrFolderNotFound, folder)
}

// VaultNotFound reports a vault name that is not configured.
func VaultNotFound(name string) *Error {
	return newErr(ErrNotFound, ErrVaultNotFound, name)
}

// HeadingNotFound reports a heading lookup miss.
func HeadingNotFound(id, heading string) *Error {
	e := newErr(ErrNotFound, ErrHeadingNotFound, id)
	e.Heading = heading
	return e
}

// AlreadyExists reports a create or move onto an existing note.
func AlreadyExists(id string) *Error {
	return newErr(ErrConflict, ErrAlreadyExists, id)
}

// SameIdentifier reports a move whose source and destination are identical.
func SameIdentifier(id string) *Error {
	return newErr(ErrConflict, ErrSameIdentifier, id)
}

// MalformedMetadata reports a frontmatter block that cannot be decoded.
// line is 1-based within the file, or 0 when unknown.
func MalformedMetadata(line int, cause error) *Error {
	return &Error{Kind: ErrMetadata, Code: ErrMalformedMetadata, Line: line, Err: cause}
}

// MetadataTooLarge reports a payload whose serialised size breaches limit.
func MetadataTooLarge(size, limit int) *Error {
	return &Error{Kind: ErrMetadata, Code: ErrMetadataTooLarge, Size: size, Limit: limit}
}

// UnsupportedValue reports a metadata value of a type that cannot be stored.
func UnsupportedValue(key, msg string) *Error {
	return &Error{Kind: ErrMetadata, Code: ErrUnsupportedValueType, Key: key, Msg: msg}
}

// IO wraps a filesystem failure.
func IO(id string, cause error) *Error {
	e := newErr(ErrIO, ErrIO, id)
	e.Err = cause
	return e
}

// WithIdentifier fills in the identifier on a structured error that lacks one.
// Other errors are returned unchanged.
func WithIdentifier(err error, id string) error {
	var e *Error
	if errors.As(err, &e) && e.Identifier == "" {
		cp := *e
		cp.Identifier = id
		return &cp
	}
	return err
}
