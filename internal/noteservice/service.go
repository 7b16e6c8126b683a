// Package noteservice implements the note operations of one vault: whole-note
// edits, section edits, frontmatter edits and moves. Every mutation runs as a
// single locked read-modify-write cycle through the storage provider.
package noteservice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/checksum"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/noteid"
	"github.com/starford/notevault/internal/storage"
)

// Journal records note activity and answers history queries.
type Journal interface {
	Record(ctx context.Context, a models.Activity) error
	History(ctx context.Context, vault, note string, limit int) ([]models.Activity, error)
}

// Change describes the outcome of a mutation.
type Change struct {
	Vault   string    `json:"vault"`
	Note    noteid.ID `json:"note"`
	Status  string    `json:"status"`
	Heading string    `json:"heading,omitempty"`
	Fields  []string  `json:"fields,omitempty"`
}

// Note is the raw content of one note.
type Note struct {
	Vault   string    `json:"vault"`
	ID      noteid.ID `json:"note"`
	Content string    `json:"content"`
}

// Option configures a Service.
type Option func(*Service)

// WithDescription sets the human-readable vault description.
func WithDescription(d string) Option {
	return func(s *Service) { s.description = d }
}

// WithJournal records every successful mutation in j.
func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithLinkMode selects how references are rewritten on move.
func WithLinkMode(m LinkMode) Option {
	return func(s *Service) { s.linkMode = m }
}

// Service coordinates note operations for one vault.
type Service struct {
	name        string
	description string
	store       storage.Provider
	journal     Journal
	logger      *slog.Logger
	linkMode    LinkMode
	now         func() time.Time
}

// New creates a service for the vault called name.
func New(name string, store storage.Provider, opts ...Option) *Service {
	s := &Service{
		name:     name,
		store:    store,
		logger:   slog.Default(),
		linkMode: LinkWikilinks,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("vault", name))
	return s
}

// Name returns the vault name.
func (s *Service) Name() string { return s.name }

// Info describes the vault.
func (s *Service) Info() models.VaultInfo {
	return models.VaultInfo{Name: s.name, Description: s.description}
}

// History returns the most recent journal entries for a note, newest first.
// It is empty when no journal is configured.
func (s *Service) History(ctx context.Context, raw string, limit int) ([]models.Activity, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	if s.journal == nil {
		return []models.Activity{}, nil
	}
	return s.journal.History(ctx, s.name, id.String(), limit)
}

func (s *Service) parse(raw string) (noteid.ID, error) {
	id, err := noteid.Parse(raw)
	if err != nil {
		s.logger.Debug("rejected identifier", slog.String("identifier", raw), slog.String("error", err.Error()))
		return "", err
	}
	return id, nil
}

// mutate runs fn inside one locked read-modify-write cycle. fn returns the
// new file content, or nil to leave the note alone.
func (s *Service) mutate(ctx context.Context, id noteid.ID, op string, fn storage.UpdateFunc) (written bool, err error) {
	var next []byte
	err = s.store.Update(ctx, id, func(current []byte) ([]byte, error) {
		out, err := fn(current)
		if err != nil {
			return nil, err
		}
		next = out
		return out, nil
	})
	if err != nil {
		return false, s.fail(op, id, err)
	}
	if next == nil {
		return false, nil
	}
	s.record(ctx, op, id, next, "")
	return true, nil
}

// fail attaches the identifier to err and logs security violations.
func (s *Service) fail(op string, id noteid.ID, err error) error {
	err = apperr.WithIdentifier(err, id.String())
	if errors.Is(err, apperr.ErrSecurity) {
		s.logger.Error("sandbox violation",
			slog.Bool("security", true),
			slog.String("op", op),
			slog.String("note", id.String()),
			slog.String("error", err.Error()))
	}
	return err
}

// record logs a successful mutation and appends it to the journal. A journal
// failure never fails the operation: the note is already written.
func (s *Service) record(ctx context.Context, op string, id noteid.ID, content []byte, detail string) {
	s.logger.Info("note changed", slog.String("op", op), slog.String("note", id.String()))
	if s.journal == nil {
		return
	}
	a := models.Activity{
		Vault:     s.name,
		Note:      id.String(),
		Op:        op,
		Source:    models.SourceService,
		Detail:    detail,
		CreatedAt: s.now().UTC(),
	}
	if content != nil {
		a.Checksum = checksum.Sum(content)
	}
	if err := s.journal.Record(context.WithoutCancel(ctx), a); err != nil {
		s.logger.Warn("journal record failed",
			slog.String("op", op),
			slog.String("note", id.String()),
			slog.String("error", err.Error()))
	}
}

func (s *Service) change(id noteid.ID, status string) *Change {
	return &Change{Vault: s.name, Note: id, Status: status}
}
