package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/noteid"
)

// LinkMode selects how references to a moved note are rewritten.
type LinkMode string

const (
	// LinkWikilinks rewrites [[old]], [[old|alias]], [[old#heading]],
	// [label](old) and [label](old.md).
	LinkWikilinks LinkMode = "wikilinks"
	// LinkLiteral replaces literal occurrences of the old identifier that
	// stand as a whole path: not inside a longer name or a deeper path.
	LinkLiteral LinkMode = "literal"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	mdLinkRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
)

// MoveResult describes a completed move.
type MoveResult struct {
	Vault        string    `json:"vault"`
	From         noteid.ID `json:"old_note"`
	To           noteid.ID `json:"new_note"`
	LinksUpdated int       `json:"links_updated"`
	Status       string    `json:"status"`
}

// Move renames a note and, when updateLinks is set, rewrites references to
// it in every note of the vault. Moving a note onto itself fails with
// SameIdentifier; an existing destination fails with AlreadyExists.
func (s *Service) Move(ctx context.Context, rawFrom, rawTo string, updateLinks bool) (*MoveResult, error) {
	from, err := s.parse(rawFrom)
	if err != nil {
		return nil, err
	}
	to, err := s.parse(rawTo)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, apperr.SameIdentifier(from.String())
	}

	if err := s.store.Move(ctx, from, to); err != nil {
		return nil, s.fail(models.OpMove, from, err)
	}
	content, err := s.store.Read(to)
	if err != nil {
		// The move already happened; the journal row goes without a checksum.
		s.logger.Warn("read after move failed",
			slog.String("vault", s.name),
			slog.String("note", to.String()),
			slog.String("error", err.Error()))
		content = nil
	}
	s.record(ctx, models.OpDelete, from, nil, "moved to "+to.String())
	s.record(ctx, models.OpMove, to, content, "moved from "+from.String())

	res := &MoveResult{Vault: s.name, From: from, To: to, Status: "moved"}
	if updateLinks {
		res.LinksUpdated = s.rewriteLinks(ctx, from, to)
	}
	return res, nil
}

// rewriteLinks updates references from -> to note by note, each under its own
// lock. Failures on single notes are logged and skipped.
func (s *Service) rewriteLinks(ctx context.Context, from, to noteid.ID) int {
	notes, err := s.store.List("")
	if err != nil {
		s.logger.Warn("link rewrite skipped", slog.String("note", to.String()), slog.String("error", err.Error()))
		return 0
	}

	rewrite := s.rewriter(from, to)
	updated := 0
	for _, n := range notes {
		if ctx.Err() != nil {
			s.logger.Warn("link rewrite interrupted",
				slog.String("note", to.String()),
				slog.Int("updated", updated),
				slog.String("error", ctx.Err().Error()))
			break
		}
		written, err := s.mutate(ctx, n.ID, models.OpLinks, func(current []byte) ([]byte, error) {
			next := rewrite(string(current))
			if next == string(current) {
				return nil, nil
			}
			return []byte(next), nil
		})
		if err != nil {
			s.logger.Warn("link rewrite failed", slog.String("note", n.ID.String()), slog.String("error", err.Error()))
			continue
		}
		if written {
			updated++
		}
	}
	return updated
}

func (s *Service) rewriter(from, to noteid.ID) func(string) string {
	if s.linkMode == LinkLiteral {
		return func(text string) string {
			return replaceIdentifier(text, from.String(), to.String())
		}
	}
	return func(text string) string {
		return rewriteWikilinks(text, from, to)
	}
}

// replaceIdentifier replaces old with repl wherever old is not preceded by a
// name character or '/' and not followed by a name character. A following
// '/', ".md", '|', '#', ']' or ')' still counts as a boundary.
func replaceIdentifier(text, old, repl string) string {
	if old == "" {
		return text
	}
	var b strings.Builder
	i := 0
	for {
		j := strings.Index(text[i:], old)
		if j < 0 {
			b.WriteString(text[i:])
			return b.String()
		}
		start, end := i+j, i+j+len(old)
		if boundaryBefore(text[:start]) && boundaryAfter(text[end:]) {
			b.WriteString(text[i:start])
			b.WriteString(repl)
			i = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		b.WriteString(text[i : start+size])
		i = start + size
	}
}

func boundaryBefore(prefix string) bool {
	r, _ := utf8.DecodeLastRuneInString(prefix)
	return prefix == "" || !(nameRune(r) || r == '/')
}

func boundaryAfter(suffix string) bool {
	r, _ := utf8.DecodeRuneInString(suffix)
	return suffix == "" || !nameRune(r)
}

func nameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'
}

// rewriteWikilinks retargets wikilinks and Markdown links that point at from.
// Aliases, heading anchors and an explicit .md extension are preserved.
func rewriteWikilinks(text string, from, to noteid.ID) string {
	text = wikilinkRe.ReplaceAllStringFunc(text, func(m string) string {
		inner := m[2 : len(m)-2]
		target, rest := inner, ""
		if i := strings.IndexAny(inner, "|#"); i >= 0 {
			target, rest = inner[:i], inner[i:]
		}
		if !sameNote(target, from) {
			return m
		}
		return "[[" + to.String() + rest + "]]"
	})
	return mdLinkRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := mdLinkRe.FindStringSubmatch(m)
		label, target := sub[1], sub[2]
		if !sameNote(target, from) {
			return m
		}
		ext := ""
		if n := len(target); n >= len(noteid.Ext) && strings.EqualFold(target[n-len(noteid.Ext):], noteid.Ext) {
			ext = target[n-len(noteid.Ext):]
		}
		return fmt.Sprintf("[%s](%s%s)", label, to, ext)
	})
}

func sameNote(target string, id noteid.ID) bool {
	parsed, err := noteid.Parse(target)
	return err == nil && parsed == id
}
