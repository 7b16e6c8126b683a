package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/document"
	"github.com/starford/notevault/internal/noteid"
)

// TagMatch is a note whose frontmatter tags satisfied a tag search.
type TagMatch struct {
	ID   noteid.ID `json:"note"`
	Tags []string  `json:"tags"`
}

// NotesByTags returns the notes whose frontmatter "tags" field carries any of
// tags, or all of them when matchAll is set. Tags compare case-insensitively
// and a leading '#' is ignored on both sides. "tags" may be a list or a single
// string. Notes that cannot be read or parsed are logged and skipped.
func (s *Service) NotesByTags(ctx context.Context, tags []string, matchAll bool) ([]TagMatch, error) {
	want := make([]string, 0, len(tags))
	for _, t := range tags {
		if k := tagKey(t); k != "" && !slices.Contains(want, k) {
			want = append(want, k)
		}
	}
	if len(want) == 0 {
		return nil, apperr.InvalidArgument("tags", "at least one non-empty tag is required")
	}

	notes, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	out := []TagMatch{}
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := s.store.Read(n.ID)
		if err != nil {
			s.logger.Warn("tag search skipped note", slog.String("note", n.ID.String()), slog.String("error", err.Error()))
			continue
		}
		doc, err := document.Parse(data)
		if err != nil {
			s.logger.Warn("tag search skipped note", slog.String("note", n.ID.String()), slog.String("error", err.Error()))
			continue
		}
		noteTags := tagsOf(doc.Metadata)
		if len(noteTags) == 0 {
			continue
		}
		have := make([]string, len(noteTags))
		for i, t := range noteTags {
			have[i] = tagKey(t)
		}
		if matchTags(have, want, matchAll) {
			out = append(out, TagMatch{ID: n.ID, Tags: noteTags})
		}
	}
	return out, nil
}

func matchTags(have, want []string, all bool) bool {
	for _, w := range want {
		found := slices.Contains(have, w)
		if all && !found {
			return false
		}
		if !all && found {
			return true
		}
	}
	return all
}

// tagsOf reads the "tags" field of meta as a list of non-empty strings.
func tagsOf(meta *document.Metadata) []string {
	if meta == nil {
		return nil
	}
	v, ok := meta.Get("tags")
	if !ok {
		return nil
	}
	var raw []string
	switch x := v.(type) {
	case string:
		raw = []string{x}
	case []any:
		for _, item := range x {
			if item != nil {
				raw = append(raw, fmt.Sprint(item))
			}
		}
	}
	out := raw[:0]
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func tagKey(t string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
}
