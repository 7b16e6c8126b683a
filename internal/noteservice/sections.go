package noteservice

import (
	"context"

	"github.com/starford/notevault/internal/document"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/section"
)

// sectionEdit transforms a body given the heading query.
type sectionEdit func(body, heading string) (string, error)

// InsertAfterHeading places content directly below the first heading
// matching heading.
func (s *Service) InsertAfterHeading(ctx context.Context, raw, heading, content string) (*Change, error) {
	return s.editSection(ctx, raw, heading, "inserted_after_heading", func(body, h string) (string, error) {
		return section.InsertAfterHeading(body, h, content)
	})
}

// AppendToSection adds content at the end of the heading's direct content,
// above its first subsection.
func (s *Service) AppendToSection(ctx context.Context, raw, heading, content string) (*Change, error) {
	return s.editSection(ctx, raw, heading, "section_appended", func(body, h string) (string, error) {
		return section.AppendToSection(body, h, content)
	})
}

// ReplaceSection swaps the section's content, subsections included, for
// content. The heading line stays.
func (s *Service) ReplaceSection(ctx context.Context, raw, heading, content string) (*Change, error) {
	return s.editSection(ctx, raw, heading, "section_replaced", func(body, h string) (string, error) {
		return section.ReplaceSection(body, h, content)
	})
}

// DeleteSection removes the heading and everything it governs.
func (s *Service) DeleteSection(ctx context.Context, raw, heading string) (*Change, error) {
	return s.editSection(ctx, raw, heading, "section_deleted", section.DeleteSection)
}

// editSection applies edit to the body only; the frontmatter head is carried
// over untouched.
func (s *Service) editSection(ctx context.Context, raw, heading, status string, edit sectionEdit) (*Change, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	var title string
	_, err = s.mutate(ctx, id, models.OpSection, func(current []byte) ([]byte, error) {
		head, _, body := document.Split(current)
		if sec, ok := section.Parse(body).Find(heading); ok {
			title = sec.Title
		}
		next, err := edit(body, heading)
		if err != nil {
			return nil, err
		}
		if next == body {
			return nil, nil
		}
		return []byte(head + next), nil
	})
	if err != nil {
		return nil, err
	}
	c := s.change(id, status)
	c.Heading = title
	return c, nil
}
