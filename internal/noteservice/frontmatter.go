package noteservice

import (
	"context"

	"github.com/starford/notevault/internal/document"
	"github.com/starford/notevault/internal/frontmatter"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/noteid"
)

// FrontmatterView is the metadata of one note.
type FrontmatterView struct {
	Vault          string             `json:"vault"`
	Note           noteid.ID          `json:"note"`
	Frontmatter    *document.Metadata `json:"frontmatter"`
	HasFrontmatter bool               `json:"has_frontmatter"`
}

// ReadFrontmatter returns a note's metadata without its body.
func (s *Service) ReadFrontmatter(_ context.Context, raw string) (*FrontmatterView, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(id)
	if err != nil {
		return nil, s.fail("read_frontmatter", id, err)
	}
	doc, err := document.Parse(data)
	if err != nil {
		return nil, s.fail("read_frontmatter", id, err)
	}
	meta, ok := frontmatter.Read(doc)
	if !ok {
		meta = document.NewMetadata()
	}
	return &FrontmatterView{Vault: s.name, Note: id, Frontmatter: meta, HasFrontmatter: ok}, nil
}

// UpdateFrontmatter merges payload into the note's metadata, top-level keys
// only. Fields lists the keys that changed; nothing is written when none did.
func (s *Service) UpdateFrontmatter(ctx context.Context, raw string, payload any) (*Change, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	if _, err := frontmatter.Validate(payload); err != nil {
		return nil, s.fail(models.OpFrontmatter, id, err)
	}

	var changed []string
	_, err = s.mutate(ctx, id, models.OpFrontmatter, func(current []byte) ([]byte, error) {
		doc, err := document.Parse(current)
		if err != nil {
			return nil, err
		}
		out, keys, err := frontmatter.Merge(doc, payload)
		if err != nil {
			return nil, err
		}
		if changed = keys; len(keys) == 0 {
			return nil, nil
		}
		return document.Serialize(out)
	})
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return s.change(id, "unchanged"), nil
	}
	c := s.change(id, "updated")
	c.Fields = changed
	return c, nil
}

// ReplaceFrontmatter installs payload as the whole metadata block.
func (s *Service) ReplaceFrontmatter(ctx context.Context, raw string, payload any) (*Change, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}
	if _, err := frontmatter.Validate(payload); err != nil {
		return nil, s.fail(models.OpFrontmatter, id, err)
	}

	var fields []string
	_, err = s.mutate(ctx, id, models.OpFrontmatter, func(current []byte) ([]byte, error) {
		doc, err := document.Parse(current)
		if err != nil {
			return nil, err
		}
		out, err := frontmatter.Replace(doc, payload)
		if err != nil {
			return nil, err
		}
		fields = out.Metadata.Keys()
		return document.Serialize(out)
	})
	if err != nil {
		return nil, err
	}
	c := s.change(id, "replaced")
	c.Fields = fields
	return c, nil
}

// DeleteFrontmatter removes the metadata block. Fields lists the removed keys.
func (s *Service) DeleteFrontmatter(ctx context.Context, raw string) (*Change, error) {
	id, err := s.parse(raw)
	if err != nil {
		return nil, err
	}

	var removed []string
	written, err := s.mutate(ctx, id, models.OpFrontmatter, func(current []byte) ([]byte, error) {
		doc, err := document.Parse(current)
		if err != nil {
			return nil, err
		}
		if !doc.HasBlock {
			return nil, nil
		}
		removed = doc.Metadata.Keys()
		return document.Serialize(frontmatter.Delete(doc))
	})
	if err != nil {
		return nil, err
	}
	if !written {
		return s.change(id, "no_frontmatter"), nil
	}
	c := s.change(id, "deleted")
	c.Fields = removed
	return c, nil
}
