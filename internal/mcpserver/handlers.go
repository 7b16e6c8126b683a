package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/models"
	"github.com/starford/notevault/internal/noteservice"
	"github.com/starford/notevault/internal/section"
)

// noteArgs are the arguments shared by every single-note tool.
type noteArgs struct {
	svc  *noteservice.Service
	note string
}

func (s *Server) target(req mcp.CallToolRequest) (noteArgs, error) {
	svc, err := s.vaults.Get(req.GetString("vault", ""))
	if err != nil {
		return noteArgs{}, err
	}
	note, err := req.RequireString("note")
	if err != nil {
		return noteArgs{}, err
	}
	return noteArgs{svc: svc, note: note}, nil
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns a failure into a tool-error result. Structured errors are
// prefixed with their category so callers can tell a missing note from a
// rejected identifier.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	msg := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) {
		msg = e.Kind.Error() + ": " + msg
	}
	s.logger.Debug("tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	return mcp.NewToolResultError(msg)
}

func (s *Server) listVaults(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(struct {
		Default string             `json:"default"`
		Vaults  []models.VaultInfo `json:"vaults"`
	}{s.vaults.Default(), s.vaults.List()})
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.vaults.Get(req.GetString("vault", ""))
	if err != nil {
		return s.toolError("list_notes", err), nil
	}
	notes, err := svc.List(ctx, noteservice.ListOptions{
		Folder:    req.GetString("folder", ""),
		Recursive: req.GetBool("recursive", true),
		Sort:      req.GetString("sort", ""),
	})
	if err != nil {
		return s.toolError("list_notes", err), nil
	}
	return jsonResult(struct {
		Vault string            `json:"vault"`
		Count int               `json:"count"`
		Notes []models.NoteInfo `json:"notes"`
	}{svc.Name(), len(notes), notes})
}

func (s *Server) searchNotesByTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.vaults.Get(req.GetString("vault", ""))
	if err != nil {
		return s.toolError("search_notes_by_tag", err), nil
	}
	tags, err := stringList(req.GetArguments(), "tags")
	if err != nil {
		return s.toolError("search_notes_by_tag", err), nil
	}
	matchAll := req.GetBool("match_all", false)
	matches, err := svc.NotesByTags(ctx, tags, matchAll)
	if err != nil {
		return s.toolError("search_notes_by_tag", err), nil
	}
	return jsonResult(struct {
		Vault    string                 `json:"vault"`
		Tags     []string               `json:"tags"`
		MatchAll bool                   `json:"match_all"`
		Count    int                    `json:"count"`
		Notes    []noteservice.TagMatch `json:"notes"`
	}{svc.Name(), tags, matchAll, len(matches), matches})
}

// stringList reads a list of strings, accepting a bare string as a
// one-element list.
func stringList(args map[string]any, key string) ([]string, error) {
	switch v := args[key].(type) {
	case nil:
		return nil, fmt.Errorf("required argument %q not found", key)
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q: item %d is not a string", key, i)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("argument %q must be a list of strings", key)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := s.target(req)
	if err != nil {
		return s.toolError("read_note", err), nil
	}
	n, err := a.svc.Read(ctx, a.note)
	if err != nil {
		return s.toolError("read_note", err), nil
	}
	return jsonResult(n)
}

// contentTool adapts a service method taking (note, content) to a handler.
func (s *Server) contentTool(name string, op func(*noteservice.Service, context.Context, string, string) (*noteservice.Change, error)) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a, err := s.target(req)
		if err != nil {
			return s.toolError(name, err), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return s.toolError(name, err), nil
		}
		c, err := op(a.svc, ctx, a.note, content)
		if err != nil {
			return s.toolError(name, err), nil
		}
		return jsonResult(c)
	}
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.contentTool("create_note", (*noteservice.Service).Create)(ctx, req)
}

func (s *Server) replaceNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.contentTool("replace_note", (*noteservice.Service).Replace)(ctx, req)
}

func (s *Server) appendToNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.contentTool("append_to_note", (*noteservice.Service).Append)(ctx, req)
}

func (s *Server) prependToNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.contentTool("prepend_to_note", (*noteservice.Service).Prepend)(ctx, req)
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := s.target(req)
	if err != nil {
		return s.toolError("delete_note", err), nil
	}
	c, err := a.svc.Delete(ctx, a.note)
	if err != nil {
		return s.toolError("delete_note", err), nil
	}
	return jsonResult(c)
}

func (s *Server) moveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.vaults.Get(req.GetString("vault", ""))
	if err != nil {
		return s.toolError("move_note", err), nil
	}
	from, err := req.RequireString("from")
	if err != nil {
		return s.toolError("move_note", err), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return s.toolError("move_note", err), nil
	}
	res, err := svc.Move(ctx, from, to, req.GetBool("update_links", true))
	if err != nil {
		return s.toolError("move_note", err), nil
	}
	return jsonResult(res)
}

func (s *Server) getNoteOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := s.target(req)
	if err != nil {
		return s.toolError("get_note_outline", err), nil
	}
	headings, err := a.svc.Outline(ctx, a.note)
	if err != nil {
		return s.toolError("get_note_outline", err), nil
	}
	return jsonResult(struct {
		Vault    string            `json:"vault"`
		Note     string            `json:"note"`
		Headings []section.Heading `json:"headings"`
	}{a.svc.Name(), a.note, headings})
}

// sectionTool adapts a service section edit taking (note, heading, content).
func (s *Server) sectionTool(name string, op func(*noteservice.Service, context.Context, string, string, string) (*noteservice.Change, error)) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a, err := s.target(req)
		if err != nil {
			return s.toolError(name, err), nil
		}
		heading, err := req.RequireString("heading")
		if err != nil {
			return s.toolError(name, err), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return s.toolError(name, err), nil
		}
		c, err := op(a.svc, ctx, a.note, heading, content)
		if err != nil {
			return s.toolError(name, err), nil
		}
		return jsonResult(c)
	}
}

func (s *Server) insertAfterHeading(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.sectionTool("insert_after_heading", (*noteservice.Service).InsertAfterHeading)(ctx, req)
}

func (s *Server) appendToSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.sectionTool("append_to_section", (*noteservice.Service).AppendToSection)(ctx, req)
}

func (s *Server) replaceSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.sectionTool("replace_section", (*noteservice.Service).ReplaceSection)(ctx, req)
}

func (s *Server) deleteSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := s.target(req)
	if err != nil {
		return s.toolError("delete_section", err), nil
	}
	heading, err := req.RequireString("heading")
	if err != nil {
		return s.toolError("delete_section", err), nil
	}
	c, err := a.svc.DeleteSection(ctx, a.note, heading)
	if err != nil {
		return s.toolError("delete_section", err), nil
	}
	return jsonResult(c)
}

func (s *Server) readFrontmatter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := s.target(req)
	if err != nil {
		return s.toolError("read_frontmatter", err), nil
	}
	view, err := a.svc.ReadFrontmatter(ctx, a.note)
	if err != nil {
		return s.toolError("read_frontmatter", err), nil
	}
	return jsonResult(view)
}

// fieldsTool adapts a frontmatter edit taking (note, payload).
func (s *Server) fieldsTool(name string, op func(*noteservice.Service, context.Context, string, any) (*noteservice.Change, error)) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a, err := s.target(req)
		if err != nil {
			return s.toolError(name, err), nil
		}
		fields, ok := req.GetArguments()["fields"]
		if !ok {
			return s.toolError(name, errors.New(`required argument "fields" not found`)), nil
		}
		c, err := op(a.svc, ctx, a.note, fields)
		if err != nil {
			return s.toolError(name, err), nil
		}
		return jsonResult(c)
	}
}

func (s *Server) updateFrontmatter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.fieldsTool("update_frontmatter", (*noteservice.Service).UpdateFrontmatter)(ctx, req)
}

func (s *Server) replaceFrontmatter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.fieldsTool("replace_frontmatter", (*noteservice.Service).ReplaceFrontmatter)(ctx, req)
}

func (s *Server) deleteFrontmatter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := s.target(req)
	if err != nil {
		return s.toolError("delete_frontmatter", err), nil
	}
	c, err := a.svc.DeleteFrontmatter(ctx, a.note)
	if err != nil {
		return s.toolError("delete_frontmatter", err), nil
	}
	return jsonResult(c)
}

func (s *Server) getNoteHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := s.target(req)
	if err != nil {
		return s.toolError("get_note_history", err), nil
	}
	entries, err := a.svc.History(ctx, a.note, req.GetInt("limit", 0))
	if err != nil {
		return s.toolError("get_note_history", err), nil
	}
	return jsonResult(struct {
		Vault   string            `json:"vault"`
		Note    string            `json:"note"`
		Entries []models.Activity `json:"entries"`
	}{a.svc.Name(), a.note, entries})
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
