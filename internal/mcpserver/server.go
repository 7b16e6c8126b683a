// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes notevault operations as tools over the stdio transport.
package mcpserver

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notevault/internal/noteservice"
)

// Version is reported to MCP clients during initialisation.
var Version = "dev"

// ContractURI is the resource that serves NoteFormatContract.
const ContractURI = "notevault://note-format"

// Server wraps the MCP server with notevault tools.
type Server struct {
	mcp      *server.MCPServer
	vaults   *noteservice.Registry
	logger   *slog.Logger
	handlers map[string]server.ToolHandlerFunc
}

// New creates an MCP server with every notevault tool registered.
func New(vaults *noteservice.Registry, logger *slog.Logger) *Server {
	s := &Server{
		vaults:   vaults,
		logger:   logger,
		handlers: make(map[string]server.ToolHandlerFunc),
	}

	s.mcp = server.NewMCPServer(
		"notevault",
		Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithInstructions("Every note tool accepts an optional 'vault' argument; "+
			"call list_vaults to see what is configured. Read the note format contract "+
			"via get_note_contract or the "+ContractURI+" resource before writing notes."),
	)

	vault := mcp.WithString("vault", mcp.Description("Vault name; omit for the default vault"))
	note := mcp.WithString("note", mcp.Required(), mcp.Description("Note identifier relative to the vault root, e.g. 'Projects/Ideas' (.md optional)"))
	heading := mcp.WithString("heading", mcp.Required(), mcp.Description("Heading text; matched case-insensitively, a leading '## ' marker is ignored"))

	s.register(mcp.NewTool("list_vaults",
		mcp.WithDescription("List the configured vaults and which one is the default."),
	), s.listVaults)

	s.register(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes in a vault, optionally limited to one folder. Dot-directories are skipped."),
		vault,
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for the vault root)")),
		mcp.WithBoolean("recursive", mcp.Description("Include notes in subfolders (default true)")),
		mcp.WithString("sort",
			mcp.Description("Order of the result: path (default), name, or modified (newest first)"),
			mcp.Enum(noteservice.SortPath, noteservice.SortName, noteservice.SortModified)),
	), s.listNotes)

	s.register(mcp.NewTool("search_notes_by_tag",
		mcp.WithDescription("Find notes whose frontmatter 'tags' contain the given tags. Matching is case-insensitive and ignores a leading '#'."),
		vault,
		mcp.WithArray("tags", mcp.Required(),
			mcp.Description("Tags to look for"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithBoolean("match_all", mcp.Description("Require every tag instead of any (default false)")),
	), s.searchNotesByTag)

	s.register(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full raw content of a note, frontmatter included."),
		vault, note,
	), s.readNote)

	s.register(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Fails if the note already exists; missing folders are created."),
		vault, note,
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the note format contract")),
	), s.createNote)

	s.register(mcp.NewTool("replace_note",
		mcp.WithDescription("Replace the body of a note. The existing frontmatter is kept unless content starts with its own block."),
		vault, note,
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown body")),
	), s.replaceNote)

	s.register(mcp.NewTool("append_to_note",
		mcp.WithDescription("Append content to the end of a note."),
		vault, note,
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown to append")),
	), s.appendToNote)

	s.register(mcp.NewTool("prepend_to_note",
		mcp.WithDescription("Insert content at the start of the body, after any frontmatter."),
		vault, note,
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown to prepend")),
	), s.prependToNote)

	s.register(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note."),
		vault, note,
	), s.deleteNote)

	s.register(mcp.NewTool("move_note",
		mcp.WithDescription("Move or rename a note within a vault and optionally rewrite links that point at it."),
		vault,
		mcp.WithString("from", mcp.Required(), mcp.Description("Current note identifier")),
		mcp.WithString("to", mcp.Required(), mcp.Description("New note identifier")),
		mcp.WithBoolean("update_links", mcp.Description("Rewrite references in other notes (default true)")),
	), s.moveNote)

	s.register(mcp.NewTool("get_note_outline",
		mcp.WithDescription("List the headings of a note in document order. Headings inside fenced code blocks are ignored."),
		vault, note,
	), s.getNoteOutline)

	s.register(mcp.NewTool("insert_after_heading",
		mcp.WithDescription("Insert content directly below a heading, before its existing content."),
		vault, note, heading,
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown to insert")),
	), s.insertAfterHeading)

	s.register(mcp.NewTool("append_to_section",
		mcp.WithDescription("Append content to the end of a section's own content, above its first subsection."),
		vault, note, heading,
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown to append")),
	), s.appendToSection)

	s.register(mcp.NewTool("replace_section",
		mcp.WithDescription("Replace everything under a heading, subsections included. The heading line is kept."),
		vault, note, heading,
		mcp.WithString("content", mcp.Required(), mcp.Description("New section content")),
	), s.replaceSection)

	s.register(mcp.NewTool("delete_section",
		mcp.WithDescription("Delete a heading and everything it governs."),
		vault, note, heading,
	), s.deleteSection)

	s.register(mcp.NewTool("read_frontmatter",
		mcp.WithDescription("Read a note's YAML frontmatter as a JSON object."),
		vault, note,
	), s.readFrontmatter)

	s.register(mcp.NewTool("update_frontmatter",
		mcp.WithDescription("Merge top-level fields into a note's frontmatter, creating the block if needed. Values replace existing ones whole."),
		vault, note,
		mcp.WithObject("fields", mcp.Required(), mcp.Description("Fields to set")),
	), s.updateFrontmatter)

	s.register(mcp.NewTool("replace_frontmatter",
		mcp.WithDescription("Replace a note's whole frontmatter block."),
		vault, note,
		mcp.WithObject("fields", mcp.Required(), mcp.Description("The complete new frontmatter")),
	), s.replaceFrontmatter)

	s.register(mcp.NewTool("delete_frontmatter",
		mcp.WithDescription("Remove a note's frontmatter block, keeping the body."),
		vault, note,
	), s.deleteFrontmatter)

	s.register(mcp.NewTool("get_note_history",
		mcp.WithDescription("Recent changes to a note, newest first, including edits made outside notevault."),
		vault, note,
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default 20)")),
	), s.getNoteHistory)

	s.register(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the notevault note format contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Note Format Contract",
			mcp.WithResourceDescription("Markdown note format understood by the section and frontmatter tools."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

func (s *Server) register(tool mcp.Tool, h server.ToolHandlerFunc) {
	s.handlers[tool.Name] = h
	s.mcp.AddTool(tool, h)
}

// Serve runs the stdio transport on in/out until ctx is cancelled or in
// reaches EOF.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}
