package mcpserver

// NoteFormatContract describes the Markdown note format that the section and
// frontmatter tools understand.
const NoteFormatContract = `# notevault Note Format

Notes are UTF-8 Markdown files ending in ` + "`" + `.md` + "`" + ` inside a vault directory.

## Identifiers

- A note is addressed by its path relative to the vault root, with forward
  slashes: ` + "`" + `Projects/Ideas` + "`" + `. The ` + "`" + `.md` + "`" + ` extension is optional.
- Absolute paths, drive letters, backslashes, empty segments and ` + "`" + `.` + "`" + ` or
  ` + "`" + `..` + "`" + ` segments are rejected. Nothing outside the vault is reachable,
  symlinks included.
- Folders starting with a dot (` + "`" + `.obsidian` + "`" + `, ` + "`" + `.trash` + "`" + `) are never listed.

## Frontmatter

` + "```" + `markdown
---
title: Weekly standup
tags:
  - meeting-notes
created: 2025-01-20T09:00:00Z
---

Body text.
` + "```" + `

1. Frontmatter is optional. When present, the ` + "`" + `---` + "`" + ` line must be the very
   first line of the file; the block ends at the next ` + "`" + `---` + "`" + ` or ` + "`" + `...` + "`" + ` line.
2. The block must be a YAML mapping. A malformed block makes every
   frontmatter tool fail with the offending line number; body tools still work.
3. Values may be strings, numbers, booleans, null, timestamps, lists and
   nested mappings. Keys are strings.
4. ` + "`" + `update_frontmatter` + "`" + ` merges top-level keys only: a list or mapping you
   send replaces the stored one whole.
5. The serialised block may not exceed 10240 bytes.

## Sections

- ATX headings (` + "`" + `#` + "`" + ` to ` + "`" + `######` + "`" + ` followed by a space) delimit sections. A
  section runs until the next heading of the same or a higher level.
- Lines inside fenced code blocks are never headings.
- Heading lookups ignore case, leading ` + "`" + `#` + "`" + ` marks and repeated whitespace.
  When two headings match, the first one wins.
- Section edits touch only the selected section. Frontmatter and all other
  sections are kept byte for byte.

## Links

- ` + "`" + `[[target]]` + "`" + `, ` + "`" + `[[target|alias]]` + "`" + ` and ` + "`" + `[[target#heading]]` + "`" + ` link to another note by
  identifier; ` + "`" + `[label](target.md)` + "`" + ` works too.
- ` + "`" + `move_note` + "`" + ` rewrites these links across the vault unless
  ` + "`" + `update_links` + "`" + ` is false.
`
