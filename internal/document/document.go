// Package document splits note bytes into a YAML frontmatter block and a
// Markdown body, and joins them back together.
package document

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/notevault/internal/apperr"
)

const delim = "---"

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

// Document is a parsed note.
type Document struct {
	// Metadata is nil when the note has no frontmatter block.
	Metadata *Metadata
	Body     string
	// HasBlock is true when the source carried a delimited block, even an
	// empty one.
	HasBlock bool
}

// Parse splits data into frontmatter and body. Only a block opening at byte
// offset 0 counts; delimiter lines later in the file belong to the body. A
// block without a closing line is treated as body text.
func Parse(data []byte) (*Document, error) {
	head, block, body := Split(data)
	if head == "" {
		return &Document{Body: body}, nil
	}
	meta, err := decode(block)
	if err != nil {
		return nil, err
	}
	return &Document{Metadata: meta, Body: body, HasBlock: true}, nil
}

// Split cuts data into the raw frontmatter head (delimiters, YAML and the
// blank line after the block) and the body, without decoding anything. head
// is empty when there is no block; block is the YAML text between the
// delimiters. head+body always equals data.
func Split(data []byte) (head, block, body string) {
	text := string(data)
	first, rest, ok := cutLine(text)
	if !ok || first != delim {
		return "", "", text
	}
	block, after, found := findClose(rest)
	if !found {
		return "", "", text
	}
	body = trimBlankLine(after)
	return text[:len(text)-len(body)], block, body
}

// Serialize renders d. Non-empty metadata is written as a delimited block
// followed by exactly one blank line; otherwise the body is returned as is.
func Serialize(d *Document) ([]byte, error) {
	if d.Metadata.Len() == 0 {
		return []byte(d.Body), nil
	}
	encoded, err := d.Metadata.Encode()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(encoded) + len(d.Body) + 16)
	buf.WriteString(delim + "\n")
	buf.Write(encoded)
	buf.WriteString(delim + "\n")
	if d.Body != "" {
		buf.WriteByte('\n')
		buf.WriteString(d.Body)
	}
	return buf.Bytes(), nil
}

// cutLine splits s at the first newline. The returned line has its LF or
// CRLF terminator removed; ok is false when s holds no newline at all.
func cutLine(s string) (line, rest string, ok bool) {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return s, "", false
	}
	return strings.TrimSuffix(s[:i], "\r"), s[i+1:], true
}

// findClose scans s line by line for the closing delimiter.
func findClose(s string) (block, after string, ok bool) {
	for off := 0; off < len(s); {
		end := strings.IndexByte(s[off:], '\n')
		next := len(s)
		if end >= 0 {
			next = off + end + 1
		}
		line := strings.TrimRight(s[off:next], "\r\n")
		if line == delim || line == "..." {
			return s[:off], s[next:], true
		}
		off = next
	}
	return "", "", false
}

func trimBlankLine(s string) string {
	switch {
	case strings.HasPrefix(s, "\r\n"):
		return s[2:]
	case strings.HasPrefix(s, "\n"):
		return s[1:]
	}
	return s
}

func decode(block string) (*Metadata, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(block), &root); err != nil {
		return nil, apperr.MalformedMetadata(errorLine(err), err)
	}
	if len(root.Content) == 0 {
		return NewMetadata(), nil
	}
	top := root.Content[0]
	if top.Kind == yaml.ScalarNode && top.ShortTag() == "!!null" {
		return NewMetadata(), nil
	}
	if top.Kind != yaml.MappingNode {
		return nil, apperr.MalformedMetadata(top.Line+1, errors.New("frontmatter must be a mapping, found "+kindName(top)))
	}
	meta, err := mappingValue(top)
	if err != nil {
		return nil, apperr.MalformedMetadata(errorLine(err), err)
	}
	return meta, nil
}

// errorLine maps a line reported by yaml.v3 inside the block to a line in the
// file, accounting for the opening delimiter. It returns 0 when unknown.
func errorLine(err error) int {
	m := yamlLineRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0
	}
	return n + 1
}
