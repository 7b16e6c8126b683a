// Package section treats a Markdown body as a tree of heading-delimited
// sections and implements structural edits on it.
//
// Every edit reparses the body, locates the first heading whose title matches
// the query (case-insensitive, whitespace-collapsed) and returns a new body
// that keeps the line ending of the original.
// Headings inside fenced code blocks are ignored.
package section

import (
	"regexp"
	"strings"

	"github.com/starford/notevault/internal/apperr"
)

var headingRe = regexp.MustCompile(`^(#{1,6})[ \t]+(.*\S)[ \t]*$`)

// Section is one heading and the text it governs. Offsets are byte offsets
// into the body that was parsed.
type Section struct {
	Level       int
	Title       string
	HeadingLine string

	// Start is the offset of the heading line; BodyStart follows its line
	// terminator.
	Start     int
	BodyStart int
	// ContentEnd is where the direct content stops: the first child heading,
	// or End when there are no children.
	ContentEnd int
	// End is the start of the next heading of the same or a higher level, or
	// the end of the body.
	End int

	Children []*Section
}

// Tree is a parsed body. Root has level 0 and spans the whole body; its direct
// content is the preamble before the first heading.
type Tree struct {
	Root     *Section
	Headings []*Section // every heading in document order
}

// Heading is one entry of an outline.
type Heading struct {
	Level int    `json:"level"`
	Title string `json:"title"`
}

// Parse builds the section tree of body.
func Parse(body string) *Tree {
	root := &Section{End: len(body)}
	tree := &Tree{Root: root}
	stack := []*Section{root}

	for _, ln := range scanHeadings(body) {
		for len(stack) > 1 && stack[len(stack)-1].Level >= ln.level {
			stack[len(stack)-1].End = ln.start
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		s := &Section{
			Level:       ln.level,
			Title:       ln.title,
			HeadingLine: ln.text,
			Start:       ln.start,
			BodyStart:   ln.end,
			End:         len(body),
		}
		parent.Children = append(parent.Children, s)
		tree.Headings = append(tree.Headings, s)
		stack = append(stack, s)
	}

	setContentEnd(root)
	return tree
}

func setContentEnd(s *Section) {
	s.ContentEnd = s.End
	if len(s.Children) > 0 {
		s.ContentEnd = s.Children[0].Start
	}
	for _, c := range s.Children {
		setContentEnd(c)
	}
}

type headingLine struct {
	level      int
	title      string
	text       string
	start, end int
}

// scanHeadings walks body line by line, tracking fenced code blocks.
func scanHeadings(body string) []headingLine {
	var (
		out       []headingLine
		fenceChar byte
		fenceLen  int
	)
	for off := 0; off < len(body); {
		next := len(body)
		if i := strings.IndexByte(body[off:], '\n'); i >= 0 {
			next = off + i + 1
		}
		line := strings.TrimRight(body[off:next], "\r\n")

		if c, n, bare := fence(line); n > 0 {
			switch {
			case fenceLen == 0:
				fenceChar, fenceLen = c, n
			case c == fenceChar && n >= fenceLen && bare:
				fenceLen = 0
			}
		} else if fenceLen == 0 {
			if m := headingRe.FindStringSubmatch(line); m != nil {
				out = append(out, headingLine{
					level: len(m[1]),
					title: strings.TrimSpace(m[2]),
					text:  line,
					start: off,
					end:   next,
				})
			}
		}
		off = next
	}
	return out
}

// fence reports the marker character and run length when line is a code
// fence. bare is true when nothing but whitespace follows the marker, which
// a closing fence requires.
func fence(line string) (c byte, n int, bare bool) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
		return 0, 0, false
	}
	c = trimmed[0]
	if c != '`' && c != '~' {
		return 0, 0, false
	}
	for n < len(trimmed) && trimmed[n] == c {
		n++
	}
	if n < 3 {
		return 0, 0, false
	}
	return c, n, strings.TrimSpace(trimmed[n:]) == ""
}

var queryMarkerRe = regexp.MustCompile(`^#{1,6}[ \t]+`)

// Key normalises a heading title for comparison: inner whitespace is
// collapsed and case is folded.
func Key(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// QueryKey normalises a lookup query. A leading run of '#' markers followed
// by whitespace, as in "## Tasks", is dropped before Key applies; a '#' that
// is part of the title, as in "#tag", is kept.
func QueryKey(q string) string {
	return Key(queryMarkerRe.ReplaceAllString(strings.TrimSpace(q), ""))
}

// Find returns the first heading in document order whose title matches.
func (t *Tree) Find(title string) (*Section, bool) {
	key := QueryKey(title)
	if key == "" {
		return nil, false
	}
	for _, s := range t.Headings {
		if Key(s.Title) == key {
			return s, true
		}
	}
	return nil, false
}

// Outline lists every heading of body in document order.
func Outline(body string) []Heading {
	tree := Parse(body)
	out := make([]Heading, len(tree.Headings))
	for i, s := range tree.Headings {
		out[i] = Heading{Level: s.Level, Title: s.Title}
	}
	return out
}

func locate(body, title string) (*Section, error) {
	s, ok := Parse(body).Find(title)
	if !ok {
		return nil, apperr.HeadingNotFound("", title)
	}
	return s, nil
}

// InsertAfterHeading places block directly below the matched heading line,
// ahead of any existing content, separated by one blank line on each side.
func InsertAfterHeading(body, title, block string) (string, error) {
	s, err := locate(body, title)
	if err != nil {
		return "", err
	}
	eol := lineEnding(body)
	block = convertEOL(strings.Trim(block, "\r\n"), eol)
	if block == "" {
		return body, nil
	}

	var b strings.Builder
	b.WriteString(withNewline(body[:s.BodyStart], eol))
	b.WriteString(eol)
	b.WriteString(block)
	b.WriteString(eol)
	if rest := strings.TrimLeft(body[s.BodyStart:], "\r\n"); rest != "" {
		b.WriteString(eol)
		b.WriteString(rest)
	}
	return b.String(), nil
}

// AppendToSection adds block at the end of the section's direct content,
// above its first subsection.
func AppendToSection(body, title, block string) (string, error) {
	s, err := locate(body, title)
	if err != nil {
		return "", err
	}
	eol := lineEnding(body)
	block = convertEOL(strings.Trim(block, "\r\n"), eol)
	if block == "" {
		return body, nil
	}

	var b strings.Builder
	if direct := body[s.BodyStart:s.ContentEnd]; strings.TrimSpace(direct) == "" {
		b.WriteString(withNewline(body[:s.BodyStart], eol))
	} else {
		b.WriteString(strings.TrimRight(body[:s.ContentEnd], "\r\n"))
		b.WriteString(eol)
	}
	b.WriteString(eol)
	b.WriteString(block)
	b.WriteString(eol)
	if after := body[s.ContentEnd:]; after != "" {
		b.WriteString(eol)
		b.WriteString(after)
	}
	return b.String(), nil
}

// ReplaceSection swaps everything between the heading line and the end of
// the section, descendants included, for block. The heading line and all
// bytes outside the section are kept as they are.
func ReplaceSection(body, title, block string) (string, error) {
	s, err := locate(body, title)
	if err != nil {
		return "", err
	}
	eol := lineEnding(body)
	block = convertEOL(strings.TrimRight(block, "\r\n"), eol)
	after := body[s.End:]

	var b strings.Builder
	b.WriteString(withNewline(body[:s.BodyStart], eol))
	switch {
	case block == "" && after != "":
		b.WriteString(eol)
	case block != "" && after != "":
		b.WriteString(block)
		b.WriteString(eol + eol)
	case block != "":
		b.WriteString(block)
		b.WriteString(eol)
	}
	b.WriteString(after)
	return b.String(), nil
}

// DeleteSection removes the heading line and its whole span. Blank lines left
// at the seam are capped at one, or dropped at the end of the body.
func DeleteSection(body, title string) (string, error) {
	s, err := locate(body, title)
	if err != nil {
		return "", err
	}
	eol := lineEnding(body)
	before, after := body[:s.Start], body[s.End:]
	if trimmed := strings.TrimRight(before, "\r\n"); trimmed != "" {
		if after == "" {
			before = trimmed + eol
		} else if strings.Count(before[len(trimmed):], "\n") > 2 {
			before = trimmed + eol + eol
		}
	}
	return before + after, nil
}

// lineEnding returns the terminator of the body's first line, "\n" when the
// body has a single line.
func lineEnding(body string) string {
	if i := strings.IndexByte(body, '\n'); i > 0 && body[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// convertEOL rewrites every line break in block to eol.
func convertEOL(block, eol string) string {
	block = strings.ReplaceAll(block, "\r\n", "\n")
	if eol != "\n" {
		block = strings.ReplaceAll(block, "\n", eol)
	}
	return block
}

func withNewline(s, eol string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + eol
}
