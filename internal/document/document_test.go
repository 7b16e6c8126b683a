package document

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notevault/internal/apperr"
)

func TestParse_Frontmatter(t *testing.T) {
	input := []byte("---\ntitle: Hello World\ntags:\n  - go\n  - notes\n---\n\n# Body\nSome text.\n")

	doc, err := Parse(input)
	require.NoError(t, err)
	require.True(t, doc.HasBlock)

	assert.Equal(t, []string{"title", "tags"}, doc.Metadata.Keys())
	title, _ := doc.Metadata.Get("title")
	assert.Equal(t, "Hello World", title)
	tags, _ := doc.Metadata.Get("tags")
	assert.Equal(t, []any{"go", "notes"}, tags)
	assert.Equal(t, "# Body\nSome text.\n", doc.Body)
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\n\nBody text.\n")

	doc, err := Parse(input)
	require.NoError(t, err)
	assert.Nil(t, doc.Metadata)
	assert.False(t, doc.HasBlock)
	assert.Equal(t, string(input), doc.Body)
}

func TestParse_DelimiterMustBeAtOffsetZero(t *testing.T) {
	input := []byte("\n---\ntitle: x\n---\nbody\n")

	doc, err := Parse(input)
	require.NoError(t, err)
	assert.Nil(t, doc.Metadata)
	assert.Equal(t, string(input), doc.Body)
}

func TestParse_UnclosedBlockIsBody(t *testing.T) {
	input := []byte("---\ntitle: x\nno closing line\n")

	doc, err := Parse(input)
	require.NoError(t, err)
	assert.Nil(t, doc.Metadata)
	assert.Equal(t, string(input), doc.Body)
}

func TestParse_LaterDelimitersBelongToBody(t *testing.T) {
	input := []byte("---\na: 1\n---\nintro\n---\nb: 2\n---\n")

	doc, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, doc.Metadata.Keys())
	assert.Equal(t, "intro\n---\nb: 2\n---\n", doc.Body)
}

func TestParse_CRLFAndDotsCloser(t *testing.T) {
	doc, err := Parse([]byte("---\r\ntitle: t\r\n...\r\n\r\nbody\r\n"))
	require.NoError(t, err)
	title, ok := doc.Metadata.Get("title")
	require.True(t, ok)
	assert.Equal(t, "t", title)
	assert.Equal(t, "body\r\n", doc.Body)
}

func TestParse_EmptyBlock(t *testing.T) {
	doc, err := Parse([]byte("---\n---\nbody\n"))
	require.NoError(t, err)
	assert.True(t, doc.HasBlock)
	assert.NotNil(t, doc.Metadata)
	assert.Equal(t, 0, doc.Metadata.Len())
	assert.Equal(t, "body\n", doc.Body)
}

func TestParse_OnlyOneBlankLineStripped(t *testing.T) {
	doc, err := Parse([]byte("---\na: 1\n---\n\n\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, "\nbody\n", doc.Body)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{name: "bad indentation", input: "---\ntitle: ok\n  bad: [\n---\nbody\n", line: 0},
		{name: "sequence at top level", input: "---\n- a\n- b\n---\nbody\n", line: 2},
		{name: "scalar at top level", input: "---\njust text\n---\n", line: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrMetadata)
			assert.ErrorIs(t, err, apperr.ErrMalformedMetadata)

			var appErr *apperr.Error
			require.True(t, errors.As(err, &appErr))
			if tt.line > 0 {
				assert.Equal(t, tt.line, appErr.Line)
			} else {
				assert.Greater(t, appErr.Line, 1, "line should point inside the block")
			}
		})
	}
}

func TestParse_TimestampsStayTimestamps(t *testing.T) {
	doc, err := Parse([]byte("---\ncreated: 2024-01-02\nquoted: \"2024-01-02\"\n---\n"))
	require.NoError(t, err)

	created, _ := doc.Metadata.Get("created")
	assert.Equal(t, Timestamp("2024-01-02"), created)
	quoted, _ := doc.Metadata.Get("quoted")
	assert.Equal(t, "2024-01-02", quoted)

	out, err := Serialize(doc)
	require.NoError(t, err)
	assert.Equal(t, "---\ncreated: 2024-01-02\nquoted: \"2024-01-02\"\n---\n", string(out))
}

func TestSerialize(t *testing.T) {
	meta := NewMetadata()
	meta.Set("title", "T")
	meta.Set("tags", []any{"a", "b"})
	nested := NewMetadata()
	nested.Set("z", 1)
	nested.Set("a", true)
	meta.Set("extra", nested)

	out, err := Serialize(&Document{Metadata: meta, Body: "# Body\n"})
	require.NoError(t, err)
	want := "---\ntitle: T\ntags:\n  - a\n  - b\nextra:\n  z: 1\n  a: true\n---\n\n# Body\n"
	assert.Equal(t, want, string(out))
}

func TestSerialize_EmptyBody(t *testing.T) {
	meta := NewMetadata()
	meta.Set("a", 1)

	out, err := Serialize(&Document{Metadata: meta})
	require.NoError(t, err)
	assert.Equal(t, "---\na: 1\n---\n", string(out))
}

func TestSerialize_NoMetadata(t *testing.T) {
	for _, meta := range []*Metadata{nil, NewMetadata()} {
		out, err := Serialize(&Document{Metadata: meta, Body: "plain\n"})
		require.NoError(t, err)
		assert.Equal(t, "plain\n", string(out))
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"---\ntitle: Hello\ncount: 3\nratio: 0.5\ndone: false\nnothing: null\n---\n\n# H\nbody\n",
		"---\nlist:\n  - 1\n  - two\n  - nested: true\nwhen: 2024-05-06T07:08:09Z\n---\n\nbody\n",
		"no metadata at all\n",
		"---\ntitle: only\n---\n",
	}
	for _, in := range inputs {
		first, err := Parse([]byte(in))
		require.NoError(t, err)
		out, err := Serialize(first)
		require.NoError(t, err)
		second, err := Parse(out)
		require.NoError(t, err)

		assert.Equal(t, first.Body, second.Body)
		if diff := cmp.Diff(first.Metadata.Map(), second.Metadata.Map()); diff != "" {
			t.Errorf("metadata changed across round trip (-first +second):\n%s", diff)
		}

		again, err := Serialize(second)
		require.NoError(t, err)
		assert.Equal(t, string(out), string(again), "serialisation must be stable")
	}
}

func TestRoundTrip_NormalisesSpacing(t *testing.T) {
	doc, err := Parse([]byte("---\ntitle:    spaced\n---\nbody\n"))
	require.NoError(t, err)
	out, err := Serialize(doc)
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: spaced\n---\n\nbody\n", string(out))
}

func TestMetadata_OrderedOps(t *testing.T) {
	m := NewMetadata()
	m.Set("b", 1)
	m.Set("a", 2)
	m.Set("b", 3)
	assert.Equal(t, []string{"b", "a"}, m.Keys())

	v, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	assert.True(t, m.Delete("b"))
	assert.False(t, m.Delete("missing"))
	assert.Equal(t, []string{"a"}, m.Keys())
}

func TestMetadata_CloneIsDeep(t *testing.T) {
	inner := NewMetadata()
	inner.Set("x", 1)
	m := NewMetadata()
	m.Set("inner", inner)
	m.Set("list", []any{"a"})

	cp := m.Clone()
	inner.Set("x", 2)
	list, _ := m.Get("list")
	list.([]any)[0] = "changed"

	assert.Equal(t, map[string]any{
		"inner": map[string]any{"x": 1},
		"list":  []any{"a"},
	}, cp.Map())
	assert.False(t, cp.Equal(m))
}

func TestMetadata_MarshalJSONKeepsOrder(t *testing.T) {
	m := NewMetadata()
	m.Set("zeta", "z")
	m.Set("alpha", []any{1, Timestamp("2024-01-02")})

	out, err := m.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"z","alpha":[1,"2024-01-02"]}`, string(out))
}

func TestMetadata_NilIsEmpty(t *testing.T) {
	var m *Metadata
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Keys())
	_, ok := m.Get("x")
	assert.False(t, ok)
	assert.True(t, m.Equal(NewMetadata()))
}

func TestSplit(t *testing.T) {
	raw := "---\ntitle:   untouched\n---\n\nbody\n"
	head, block, body := Split([]byte(raw))
	assert.Equal(t, "---\ntitle:   untouched\n---\n\n", head)
	assert.Equal(t, "title:   untouched\n", block)
	assert.Equal(t, "body\n", body)
	assert.Equal(t, raw, head+body)

	head, block, body = Split([]byte("plain\n"))
	assert.Empty(t, head)
	assert.Empty(t, block)
	assert.Equal(t, "plain\n", body)
}
