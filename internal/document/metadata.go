package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"gopkg.in/yaml.v3"
)

// Timestamp is an ISO-8601 date or date-time kept in its textual form.
// It is written as a plain YAML timestamp scalar.
type Timestamp string

// NewTimestamp normalises t to RFC 3339 with the caller's zone offset.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.Format(time.RFC3339Nano))
}

// Metadata is an ordered mapping decoded from a frontmatter block.
//
// Values are string, int, int64, uint64, float64, bool, nil, Timestamp,
// []any or nested *Metadata. A nil *Metadata is a valid empty mapping for
// read-only methods.
type Metadata struct {
	fields []field
}

type field struct {
	key   string
	value any
}

// NewMetadata returns an empty mapping.
func NewMetadata() *Metadata {
	return &Metadata{}
}

// Len returns the number of top-level keys.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.fields)
}

// Keys returns the top-level keys in order.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.fields))
	for i, f := range m.fields {
		keys[i] = f.key
	}
	return keys
}

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	for _, f := range m.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return nil, false
}

// Set replaces the value under key in place, or appends the key.
func (m *Metadata) Set(key string, value any) {
	for i := range m.fields {
		if m.fields[i].key == key {
			m.fields[i].value = value
			return
		}
	}
	m.fields = append(m.fields, field{key: key, value: value})
}

// Delete removes key and reports whether it was present.
func (m *Metadata) Delete(key string) bool {
	for i, f := range m.fields {
		if f.key == key {
			m.fields = append(m.fields[:i], m.fields[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	out := &Metadata{fields: make([]field, len(m.fields))}
	for i, f := range m.fields {
		out.fields[i] = field{key: f.key, value: cloneValue(f.value)}
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case *Metadata:
		return x.Clone()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether both mappings hold the same keys, in the same order,
// with equal values.
func (m *Metadata) Equal(o *Metadata) bool {
	if m.Len() != o.Len() {
		return false
	}
	if m.Len() == 0 {
		return true
	}
	return reflect.DeepEqual(m.fields, o.fields)
}

// Map converts the mapping to plain Go maps and slices, recursively.
func (m *Metadata) Map() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m.fields))
	for _, f := range m.fields {
		out[f.key] = plainValue(f.value)
	}
	return out
}

func plainValue(v any) any {
	switch x := v.(type) {
	case *Metadata:
		return x.Map()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}

// Encode renders the mapping as YAML with two-space indentation. Equal
// mappings always encode to identical bytes.
func (m *Metadata) Encode() ([]byte, error) {
	node, err := m.node()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("document: encode metadata: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("document: encode metadata: %w", err)
	}
	return buf.Bytes(), nil
}

// MarshalYAML implements yaml.Marshaler, preserving key order.
func (m *Metadata) MarshalYAML() (any, error) {
	return m.node()
}

func (m *Metadata) node() (*yaml.Node, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if m == nil {
		return n, nil
	}
	for _, f := range m.fields {
		val, err := valueNode(f.value)
		if err != nil {
			return nil, fmt.Errorf("document: key %q: %w", f.key, err)
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.key}
		n.Content = append(n.Content, key, val)
	}
	return n, nil
}

func valueNode(v any) (*yaml.Node, error) {
	switch x := v.(type) {
	case *Metadata:
		return x.node()
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range x {
			child, err := valueNode(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, child)
		}
		return n, nil
	case Timestamp:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp", Value: string(x)}, nil
	default:
		n := &yaml.Node{}
		if err := n.Encode(x); err != nil {
			return nil, err
		}
		return n, nil
	}
}

// UnmarshalYAML implements yaml.Unmarshaler, preserving key order.
func (m *Metadata) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping, found %s", node.Line, kindName(node))
	}
	out, err := mappingValue(node)
	if err != nil {
		return err
	}
	*m = *out
	return nil
}

func mappingValue(node *yaml.Node) (*Metadata, error) {
	out := &Metadata{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
		}
		val, err := nodeValue(v)
		if err != nil {
			return nil, err
		}
		out.Set(k.Value, val)
	}
	return out, nil
}

func nodeValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return nodeValue(node.Alias)
	case yaml.MappingNode:
		return mappingValue(node)
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := nodeValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!timestamp":
			return Timestamp(node.Value), nil
		case "!!str":
			return node.Value, nil
		}
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported node %s", node.Line, kindName(node))
	}
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.MappingNode:
		return "a mapping"
	default:
		return "an unknown node"
	}
}

// MarshalJSON renders the mapping as a JSON object in key order.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("document: key %q: %w", f.key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
