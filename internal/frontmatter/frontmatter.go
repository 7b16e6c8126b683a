// Package frontmatter validates caller-supplied metadata payloads and applies
// them to parsed documents. Every operation validates first and never
// mutates its input, so a failure leaves nothing half-applied.
package frontmatter

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/starford/notevault/internal/apperr"
	"github.com/starford/notevault/internal/document"
)

// MaxSize caps the serialised YAML size of a metadata block, in bytes.
const MaxSize = 10240

// maxExactFloat is the largest magnitude at which every integer is exactly
// representable as a float64.
const maxExactFloat = 1 << 53

// Validate normalises payload into ordered metadata and checks it against the
// size, type and encoding rules. payload is a *document.Metadata or a map
// with string keys; plain maps are ordered by key.
func Validate(payload any) (*document.Metadata, error) {
	meta, err := normalizeTop(payload)
	if err != nil {
		return nil, err
	}
	if err := checkSize(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// Read returns the document's metadata. ok is false when the note has no
// block.
func Read(doc *document.Document) (meta *document.Metadata, ok bool) {
	if doc.Metadata == nil {
		return nil, false
	}
	return doc.Metadata.Clone(), true
}

// Merge overlays the top-level keys of payload onto the document's metadata,
// creating the block when absent. Values are replaced whole; lists are never
// concatenated. changed lists the keys whose value differs from before, in
// payload order; it is empty when the merge is a no-op.
func Merge(doc *document.Document, payload any) (out *document.Document, changed []string, err error) {
	patch, err := Validate(payload)
	if err != nil {
		return nil, nil, err
	}

	merged := doc.Metadata.Clone()
	if merged == nil {
		merged = document.NewMetadata()
	}
	for _, key := range patch.Keys() {
		next, _ := patch.Get(key)
		if prev, ok := merged.Get(key); ok && sameValue(prev, next) {
			continue
		}
		merged.Set(key, next)
		changed = append(changed, key)
	}
	if err := checkSize(merged); err != nil {
		return nil, nil, err
	}
	return &document.Document{Metadata: merged, Body: doc.Body, HasBlock: true}, changed, nil
}

// Replace discards the existing block and installs payload in its place.
func Replace(doc *document.Document, payload any) (*document.Document, error) {
	meta, err := Validate(payload)
	if err != nil {
		return nil, err
	}
	return &document.Document{Metadata: meta, Body: doc.Body, HasBlock: meta.Len() > 0}, nil
}

// Delete drops the metadata block; the body is left as is.
func Delete(doc *document.Document) *document.Document {
	return &document.Document{Body: doc.Body}
}

// sameValue reports whether a and b hold the same metadata value. Numbers
// compare by value, so 4 and 4.0 are equal.
func sameValue(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x.Cmp(y) == 0
	}
	switch x := a.(type) {
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !sameValue(x[i], y[i]) {
				return false
			}
		}
		return true
	case *document.Metadata:
		y, ok := b.(*document.Metadata)
		if !ok || x == nil || y == nil {
			return ok && x == y
		}
		if x.Len() != y.Len() {
			return false
		}
		for _, key := range x.Keys() {
			xv, _ := x.Get(key)
			yv, found := y.Get(key)
			if !found || !sameValue(xv, yv) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// number widens the numeric kinds metadata can hold without losing
// precision.
func number(v any) (*big.Float, bool) {
	switch x := v.(type) {
	case int:
		return new(big.Float).SetInt64(int64(x)), true
	case int64:
		return new(big.Float).SetInt64(x), true
	case uint64:
		return new(big.Float).SetUint64(x), true
	case float64:
		return big.NewFloat(x), true
	}
	return nil, false
}

func checkSize(meta *document.Metadata) error {
	encoded, err := meta.Encode()
	if err != nil {
		return apperr.UnsupportedValue("", err.Error())
	}
	if len(encoded) > MaxSize {
		return apperr.MetadataTooLarge(len(encoded), MaxSize)
	}
	return nil
}

func normalizeTop(payload any) (*document.Metadata, error) {
	if payload == nil {
		return document.NewMetadata(), nil
	}
	v, err := normalize("", payload)
	if err != nil {
		return nil, err
	}
	meta, ok := v.(*document.Metadata)
	if !ok {
		return nil, apperr.UnsupportedValue("", fmt.Sprintf("payload must be a mapping, got %T", payload))
	}
	return meta, nil
}

// normalize converts v to one of the value types document.Metadata stores.
// path names the offending key in errors, e.g. "links[2].href".
func normalize(path string, v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, document.Timestamp:
		return x, nil
	case string:
		if !utf8.ValidString(x) {
			return nil, apperr.UnsupportedValue(path, "string is not valid UTF-8")
		}
		return x, nil
	case time.Time:
		return document.NewTimestamp(x), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return document.NewTimestamp(*x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, apperr.UnsupportedValue(path, "invalid number "+x.String())
		}
		return normalizeFloat(path, f)
	case float32:
		return normalizeFloat(path, float64(x))
	case float64:
		return normalizeFloat(path, x)
	case *document.Metadata:
		if x == nil {
			return nil, nil
		}
		out := document.NewMetadata()
		for _, key := range x.Keys() {
			item, _ := x.Get(key)
			nv, err := normalizeEntry(path, key, item)
			if err != nil {
				return nil, err
			}
			out.Set(key, nv)
		}
		return out, nil
	case []any:
		return normalizeList(path, len(x), func(i int) any { return x[i] })
	case map[string]any:
		return normalizeMap(path, x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return u, nil
		}
		return int(u), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		return normalizeList(path, rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, apperr.UnsupportedValue(path, fmt.Sprintf("mapping keys must be strings, got %s", rv.Type().Key()))
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return normalizeMap(path, m)
	}
	return nil, apperr.UnsupportedValue(path, fmt.Sprintf("unsupported type %T", v))
}

func normalizeFloat(path string, f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, apperr.UnsupportedValue(path, "number must be finite")
	}
	// JSON decoders hand every number over as float64.
	if f == math.Trunc(f) && math.Abs(f) <= maxExactFloat {
		return int(f), nil
	}
	return f, nil
}

func normalizeList(path string, n int, at func(int) any) (any, error) {
	out := make([]any, n)
	for i := range n {
		v, err := normalize(fmt.Sprintf("%s[%d]", path, i), at(i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func normalizeMap(path string, m map[string]any) (any, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := document.NewMetadata()
	for _, k := range keys {
		v, err := normalizeEntry(path, k, m[k])
		if err != nil {
			return nil, err
		}
		out.Set(k, v)
	}
	return out, nil
}

func normalizeEntry(path, key string, v any) (any, error) {
	child := key
	if path != "" {
		child = path + "." + key
	}
	if key == "" {
		return nil, apperr.UnsupportedValue(path, "keys must be non-empty strings")
	}
	if !utf8.ValidString(key) {
		return nil, apperr.UnsupportedValue(child, "key is not valid UTF-8")
	}
	return normalize(child, v)
}
