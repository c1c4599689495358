package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// Document is the user settings mapping exchanged between callers and the
// store. Values are JSON-compatible: bool, numbers, string, nested maps,
// slices and nil. Decoded numbers are json.Number so large integers keep
// their exact value. The store enforces no schema beyond "JSON object".
type Document map[string]any

// Clone returns a deep copy of d. Nested Documents are normalised to
// map[string]any so the copy matches what decoding would produce.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Document:
		return map[string]any(val.Clone())
	case map[string]any:
		return map[string]any(Document(val).Clone())
	case []any:
		cp := make([]any, len(val))
		for i := range val {
			cp[i] = cloneValue(val[i])
		}
		return cp
	default:
		return v
	}
}

// Equal reports whether d and other have the same canonical JSON encoding.
// Integer and float representations of the same number compare equal.
func (d Document) Equal(other Document) bool {
	a, errA := d.canonical()
	b, errB := other.canonical()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// canonical encodes d with sorted keys and no indentation.
func (d Document) canonical() ([]byte, error) {
	if d == nil {
		d = Document{}
	}
	return json.Marshal(map[string]any(d))
}

// Bool returns the boolean stored under key.
func (d Document) Bool(key string) (bool, bool) {
	v, ok := d[key].(bool)
	return v, ok
}

// String returns the string stored under key.
func (d Document) String(key string) (string, bool) {
	v, ok := d[key].(string)
	return v, ok
}

// Int returns the integral number stored under key. Fractional or
// out-of-range numbers report false.
func (d Document) Int(key string) (int, bool) {
	switch v := d[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || v < math.MinInt || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), true
		}
		f, err := v.Float64()
		if err != nil || f != math.Trunc(f) || f < math.MinInt || f > math.MaxInt {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

// Sub returns the nested mapping stored under key.
func (d Document) Sub(key string) (Document, bool) {
	switch v := d[key].(type) {
	case Document:
		return v, true
	case map[string]any:
		return Document(v), true
	}
	return nil, false
}

// Lookup returns the value at a dotted path such as "reminders.hour".
func (d Document) Lookup(path string) (any, bool) {
	var cur any = d
	for _, p := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath assigns v at a dotted path, creating intermediate objects. It
// fails when a prefix of the path holds a non-object value.
func (d Document) SetPath(path string, v any) error {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid key %q", path)
		}
	}
	cur := map[string]any(d)
	for i, p := range parts[:len(parts)-1] {
		next, ok := cur[p]
		if !ok {
			m := map[string]any{}
			cur[p] = m
			cur = m
			continue
		}
		m, ok := asMap(next)
		if !ok {
			return fmt.Errorf("%s is not an object", strings.Join(parts[:i+1], "."))
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = v
	return nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

// ParseValue reads raw as a JSON value, falling back to the literal
// string. Command-line and tool inputs use it so that "7" and "true" keep
// their types while plain words need no quoting.
func ParseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// Encode serialises d into the persisted format: a UTF-8 JSON object,
// indented with two spaces. A nil Document encodes as an empty object.
func Encode(d Document) ([]byte, error) {
	if d == nil {
		d = Document{}
	}
	b, err := json.MarshalIndent(map[string]any(d), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return append(b, '\n'), nil
}

// Decode parses persisted bytes into a Document. Anything other than a
// single JSON object, including "null", is reported as ErrCorruptData.
func Decode(b []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
	// More reports false for a stray '}' or ']', so read again and insist
	// on a clean EOF.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrCorruptData)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is %T, want object", ErrCorruptData, v)
	}
	return Document(m), nil
}
