// Package payload models raw JSON documents returned by external APIs.
//
// A [Document] is a decoded JSON object. Values are one of string, [json.Number],
// bool, []any, map[string]any or nil. Accessors check the type of every field
// and report absence rather than panicking on an unexpected shape.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNotObject is returned when a JSON body decodes to something other than an object.
var ErrNotObject = errors.New("payload is not a JSON object")

// Document is a decoded JSON object.
type Document map[string]any

// Decode parses data into a generic JSON value, keeping numbers as [json.Number].
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid JSON: trailing data")
	}
	return normalize(v), nil
}

// DecodeDocument parses data and requires the top-level value to be an object.
//
// An empty or whitespace-only body yields an empty Document.
func DecodeDocument(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}

	v, err := Decode(data)
	if err != nil {
		return nil, err
	}

	doc, ok := AsDocument(v)
	if !ok {
		return nil, ErrNotObject
	}
	return doc, nil
}

// AsDocument reports whether v is a JSON object, converting it to a Document.
func AsDocument(v any) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]any:
		return Document(m), true
	default:
		return nil, false
	}
}

// normalize converts nested objects to Document so accessors work at any depth.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		doc := make(Document, len(t))
		for k, inner := range t {
			doc[k] = normalize(inner)
		}
		return doc
	case []any:
		for i, inner := range t {
			t[i] = normalize(inner)
		}
		return t
	default:
		return v
	}
}

// Has reports whether key is present, even if its value is null.
func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// String returns the value of key if it is a string.
func (d Document) String(key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

// TrimmedString returns the trimmed value of key if it is a string with non-whitespace content.
func (d Document) TrimmedString(key string) (string, bool) {
	s, ok := d.String(key)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// StringPtr returns a pointer to the value of key if it is a string, or nil.
func (d Document) StringPtr(key string) *string {
	if s, ok := d.String(key); ok {
		return &s
	}
	return nil
}

// Int returns the value of key if it is an integral JSON number.
//
// Fractional numbers, numeric strings and booleans are rejected.
func (d Document) Int(key string) (int64, bool) {
	switch n := d[key].(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// Coerce converts the value of key to an integer, returning def when that is not possible.
//
// Numbers are truncated toward zero, integer strings are parsed and booleans map to 1 and 0.
func (d Document) Coerce(key string, def int) int {
	switch v := d[key].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		if f, err := v.Float64(); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return int(f)
		}
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

// Object returns the value of key if it is a JSON object.
func (d Document) Object(key string) (Document, bool) {
	return AsDocument(d[key])
}

// List returns the value of key if it is a JSON array.
func (d Document) List(key string) ([]any, bool) {
	l, ok := d[key].([]any)
	return l, ok
}

// Objects returns the object items of the array at key, skipping items of any other type.
//
// The bool is false when key is missing or not an array.
func (d Document) Objects(key string) ([]Document, bool) {
	l, ok := d.List(key)
	if !ok {
		return nil, false
	}
	return Objects(l), true
}

// Objects filters items down to those that are JSON objects.
func Objects(items []any) []Document {
	docs := make([]Document, 0, len(items))
	for _, item := range items {
		if doc, ok := AsDocument(item); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}
