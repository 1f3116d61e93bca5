// Copyright 2026 The Hostflow Authors
// SPDX-License-Identifier: Apache-2.0

package eapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Document is a read-only view of a decoded JSON value. Accessors on a
// missing path return another missing Document, so lookups chain
// without checks:
//
//	rate, ok := document.Field("result").Index(0).Field("sampleRate").Int()
type Document struct {
	value   any
	present bool
}

// ParseDocument decodes raw as exactly one JSON value. Numbers keep
// their textual form until an accessor converts them.
func ParseDocument(raw []byte) (Document, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrPayloadParse, err)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return Document{}, fmt.Errorf("%w: trailing data after document", ErrPayloadParse)
	}
	return Document{value: value, present: true}, nil
}

// Exists reports whether the path that produced d was present. A JSON
// null is present.
func (d Document) Exists() bool {
	return d.present
}

// Value returns the underlying decoded value: map[string]any, []any,
// string, json.Number, bool, or nil.
func (d Document) Value() any {
	return d.value
}

// Field returns the named member of an object.
func (d Document) Field(name string) Document {
	object, ok := d.value.(map[string]any)
	if !ok {
		return Document{}
	}
	value, ok := object[name]
	if !ok {
		return Document{}
	}
	return Document{value: value, present: true}
}

// Index returns element i of an array.
func (d Document) Index(i int) Document {
	array, ok := d.value.([]any)
	if !ok || i < 0 || i >= len(array) {
		return Document{}
	}
	return Document{value: array[i], present: true}
}

// Len returns the number of elements of an array or members of an
// object, and 0 for anything else.
func (d Document) Len() int {
	switch value := d.value.(type) {
	case []any:
		return len(value)
	case map[string]any:
		return len(value)
	default:
		return 0
	}
}

// Items returns the elements of an array, or nil.
func (d Document) Items() []Document {
	array, ok := d.value.([]any)
	if !ok {
		return nil
	}
	items := make([]Document, len(array))
	for i, value := range array {
		items[i] = Document{value: value, present: true}
	}
	return items
}

// Text returns a string value.
func (d Document) Text() (string, bool) {
	value, ok := d.value.(string)
	return value, ok
}

// Number returns a numeric value as a float64.
func (d Document) Number() (float64, bool) {
	number, ok := d.value.(json.Number)
	if !ok {
		return 0, false
	}
	value, err := number.Float64()
	return value, err == nil
}

// Int returns a numeric value that is an integer. Fractions and
// out-of-range values fail.
func (d Document) Int() (int64, bool) {
	number, ok := d.value.(json.Number)
	if !ok {
		return 0, false
	}
	value, err := number.Int64()
	return value, err == nil
}

// Bool returns a boolean value.
func (d Document) Bool() (bool, bool) {
	value, ok := d.value.(bool)
	return value, ok
}

// Decode converts d into target using encoding/json rules.
func (d Document) Decode(target any) error {
	if !d.present {
		return fmt.Errorf("decoding document: value not present")
	}
	data, err := json.Marshal(d.value)
	if err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return json.Unmarshal(data, target)
}
