// Package optional provides a tri-state JSON field: absent, explicit null,
// or a value. Partial-update request bodies need all three states so that an
// omitted field is left untouched while a null field clears the stored value.
package optional

import (
	"bytes"
	"encoding/json"
)

// Field is a JSON value that distinguishes "key not present" from
// "key present with null" from "key present with a value".
// The zero Field is absent.
type Field[T any] struct {
	present bool
	null    bool
	value   T
}

// Of returns a Field holding v.
func Of[T any](v T) Field[T] {
	return Field[T]{present: true, value: v}
}

// Null returns an explicit-null Field.
func Null[T any]() Field[T] {
	return Field[T]{present: true, null: true}
}

// Present reports whether the key appeared in the request at all.
func (f Field[T]) Present() bool { return f.present }

// IsNull reports whether the key was present with a null value.
func (f Field[T]) IsNull() bool { return f.present && f.null }

// Value returns the held value and whether one is held.
func (f Field[T]) Value() (T, bool) {
	if !f.present || f.null {
		var zero T
		return zero, false
	}
	return f.value, true
}

// UnmarshalJSON is only invoked by encoding/json when the key is present,
// which is what lets the zero Field stand for "absent".
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.null = true
		return nil
	}
	return json.Unmarshal(data, &f.value)
}

// MarshalJSON round-trips the three states; absent marshals as null too, so
// callers should pair Field with omitempty-free keys only on request types.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.present || f.null {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}
