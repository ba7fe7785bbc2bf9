package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies a cached query: an endpoint name followed by the parameters
// that select its data, e.g. Key{"admin", "users", filter}.
//
// Two keys are equal when every element encodes to the same JSON. Map keys
// are sorted by encoding/json, so equal maps compare equal regardless of
// insertion order.
type Key []any

// String returns the canonical encoding of k.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, el := range k {
		parts[i] = encodeElement(el)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func encodeElement(el any) string {
	b, err := json.Marshal(el)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprintf("%#v", el))
	}
	return string(b)
}

// Equal reports whether k and other identify the same query.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

// HasPrefix reports whether the leading elements of k equal prefix.
// The empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if encodeElement(k[i]) != encodeElement(prefix[i]) {
			return false
		}
	}
	return true
}

func (k Key) clone() Key {
	out := make(Key, len(k))
	copy(out, k)
	return out
}
