package ir

import (
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"
)

// IRValue is a sealed interface representing configuration values after
// decoding. Only IRNull, IRString, IRInt, IRFloat, IRBool, IRArray and
// IRObject implement it, so consumers can switch on it exhaustively instead
// of inspecting arbitrary decoded Go values.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents an explicit null (YAML `~`/`null`, CUE `null`).
type IRNull struct{}

func (IRNull) irValue() {}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a non-integral number.
// Floats never reach canonical JSON; see MarshalCanonical.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an ordered sequence of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRPair is a single key/value entry of an IRObject.
type IRPair struct {
	Key   string
	Value IRValue
}

// IRObject is an ordered mapping. Declaration order is significant for
// filter documents (it decides rule order and therefore output text), so
// objects are kept as a slice of pairs rather than a Go map.
// Use SortedKeys() when a key-order-independent view is required.
type IRObject []IRPair

func (IRObject) irValue() {}

// O is a shorthand for IRPair for ergonomic construction.
// Example: IRObject{O("highway", IRString("motorway")), O("min", IRInt(5))}
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// Get returns the value stored under key.
func (obj IRObject) Get(key string) (IRValue, bool) {
	for _, p := range obj {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (obj IRObject) Has(key string) bool {
	_, ok := obj.Get(key)
	return ok
}

// Keys returns keys in declaration order.
func (obj IRObject) Keys() []string {
	keys := make([]string, 0, len(obj))
	for _, p := range obj {
		keys = append(keys, p.Key)
	}
	return keys
}

// Set replaces the value under key or appends a new pair.
// Used by decoders when a later YAML merge key overrides an earlier entry.
func (obj IRObject) Set(key string, value IRValue) IRObject {
	for i, p := range obj {
		if p.Key == key {
			obj[i].Value = value
			return obj
		}
	}
	return append(obj, IRPair{Key: key, Value: value})
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj IRObject) SortedKeys() []string {
	keys := obj.Keys()
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// KindOf returns a short human-readable name of the value's shape,
// used in configuration error messages.
func KindOf(v IRValue) string {
	switch v.(type) {
	case nil:
		return "missing"
	case IRNull:
		return "null"
	case IRString:
		return "string"
	case IRInt:
		return "int"
	case IRFloat:
		return "float"
	case IRBool:
		return "bool"
	case IRArray:
		return "list"
	case IRObject:
		return "mapping"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// ScalarText renders a scalar the way it appeared in the document.
// Returns false for lists, mappings and missing values.
func ScalarText(v IRValue) (string, bool) {
	switch val := v.(type) {
	case IRNull:
		return "null", true
	case IRString:
		return string(val), true
	case IRInt:
		return strconv.FormatInt(int64(val), 10), true
	case IRFloat:
		return strconv.FormatFloat(float64(val), 'f', -1, 64), true
	case IRBool:
		return strconv.FormatBool(bool(val)), true
	default:
		return "", false
	}
}

// StringList converts a list of scalars into strings.
// A single scalar is accepted as a one-element list.
func StringList(v IRValue) ([]string, error) {
	switch val := v.(type) {
	case nil, IRNull:
		return nil, nil
	case IRArray:
		out := make([]string, 0, len(val))
		for i, elem := range val {
			s, ok := ScalarText(elem)
			if !ok {
				return nil, fmt.Errorf("[%d]: expected scalar, got %s", i, KindOf(elem))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, ok := ScalarText(val)
		if !ok {
			return nil, fmt.Errorf("expected list of strings, got %s", KindOf(v))
		}
		return []string{s}, nil
	}
}
