package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the concrete type held by a Value.
type Kind string

const (
	// KindString holds a UTF-8 string scalar.
	KindString Kind = "string"
	// KindInt holds a signed 64-bit integer scalar.
	KindInt Kind = "int"
	// KindFloat holds a 64-bit floating point scalar.
	KindFloat Kind = "float"
	// KindBool holds a boolean scalar.
	KindBool Kind = "bool"
	// KindList holds an ordered sequence of values.
	KindList Kind = "list"
	// KindMap holds a string-keyed mapping of values.
	KindMap Kind = "map"
	// KindContainer holds a reference to a nested state container.
	KindContainer Kind = "container"
)

// MaxTreeDepth bounds recursion through nested values. Attribute trees are
// assumed acyclic; a graph that reaches this depth is treated as cyclic and
// rejected instead of recursing forever.
const MaxTreeDepth = 64

// Value is a closed variant over the attribute types a container can hold:
// scalars, ordered lists, string-keyed maps, and nested containers. The zero
// Value is the empty string.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
	b    bool
	list []Value
	m    map[string]Value
	c    *Container
}

// StringValue wraps a string scalar.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue wraps an integer scalar.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue wraps a float scalar.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// BoolValue wraps a boolean scalar.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// ListValue wraps an ordered sequence. The items are copied into a fresh
// backing slice; the elements themselves are not deep-copied until capture.
func ListValue(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value(nil), items...)}
}

// MapValue wraps a string-keyed mapping. The top-level map is copied.
func MapValue(entries map[string]Value) Value {
	m := make(map[string]Value, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return Value{kind: KindMap, m: m}
}

// ContainerValue wraps a nested container reference.
func ContainerValue(c *Container) Value { return Value{kind: KindContainer, c: c} }

// ValueKind returns the kind tag of the value.
func (v Value) ValueKind() Kind {
	if v.kind == "" {
		return KindString
	}
	return v.kind
}

// AsString returns the string scalar and whether the value holds one.
func (v Value) AsString() (string, bool) {
	return v.str, v.ValueKind() == KindString
}

// AsInt returns the integer scalar and whether the value holds one.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float scalar and whether the value holds one.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsBool returns the boolean scalar and whether the value holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsList returns the element sequence and whether the value holds a list.
// The returned slice is a copy of the list header; elements share backing
// structure with the value until cloned.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return append([]Value(nil), v.list...), true
}

// AsMap returns the mapping and whether the value holds one. The top-level
// map is copied.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	m := make(map[string]Value, len(v.m))
	for k, e := range v.m {
		m[k] = e
	}
	return m, true
}

// AsContainer returns the nested container and whether the value holds one.
func (v Value) AsContainer() (*Container, bool) {
	if v.kind != KindContainer {
		return nil, false
	}
	return v.c, true
}

// Clone returns a fully detached deep copy of the value. Nested containers
// are cloned into fresh instances without observers.
func (v Value) Clone() (Value, error) {
	return v.cloneDepth(0)
}

func (v Value) cloneDepth(depth int) (Value, error) {
	if depth >= MaxTreeDepth {
		return Value{}, fmt.Errorf("%w at depth %d", ErrDepthExceeded, depth)
	}
	switch v.ValueKind() {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			cloned, err := item.cloneDepth(depth + 1)
			if err != nil {
				return Value{}, err
			}
			items[i] = cloned
		}
		return Value{kind: KindList, list: items}, nil
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, item := range v.m {
			cloned, err := item.cloneDepth(depth + 1)
			if err != nil {
				return Value{}, err
			}
			m[k] = cloned
		}
		return Value{kind: KindMap, m: m}, nil
	case KindContainer:
		if v.c == nil {
			return Value{kind: KindContainer}, nil
		}
		cloned, err := v.c.cloneDepth(depth + 1)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindContainer, c: cloned}, nil
	default:
		return v, nil
	}
}

// Equal reports deep structural equality. Values of different kinds are never
// equal; int and float scalars are distinct kinds.
func (v Value) Equal(other Value) bool {
	if v.ValueKind() != other.ValueKind() {
		return false
	}
	switch v.ValueKind() {
	case KindString:
		return v.str == other.str
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindBool:
		return v.b == other.b
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, item := range v.m {
			peer, ok := other.m[k]
			if !ok || !item.Equal(peer) {
				return false
			}
		}
		return true
	case KindContainer:
		if v.c == nil || other.c == nil {
			return v.c == other.c
		}
		return v.c.equal(other.c)
	default:
		return false
	}
}

// String renders the value for display. Nested containers render their
// attribute summary one level deep.
func (v Value) String() string {
	switch v.ValueKind() {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.m[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindContainer:
		if v.c == nil {
			return "(nil container)"
		}
		return "(" + v.c.summary() + ")"
	default:
		return ""
	}
}
