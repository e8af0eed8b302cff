// Package result implements the heterogeneous, reference-counted
// key/value registry shared by the sub-protocol parsers (QCDM, WMC) to
// return parsed fields across module boundaries without losing type
// safety. It is a direct port of the prepend-on-add list semantics of
// libqcdm/src/result.c and libwmc/src/result-private.h: re-adding a key
// pushes a new binding to the front of the list, and lookup returns the
// most recently added binding for that key.
package result

import (
	"fmt"
	"sync/atomic"

	"github.com/ttymodem/mmcore/mmerr"
)

// ValueType tags the kind of data a Value holds.
type ValueType int

const (
	TypeString ValueType = iota
	TypeU8
	TypeU32
	TypeByteArray
	TypeU16Array
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeU8:
		return "u8"
	case TypeU32:
		return "u32"
	case TypeByteArray:
		return "byte-array"
	case TypeU16Array:
		return "u16-array"
	default:
		return "unknown"
	}
}

// Value is an immutable tagged union over the five supported wire
// value shapes. Once constructed, it owns its own storage: byte and
// u16 slices are copied in, never aliased from caller memory.
type Value struct {
	typ       ValueType
	str       string
	u8        uint8
	u32       uint32
	bytes     []byte
	u16s      []uint16
}

func StringValue(s string) Value    { return Value{typ: TypeString, str: s} }
func U8Value(v uint8) Value         { return Value{typ: TypeU8, u8: v} }
func U32Value(v uint32) Value       { return Value{typ: TypeU32, u32: v} }
func ByteArrayValue(b []byte) Value { return Value{typ: TypeByteArray, bytes: append([]byte(nil), b...)} }
func U16ArrayValue(u []uint16) Value {
	return Value{typ: TypeU16Array, u16s: append([]uint16(nil), u...)}
}

func (v Value) Type() ValueType { return v.typ }

type binding struct {
	key   string
	value Value
	next  *binding
}

// Map is the reference-counted registry. The zero value is not usable;
// construct with New.
type Map struct {
	refcount atomic.Int32
	first    *binding
}

// New creates a Map with a refcount of 1.
func New() *Map {
	m := &Map{}
	m.refcount.Store(1)
	return m
}

// Ref increments the refcount and returns the same Map, mirroring
// qcdm_result_ref's shared-ownership contract.
func (m *Map) Ref() *Map {
	m.refcount.Add(1)
	return m
}

// Unref decrements the refcount. The backing memory is left to the Go
// garbage collector once the last reference is released; Unref exists
// so callers can assert the ownership discipline the spec requires
// (e.g. detect use-after-unref bugs in tests), not to free memory.
func (m *Map) Unref() {
	if m.refcount.Add(-1) < 0 {
		panic("result: Unref called more times than Ref")
	}
}

// Refcount reports the current reference count, for tests.
func (m *Map) Refcount() int32 { return m.refcount.Load() }

func validateKey(key string) error {
	if key == "" {
		return mmerr.New(mmerr.InvalidArguments, "empty key")
	}
	return nil
}

func (m *Map) add(key string, v Value) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.first = &binding{key: key, value: v, next: m.first}
	return nil
}

func (m *Map) AddString(key, value string) error    { return m.add(key, StringValue(value)) }
func (m *Map) AddU8(key string, value uint8) error   { return m.add(key, U8Value(value)) }
func (m *Map) AddU32(key string, value uint32) error { return m.add(key, U32Value(value)) }
func (m *Map) AddByteArray(key string, value []byte) error {
	if len(value) == 0 {
		return mmerr.New(mmerr.InvalidArguments, "empty byte array")
	}
	return m.add(key, ByteArrayValue(value))
}
func (m *Map) AddU16Array(key string, value []uint16) error {
	if len(value) == 0 {
		return mmerr.New(mmerr.InvalidArguments, "empty u16 array")
	}
	return m.add(key, U16ArrayValue(value))
}

// find walks the prepend list, returning the first (most-recently
// added) binding for key regardless of type, so a type mismatch can be
// reported distinctly from "not found".
func (m *Map) find(key string) *binding {
	for b := m.first; b != nil; b = b.next {
		if b.key == key {
			return b
		}
	}
	return nil
}

func typeMismatch(key string, want, got ValueType) error {
	return mmerr.New(mmerr.Failed, fmt.Sprintf("key %q has type %s, not %s", key, got, want))
}

func (m *Map) GetString(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	b := m.find(key)
	if b == nil {
		return "", mmerr.New(mmerr.NotFound, key)
	}
	if b.value.typ != TypeString {
		return "", typeMismatch(key, TypeString, b.value.typ)
	}
	return b.value.str, nil
}

func (m *Map) GetU8(key string) (uint8, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	b := m.find(key)
	if b == nil {
		return 0, mmerr.New(mmerr.NotFound, key)
	}
	if b.value.typ != TypeU8 {
		return 0, typeMismatch(key, TypeU8, b.value.typ)
	}
	return b.value.u8, nil
}

func (m *Map) GetU32(key string) (uint32, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	b := m.find(key)
	if b == nil {
		return 0, mmerr.New(mmerr.NotFound, key)
	}
	if b.value.typ != TypeU32 {
		return 0, typeMismatch(key, TypeU32, b.value.typ)
	}
	return b.value.u32, nil
}

// GetByteArray returns the map-owned backing slice directly; callers
// must not mutate it. It is valid for the lifetime of the Map.
func (m *Map) GetByteArray(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	b := m.find(key)
	if b == nil {
		return nil, mmerr.New(mmerr.NotFound, key)
	}
	if b.value.typ != TypeByteArray {
		return nil, typeMismatch(key, TypeByteArray, b.value.typ)
	}
	return b.value.bytes, nil
}

func (m *Map) GetU16Array(key string) ([]uint16, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	b := m.find(key)
	if b == nil {
		return nil, mmerr.New(mmerr.NotFound, key)
	}
	if b.value.typ != TypeU16Array {
		return nil, typeMismatch(key, TypeU16Array, b.value.typ)
	}
	return b.value.u16s, nil
}

// EqualU16Sets reports whether a and b contain the same multiset of
// u16 values regardless of order, the "band array" equality spec.md
// §8 requires: order-insensitive but size-sensitive, so a duplicate in
// one slice that isn't matched by a duplicate in the other makes them
// unequal.
func EqualU16Sets(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[uint16]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

// Keys returns the set of distinct keys present, most-recently-added
// binding order first. Useful for debug printing (see result_test.go's
// use of kr/pretty).
func (m *Map) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for b := m.first; b != nil; b = b.next {
		if !seen[b.key] {
			seen[b.key] = true
			keys = append(keys, b.key)
		}
	}
	return keys
}
