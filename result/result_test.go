package result

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttymodem/mmcore/mmerr"
)

func TestAddGetRoundTrip(t *testing.T) {
	m := New()
	require.NoError(t, m.AddString("vendor", "Telit"))
	require.NoError(t, m.AddU32("rssi", 17))
	require.NoError(t, m.AddU8("bars", 3))
	require.NoError(t, m.AddByteArray("imsi", []byte{0x01, 0x02, 0x03}))
	require.NoError(t, m.AddU16Array("bands", []uint16{1, 2, 3}))

	v, err := m.GetString("vendor")
	require.NoError(t, err)
	assert.Equal(t, "Telit", v)

	n, err := m.GetU32("rssi")
	require.NoError(t, err)
	assert.EqualValues(t, 17, n)

	b, err := m.GetU8("bars")
	require.NoError(t, err)
	assert.EqualValues(t, 3, b)

	ba, err := m.GetByteArray("imsi")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, ba)

	u16, err := m.GetU16Array("bands")
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 3}, u16)
}

// TestTypeMismatchLeavesStateUnchanged covers the concrete scenario from
// spec.md §8.6: add_u32("rssi", 17); get_string("rssi") must fail with
// TypeMismatch, and a subsequent get_u32("rssi") must still return 17.
func TestTypeMismatchLeavesStateUnchanged(t *testing.T) {
	m := New()
	require.NoError(t, m.AddU32("rssi", 17))

	_, err := m.GetString("rssi")
	require.Error(t, err)
	// Not NotFound: the key exists, just under a different type.
	assert.False(t, mmerr.Is(err, mmerr.NotFound))

	n, err := m.GetU32("rssi")
	require.NoError(t, err)
	assert.EqualValues(t, 17, n, "%s", pretty.Sprint(m.Keys()))
}

func TestNotFound(t *testing.T) {
	m := New()
	_, err := m.GetString("missing")
	require.Error(t, err)
	assert.True(t, mmerr.Is(err, mmerr.NotFound))
}

func TestEmptyKeyIsInvalidArguments(t *testing.T) {
	m := New()
	err := m.AddString("", "x")
	require.Error(t, err)
	assert.True(t, mmerr.Is(err, mmerr.InvalidArguments))

	_, err = m.GetString("")
	require.Error(t, err)
	assert.True(t, mmerr.Is(err, mmerr.InvalidArguments))
}

// TestPrependOnAdd covers the "most recently added binding wins" legacy
// semantics preserved from the original result.c prepend list.
func TestPrependOnAdd(t *testing.T) {
	m := New()
	require.NoError(t, m.AddString("k", "first"))
	require.NoError(t, m.AddString("k", "second"))

	v, err := m.GetString("k")
	require.NoError(t, err)
	assert.Equal(t, "second", v)
}

func TestRefcount(t *testing.T) {
	m := New()
	assert.EqualValues(t, 1, m.Refcount())
	m2 := m.Ref()
	assert.Same(t, m, m2)
	assert.EqualValues(t, 2, m.Refcount())
	m.Unref()
	assert.EqualValues(t, 1, m.Refcount())
	m.Unref()
	assert.EqualValues(t, 0, m.Refcount())
}

func TestEqualU16SetsOrderInsensitiveSizeSensitive(t *testing.T) {
	assert.True(t, EqualU16Sets([]uint16{1, 2, 3}, []uint16{3, 1, 2}))
	assert.False(t, EqualU16Sets([]uint16{1, 2}, []uint16{1, 2, 2}))
	assert.False(t, EqualU16Sets([]uint16{1, 1, 2}, []uint16{1, 2, 2}))
	assert.True(t, EqualU16Sets(nil, nil))
}
