package kerneldevice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticAccessor(t *testing.T) {
	m := StaticAccessor{
		"SUBSYSTEM":                  "tty",
		"ID_MM_PORT_TYPE_AT_PRIMARY": "1",
		"ID_VENDOR_ID":               "0x1199",
		"ID_USB_INTERFACE_NUM":       "2",
	}

	s, ok := m.PropertyString("SUBSYSTEM")
	require.True(t, ok)
	assert.Equal(t, "tty", s)

	_, ok = m.PropertyString("MISSING")
	assert.False(t, ok)

	b, ok := m.PropertyBool("ID_MM_PORT_TYPE_AT_PRIMARY")
	require.True(t, ok)
	assert.True(t, b)

	u, ok := m.PropertyUint32("ID_VENDOR_ID")
	require.True(t, ok)
	assert.Equal(t, uint32(0x1199), u)

	n, ok := m.PropertyUint32("ID_USB_INTERFACE_NUM")
	require.True(t, ok)
	assert.Equal(t, uint32(2), n)
}

func TestMergeAccessorPrecedence(t *testing.T) {
	primary := StaticAccessor{"SUBSYSTEM": "tty"}
	fallback := StaticAccessor{"SUBSYSTEM": "net", "ID_VENDOR_ID": "0x2c7c"}
	m := MergeAccessor{primary, fallback}

	s, ok := m.PropertyString("SUBSYSTEM")
	require.True(t, ok)
	assert.Equal(t, "tty", s)

	s, ok = m.PropertyString("ID_VENDOR_ID")
	require.True(t, ok)
	assert.Equal(t, "0x2c7c", s)
}

func TestToPropertyMap(t *testing.T) {
	m := StaticAccessor{"SUBSYSTEM": "tty", "DRIVER": "option"}
	out := ToPropertyMap(m, []string{"SUBSYSTEM", "DRIVER", "MISSING"})
	assert.Equal(t, map[string]string{"SUBSYSTEM": "tty", "DRIVER": "option"}, out)
}

func TestParseUEvent(t *testing.T) {
	msg := "change@/devices/pci0000:00/0000:00:14.0/usb1/1-1/1-1:1.0/ttyUSB0\x00ACTION=change\x00DEVPATH=/devices/pci0000:00/0000:00:14.0/usb1/1-1/1-1:1.0/ttyUSB0\x00SUBSYSTEM=tty\x00ID_MM_PORT_TYPE_AT_PRIMARY=1\x00"

	path, props, ok := parseUEvent([]byte(msg))
	require.True(t, ok)
	assert.Equal(t, "/devices/pci0000:00/0000:00:14.0/usb1/1-1/1-1:1.0/ttyUSB0", path)
	assert.Equal(t, "tty", props["SUBSYSTEM"])
	assert.Equal(t, "1", props["ID_MM_PORT_TYPE_AT_PRIMARY"])
	assert.Equal(t, "change", props["ACTION"])
}

func TestParseUEventRejectsMalformed(t *testing.T) {
	_, _, ok := parseUEvent([]byte("not-a-uevent-header"))
	assert.False(t, ok)
}

func TestUEventAccessorPropertyAccessorsBeforeAnyEvent(t *testing.T) {
	a := &UEventAccessor{devpath: "/devices/x", props: map[string]string{}}
	_, ok := a.PropertyString("SUBSYSTEM")
	assert.False(t, ok)
	_, ok = a.PropertyBool("SUBSYSTEM")
	assert.False(t, ok)
	_, ok = a.PropertyUint32("ID_VENDOR_ID")
	assert.False(t, ok)
}
