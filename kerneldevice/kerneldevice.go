// Package kerneldevice supplies the Udev Rule Interpreter and the
// Probe Engine with a real source of kernel device properties,
// implementing the KernelDeviceAccessor collaborator interface from
// spec.md §6 over three backing stores: a plain in-memory map for
// tests and synthetic property sets, a NETLINK_KOBJECT_UEVENT socket
// grounded in canonical-snapd's osutil/udev/netlink connection code,
// and link attributes pulled from vishvananda/netlink for net-kind
// ports (wwan/net devices don't surface uevent ENV{} pairs the way tty
// devices do, but they do carry ifindex/MTU/operstate/address).
package kerneldevice

import (
	"strconv"
	"strings"
)

// KernelDeviceAccessor is the read-only property lookup a port
// classifier needs: string, boolean and u32-valued device properties,
// keyed by name (e.g. "SUBSYSTEM", "ID_MM_PORT_TYPE_AT_PRIMARY",
// "ID_VENDOR_ID").
type KernelDeviceAccessor interface {
	PropertyString(name string) (string, bool)
	PropertyBool(name string) (bool, bool)
	PropertyUint32(name string) (uint32, bool)
}

// StaticAccessor is a KernelDeviceAccessor backed by a fixed map,
// standing in for a real device in tests or wherever the caller
// already has a flat property set (e.g. from udevadm output).
type StaticAccessor map[string]string

func (m StaticAccessor) PropertyString(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func (m StaticAccessor) PropertyBool(name string) (bool, bool) {
	v, ok := m[name]
	if !ok {
		return false, false
	}
	return v == "1" || strings.EqualFold(v, "true"), true
}

func (m StaticAccessor) PropertyUint32(name string) (uint32, bool) {
	v, ok := m[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// MergeAccessor queries its members in order, returning the first hit.
// Used to layer a live uevent or link accessor over a static fallback
// without the caller having to know which one actually answered.
type MergeAccessor []KernelDeviceAccessor

func (m MergeAccessor) PropertyString(name string) (string, bool) {
	for _, a := range m {
		if v, ok := a.PropertyString(name); ok {
			return v, true
		}
	}
	return "", false
}

func (m MergeAccessor) PropertyBool(name string) (bool, bool) {
	for _, a := range m {
		if v, ok := a.PropertyBool(name); ok {
			return v, true
		}
	}
	return false, false
}

func (m MergeAccessor) PropertyUint32(name string) (uint32, bool) {
	for _, a := range m {
		if v, ok := a.PropertyUint32(name); ok {
			return v, true
		}
	}
	return 0, false
}

// ToPropertyMap probes keys against a and returns the hits as a flat
// string map, the shape udevrules.RuleSet.Evaluate expects. Properties
// the accessor doesn't have are simply omitted, not zero-valued.
func ToPropertyMap(a KernelDeviceAccessor, keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := a.PropertyString(k); ok {
			out[k] = v
		}
	}
	return out
}
