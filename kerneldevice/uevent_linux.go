package kerneldevice

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/ttymodem/mmcore/mmerr"
)

// netlinkKobjectUevent mirrors syscall.NETLINK_KOBJECT_UEVENT, which
// some Go/syscall builds omit from their generated constant table.
const netlinkKobjectUevent = 15

// UEventAccessor is a KernelDeviceAccessor kept current by listening
// on a NETLINK_KOBJECT_UEVENT socket, the same socket family and
// message framing canonical-snapd's osutil/udev/netlink connection
// uses. Only the most recent uevent for the watched devpath is kept;
// callers needing history should consume a raw event stream instead.
type UEventAccessor struct {
	mu       sync.RWMutex
	devpath  string
	props    map[string]string
	fd       int
	closeMu  sync.Mutex
	closed   bool
}

// NewUEventAccessor opens a kernel-event socket and starts tracking
// properties for devpath (e.g. "/devices/pci0000:00/.../ttyUSB0").
// The accessor's properties stay at their zero value until the first
// matching uevent arrives; callers that need an initial snapshot
// should seed a MergeAccessor with a StaticAccessor taken from
// udevadm/sysfs.
func NewUEventAccessor(ctx context.Context, devpath string) (*UEventAccessor, error) {
	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_RAW, netlinkKobjectUevent)
	if err != nil {
		return nil, mmerr.Wrap(mmerr.Failed, "open uevent socket", err)
	}
	addr := &syscall.SockaddrNetlink{Family: syscall.AF_NETLINK, Groups: 1}
	if err := syscall.Bind(fd, addr); err != nil {
		syscall.Close(fd)
		return nil, mmerr.Wrap(mmerr.Failed, "bind uevent socket", err)
	}

	a := &UEventAccessor{devpath: devpath, props: map[string]string{}, fd: fd}
	go a.loop(ctx)
	return a, nil
}

func (a *UEventAccessor) loop(ctx context.Context) {
	go func() {
		<-ctx.Done()
		a.Close()
	}()

	buf := make([]byte, os.Getpagesize())
	for {
		n, _, err := syscall.Recvfrom(a.fd, buf, 0)
		if err != nil {
			return
		}
		path, props, ok := parseUEvent(buf[:n])
		if !ok || path != a.devpath {
			continue
		}
		a.mu.Lock()
		a.props = props
		a.mu.Unlock()
	}
}

// Close stops the listener and releases the socket. Safe to call more
// than once.
func (a *UEventAccessor) Close() error {
	a.closeMu.Lock()
	defer a.closeMu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return syscall.Close(a.fd)
}

func (a *UEventAccessor) PropertyString(name string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.props[name]
	return v, ok
}

func (a *UEventAccessor) PropertyBool(name string) (bool, bool) {
	v, ok := a.PropertyString(name)
	if !ok {
		return false, false
	}
	return v == "1" || strings.EqualFold(v, "true"), true
}

func (a *UEventAccessor) PropertyUint32(name string) (uint32, bool) {
	v, ok := a.PropertyString(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// parseUEvent splits a raw NETLINK_KOBJECT_UEVENT payload into the
// devpath from its header line ("add@/devices/...") and the NUL-
// separated ENV-style KEY=VALUE pairs that follow it. Messages that
// don't look like a kernel uevent (missing the "@" header or library
// uevents forwarded with a libudev prefix) are rejected.
func parseUEvent(msg []byte) (devpath string, props map[string]string, ok bool) {
	parts := strings.Split(string(msg), "\x00")
	if len(parts) == 0 {
		return "", nil, false
	}
	header := parts[0]
	at := strings.IndexByte(header, '@')
	if at < 0 {
		return "", nil, false
	}
	devpath = header[at+1:]
	props = make(map[string]string, len(parts)-1)
	for _, kv := range parts[1:] {
		if kv == "" {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		props[kv[:eq]] = kv[eq+1:]
	}
	return devpath, props, true
}
