package kerneldevice

import (
	"net"

	"github.com/vishvananda/netlink"

	"github.com/ttymodem/mmcore/mmerr"
)

// LinkAccessor exposes the interface attributes vishvananda/netlink
// reads from rtnetlink for net-kind candidate ports (wwan/net device
// nodes), which don't carry ENV{} uevent properties of their own the
// way tty devices do.
type LinkAccessor struct {
	attrs *netlink.LinkAttrs
}

// NewLinkAccessor looks up ifaceName (e.g. "wwan0") via rtnetlink.
func NewLinkAccessor(ifaceName string) (*LinkAccessor, error) {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return nil, mmerr.Wrap(mmerr.Failed, "link lookup: "+ifaceName, err)
	}
	return &LinkAccessor{attrs: link.Attrs()}, nil
}

func (a *LinkAccessor) PropertyString(name string) (string, bool) {
	switch name {
	case "INTERFACE":
		return a.attrs.Name, true
	case "ADDRESS":
		if a.attrs.HardwareAddr == nil {
			return "", false
		}
		return a.attrs.HardwareAddr.String(), true
	case "OPERSTATE":
		return a.attrs.OperState.String(), true
	default:
		return "", false
	}
}

func (a *LinkAccessor) PropertyBool(name string) (bool, bool) {
	switch name {
	case "UP":
		return a.attrs.Flags&net.FlagUp != 0, true
	case "MULTICAST":
		return a.attrs.Flags&net.FlagMulticast != 0, true
	default:
		return false, false
	}
}

func (a *LinkAccessor) PropertyUint32(name string) (uint32, bool) {
	switch name {
	case "MTU":
		return uint32(a.attrs.MTU), true
	case "IFINDEX":
		return uint32(a.attrs.Index), true
	default:
		return 0, false
	}
}
