// Package mmtypes holds the small shared enumerations referenced by
// more than one core component (the Serial Port Engine, the Probe
// Engine and the Udev Rule Interpreter), so none of them has to import
// the others just to see a constant.
package mmtypes

// PortKind identifies the kernel device class a candidate port node
// belongs to.
type PortKind int

const (
	PortKindTty PortKind = iota
	PortKindNet
	PortKindUsbMisc
	PortKindWwan
	PortKindWdm
)

func (k PortKind) String() string {
	switch k {
	case PortKindTty:
		return "tty"
	case PortKindNet:
		return "net"
	case PortKindUsbMisc:
		return "usbmisc"
	case PortKindWwan:
		return "wwan"
	case PortKindWdm:
		return "wdm"
	default:
		return "unknown"
	}
}

// PortType is the classification the Probe Engine assigns a port once
// probing completes.
type PortType int

const (
	PortTypeUnknown PortType = iota
	PortTypeIgnored
	PortTypeAt
	PortTypeQcdm
	PortTypeQmi
	PortTypeMbim
	PortTypeGps
	PortTypeNetData
	PortTypeAudioData
)

func (t PortType) String() string {
	switch t {
	case PortTypeUnknown:
		return "unknown"
	case PortTypeIgnored:
		return "ignored"
	case PortTypeAt:
		return "at"
	case PortTypeQcdm:
		return "qcdm"
	case PortTypeQmi:
		return "qmi"
	case PortTypeMbim:
		return "mbim"
	case PortTypeGps:
		return "gps"
	case PortTypeNetData:
		return "net-data"
	case PortTypeAudioData:
		return "audio-data"
	default:
		return "unknown"
	}
}

// PortFlags is a bitset of role hints assigned to an AT port. At most
// one Primary and at most one PPP port may exist per modem instance;
// enforcing that is the owning collaborator's job, this type only
// needs to represent the set.
type PortFlags uint8

const (
	PortFlagNone       PortFlags = 0
	PortFlagPrimary    PortFlags = 1 << 0
	PortFlagSecondary  PortFlags = 1 << 1
	PortFlagPPP        PortFlags = 1 << 2
	PortFlagGPSControl PortFlags = 1 << 3
)

func (f PortFlags) Has(flag PortFlags) bool { return f&flag != 0 }

func (f PortFlags) String() string {
	if f == PortFlagNone {
		return "none"
	}
	var parts []string
	if f.Has(PortFlagPrimary) {
		parts = append(parts, "primary")
	}
	if f.Has(PortFlagSecondary) {
		parts = append(parts, "secondary")
	}
	if f.Has(PortFlagPPP) {
		parts = append(parts, "ppp")
	}
	if f.Has(PortFlagGPSControl) {
		parts = append(parts, "gps-control")
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "|" + p
	}
	return out
}

// Logger is the four-severity-plus-tag logging contract every core
// component takes as a collaborator; the core never constructs a
// Logger itself.
type Logger interface {
	Errorf(tag, format string, args ...any)
	Warnf(tag, format string, args ...any)
	Infof(tag, format string, args ...any)
	Debugf(tag, format string, args ...any)
}

// NopLogger discards everything; useful as a default in tests and
// examples.
type NopLogger struct{}

func (NopLogger) Errorf(string, string, ...any) {}
func (NopLogger) Warnf(string, string, ...any)  {}
func (NopLogger) Infof(string, string, ...any)  {}
func (NopLogger) Debugf(string, string, ...any) {}
