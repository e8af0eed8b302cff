// Package atport specializes a Serial Port Engine port for the AT
// text protocol: command framing, string quoting, and a blocking-style
// command_full API, per spec.md §4.4.
package atport

import (
	"context"
	"time"

	"github.com/ttymodem/mmcore/atengine"
	"github.com/ttymodem/mmcore/mmerr"
)

// Port specializes an atengine.Port for the AT protocol.
type Port struct {
	*atengine.Port
	sendLF bool
}

// New wraps an already-constructed atengine.Port.
func New(ap *atengine.Port) *Port {
	return &Port{Port: ap}
}

// SetSendLF controls whether outgoing commands are terminated with
// "\r\n" instead of the default "\r".
func (p *Port) SetSendLF(v bool) { p.sendLF = v }

func (p *Port) terminator() string {
	if p.sendLF {
		return "\r\n"
	}
	return "\r"
}

// CommandFull frames cmd with the configured terminator, sends it and
// blocks until the command reaches a terminal state, returning the
// parsed payload or the terminal error.
func (p *Port) CommandFull(ctx context.Context, cmd string, timeout time.Duration, opts atengine.SendOptions) (string, error) {
	return p.Send(ctx, []byte(cmd+p.terminator()), timeout, opts)
}

// Quote encloses b in ASCII double quotes, escaping internal quotes
// and backslashes as \" and \\. A nil input becomes the literal "".
func Quote(b []byte) []byte {
	if b == nil {
		return []byte(`""`)
	}
	out := make([]byte, 0, len(b)+2)
	out = append(out, '"')
	for _, c := range b {
		if c == '"' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	out = append(out, '"')
	return out
}

// Unquote reverses Quote. It is the caller's responsibility to ensure
// b has no embedded NUL, matching the round-trip property this helper
// is specified against.
func Unquote(b []byte) ([]byte, error) {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return nil, mmerr.New(mmerr.InvalidArguments, "not a quoted string")
	}
	inner := b[1 : len(b)-1]
	out := make([]byte, 0, len(inner))
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == '\\' && i+1 < len(inner) {
			i++
			out = append(out, inner[i])
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
