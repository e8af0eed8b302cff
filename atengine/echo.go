package atengine

import "bytes"

// stripEchoLocked attempts to consume the just-sent command bytes from
// the front of p.buf, per spec.md §4.3's echo suppression rule: "the
// raw bytes of the outgoing command, when they appear as a prefix of
// the next incoming data, are discarded; when the outgoing command did
// not include an LF but the response begins with the command followed
// by a bare CR, that CR is discarded too."
//
// Must be called with p.mu held. Three outcomes:
//   - full match: echo consumed, p.current.echoPending cleared
//   - partial match (buf is a strict prefix of echo): more bytes are
//     still arriving, keep waiting
//   - no match at all: this device doesn't echo (or already suppressed
//     it upstream); give up rather than withholding the buffer forever
func (p *Port) stripEchoLocked() {
	cmd := p.current
	if cmd == nil || cmd.echoPending == nil {
		return
	}
	echo := cmd.echoPending

	if bytes.HasPrefix(p.buf, echo) {
		p.buf = p.buf[len(echo):]
		cmd.echoPending = nil
		return
	}

	if !bytes.HasSuffix(echo, []byte("\r")) && !bytes.HasSuffix(echo, []byte("\n")) {
		withCR := append(append([]byte(nil), echo...), '\r')
		if bytes.HasPrefix(p.buf, withCR) {
			p.buf = p.buf[len(withCR):]
			cmd.echoPending = nil
			return
		}
	}

	if len(p.buf) > 0 && len(p.buf) < len(echo) && bytes.HasPrefix(echo, p.buf) {
		return // partial echo so far, wait for more
	}

	cmd.echoPending = nil // no echo ever arrived; stop waiting for one
}
