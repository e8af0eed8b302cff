package atengine

import "regexp"

// UnsolicitedHandler is a registered match-and-consume callback for
// unsolicited result codes (URCs). fn is invoked synchronously from the
// reader goroutine with the submatch slice (index 0 is the whole
// match); it must not block or call back into the owning Port.
type UnsolicitedHandler struct {
	id int
	re *regexp.Regexp
	fn func(match [][]byte)
}

// dispatchHandlersLocked scans p.buf against every registered handler,
// in registration order, consuming each match as it's found and
// invoking its callback. Handlers added while a scan is in progress
// never participate in that scan: AddUnsolicited and this method share
// p.mu, so a registration literally cannot interleave with a scan — it
// becomes visible starting with the next read.
//
// Must be called with p.mu held.
func (p *Port) dispatchHandlersLocked() {
	for _, h := range p.handlers {
		for {
			loc := h.re.FindSubmatchIndex(p.buf)
			if loc == nil {
				break
			}
			match := make([][]byte, 0, len(loc)/2)
			for i := 0; i < len(loc); i += 2 {
				if loc[i] < 0 {
					match = append(match, nil)
					continue
				}
				match = append(match, append([]byte(nil), p.buf[loc[i]:loc[i+1]]...))
			}
			p.buf = append(p.buf[:loc[0]:loc[0]], p.buf[loc[1]:]...)
			h.fn(match)
		}
	}
}
