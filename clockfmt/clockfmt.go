// Package clockfmt renders and parses the ISO-8601 timestamps the
// core produces when reporting a modem's network clock (the +CCLK
// read response and similar fields carried through a result.Map as a
// TypeString value). Rendering is exact; parsing is permissive via
// github.com/araddon/dateparse, grounded in the m-lab/go dependency
// surface pulled in alongside m-lab/tcp-info, matching spec.md §8's
// "round-trips through a permissive parser" property.
package clockfmt

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// Format renders t as "YYYY-MM-DDTHH:MM:SS±HH:MM", the canonical form
// this package's Parse always returns round-trip-equal output for.
func Format(t time.Time) string {
	return t.Format("2006-01-02T15:04:05-07:00")
}

// Parse accepts Format's own output as well as the looser variants a
// permissive parser must tolerate (space instead of "T", no colon in
// the offset, etc.) and returns the equivalent time.Time.
func Parse(s string) (time.Time, error) {
	t, err := dateparse.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("clockfmt: parse %q: %w", s, err)
	}
	return t, nil
}

// RoundTrips reports whether Format(t) parses back to a time.Time
// denoting the same instant as t, the invariant spec.md §8 requires
// for any valid (y,m,d,h,m,s,tz) tuple within range.
func RoundTrips(t time.Time) bool {
	parsed, err := Parse(Format(t))
	if err != nil {
		return false
	}
	return parsed.Equal(t)
}
