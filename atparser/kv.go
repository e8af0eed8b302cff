package atparser

import (
	"strings"

	"github.com/ttymodem/mmcore/mmerr"
)

// ParseKeyValues parses a comma-separated "key=value,key=value" string
// of the kind several vendor AT responses embed inside a payload line
// (e.g. a +WIND or +XYZ status dump). It tolerates spaces, tabs and
// newlines around both "=" and ",", and rejects unbalanced quoting
// (single or double) and a value that runs into the next pair without
// a separating comma, per spec.md §8's boundary behaviors.
func ParseKeyValues(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range splitTopLevel(s) {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			return nil, mmerr.New(mmerr.SerialParseFailed, "missing '=' in "+pair)
		}
		key := strings.TrimSpace(pair[:eq])
		val := strings.TrimSpace(pair[eq+1:])
		if key == "" {
			return nil, mmerr.New(mmerr.SerialParseFailed, "empty key in "+pair)
		}
		if err := checkBalancedQuotes(val); err != nil {
			return nil, err
		}
		if hasUnquotedEquals(val) {
			return nil, mmerr.New(mmerr.SerialParseFailed, "missing comma before next pair near "+val)
		}
		val = stripOuterQuotes(val)
		out[key] = val
	}
	return out, nil
}

// splitTopLevel splits s on commas that are not inside a single- or
// double-quoted span, so a quoted value may itself contain a comma
// without being treated as a pair separator.
func splitTopLevel(s string) []string {
	var parts []string
	var buf strings.Builder
	var inSingle, inDouble bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			buf.WriteByte(c)
		case c == '"' && !inSingle:
			inDouble = !inDouble
			buf.WriteByte(c)
		case c == ',' && !inSingle && !inDouble:
			parts = append(parts, buf.String())
			buf.Reset()
		case c == '\n' || c == '\t' || c == '\r':
			buf.WriteByte(' ')
		default:
			buf.WriteByte(c)
		}
	}
	parts = append(parts, buf.String())
	return parts
}

func checkBalancedQuotes(s string) error {
	var single, double int
	for _, r := range s {
		switch r {
		case '\'':
			single++
		case '"':
			double++
		}
	}
	if single%2 != 0 {
		return mmerr.New(mmerr.SerialParseFailed, "unbalanced single quote in "+s)
	}
	if double%2 != 0 {
		return mmerr.New(mmerr.SerialParseFailed, "unbalanced double quote in "+s)
	}
	return nil
}

// hasUnquotedEquals reports whether s contains an '=' outside any
// quoted span, the telltale sign of a second "key=value" pair that
// ran into this one for lack of a separating comma.
func hasUnquotedEquals(s string) bool {
	var inSingle, inDouble bool
	for _, r := range s {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case r == '=' && !inSingle && !inDouble:
			return true
		}
	}
	return false
}

func stripOuterQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
