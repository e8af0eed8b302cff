// Package atparser implements the pure function that turns an
// accumulated AT response buffer into Completed/Incomplete/ParseFailed,
// per spec.md §4.2. It recognizes both the short V.25 error dialect
// (ERROR, NO CARRIER, NO DIALTONE, BUSY, NO ANSWER) and the extended
// +CME ERROR / +CMS ERROR / +EXT ERROR dialects, including vendor
// textual nicknames in place of the numeric code.
package atparser

import (
	"strconv"
	"strings"

	"github.com/ttymodem/mmcore/mmerr"
)

// Outcome classifies the result of a single Parse call.
type Outcome int

const (
	// Incomplete means the buffer does not yet contain a recognized
	// terminator; the caller should keep reading.
	Incomplete Outcome = iota
	// Completed means a terminator (success or error) was found.
	Completed
	// ParseFailed means the buffer is structurally invalid in a way the
	// parser can detect on its own (e.g. unbalanced quoting). This is
	// the only error the parser may synthesize itself.
	ParseFailed
)

// Logger receives a warning when an unrecognized vendor error nickname
// is seen, per spec.md §9 Open Question (c). A nil Logger is valid and
// simply drops the warning.
type Logger interface {
	Warnf(tag, format string, args ...any)
}

// Response is the result of parsing an accumulated buffer.
type Response struct {
	Outcome Outcome
	// Payload holds the response text preceding the terminator line,
	// with leading/trailing blank lines trimmed. Only meaningful when
	// Outcome == Completed and Err == nil.
	Payload string
	// Err is non-nil when Outcome == Completed and the terminator was
	// an error, or when Outcome == ParseFailed.
	Err error
	// Consumed is the number of leading bytes of buf that made up this
	// response, including the terminator line and its newline. Only
	// meaningful when Outcome == Completed; the caller trims exactly
	// this many bytes from its accumulation buffer. Bytes after this
	// point were not part of this response and remain available for
	// the next command or an unsolicited handler.
	Consumed int
}

// Parse scans buf for a recognized terminator. It never mutates buf.
func Parse(buf []byte, log Logger) Response {
	text := string(buf)
	segments := strings.SplitAfter(text, "\n")

	offset := 0
	var priorLines []string
	for _, seg := range segments {
		line := strings.TrimSpace(strings.TrimRight(strings.TrimRight(seg, "\n"), "\r"))
		segLen := len(seg)

		if line == "" {
			offset += segLen
			priorLines = append(priorLines, "")
			continue
		}

		if line == "OK" || strings.HasPrefix(line, "CONNECT") {
			return Response{Outcome: Completed, Payload: joinPayload(priorLines), Consumed: offset + segLen}
		}

		if kind, ok := shortErrorKind(line); ok {
			return Response{Outcome: Completed, Err: mmerr.New(kind, line), Consumed: offset + segLen}
		}

		if err, ok := extendedError(line, log); ok {
			return Response{Outcome: Completed, Err: err, Consumed: offset + segLen}
		}

		priorLines = append(priorLines, line)
		offset += segLen
	}

	if hasUnbalancedQuotes(text) {
		return Response{Outcome: ParseFailed, Err: mmerr.New(mmerr.SerialParseFailed, "unbalanced quoting")}
	}
	return Response{Outcome: Incomplete}
}

func joinPayload(lines []string) string {
	// Drop leading/trailing blank lines but keep internal structure
	// (URC stripping already happened upstream in the serial engine).
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\r\n")
}

// shortErrorKind recognizes a standalone V.25 short-form error line. The
// caller has already ensured line came from a line boundary (CR/LF on
// both sides, per the buffer being newline-split), satisfying the
// "only terminal when it appears as a standalone line" requirement for
// BUSY embedded in payload text.
func shortErrorKind(line string) (mmerr.Kind, bool) {
	switch line {
	case "ERROR":
		return mmerr.Failed, true
	case "NO CARRIER":
		return mmerr.ConnectionNoCarrier, true
	case "NO DIALTONE":
		return mmerr.ConnectionNoDialtone, true
	case "BUSY":
		return mmerr.ConnectionBusy, true
	case "NO ANSWER":
		return mmerr.ConnectionNoAnswer, true
	default:
		return mmerr.Kind{}, false
	}
}

const (
	prefixCME = "+CME ERROR:"
	prefixCMS = "+CMS ERROR:"
	prefixEXT = "+EXT ERROR:"
)

// extendedError recognizes "+CME ERROR: <code-or-name>" and its CMS/EXT
// siblings, mapping either a numeric code or a vendor nickname to a Kind.
func extendedError(line string, log Logger) (error, bool) {
	switch {
	case strings.HasPrefix(line, prefixCME):
		return mapExtended(line[len(prefixCME):], cmeNicknames, mmerr.MobileEquipmentKind, log, "CME"), true
	case strings.HasPrefix(line, prefixCMS):
		return mapExtended(line[len(prefixCMS):], cmsNicknames, mmerr.MessageKind, log, "CMS"), true
	case strings.HasPrefix(line, prefixEXT):
		return mapExtended(line[len(prefixEXT):], extNicknames, mmerr.SerialExtKind, log, "EXT"), true
	default:
		return nil, false
	}
}

func mapExtended(rest string, nicknames map[string]int, toKind func(int) mmerr.Kind, log Logger, tag string) error {
	rest = strings.TrimSpace(rest)
	if code, err := strconv.Atoi(rest); err == nil {
		return mmerr.New(toKind(code), rest)
	}
	key := strings.ToLower(rest)
	if code, ok := nicknames[key]; ok {
		return mmerr.New(toKind(code), rest)
	}
	if log != nil {
		log.Warnf(tag, "unknown %s error nickname %q, prefer latest 3GPP mapping", tag, rest)
	}
	return mmerr.New(toKind(-1), rest)
}

// hasUnbalancedQuotes reports whether text contains an odd number of
// unescaped double quotes, which the parser treats as a structural
// parse failure rather than waiting indefinitely for more bytes.
func hasUnbalancedQuotes(text string) bool {
	count := 0
	escaped := false
	for _, r := range text {
		if escaped {
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if r == '"' {
			count++
		}
	}
	return count%2 != 0
}

// cmeNicknames maps the common 3GPP TS 27.007 §9.2 "+CME ERROR" textual
// nicknames used by several vendor dialects to their numeric codes.
// Where revisions disagree, the latest 3GPP mapping wins (Open
// Question c).
var cmeNicknames = map[string]int{
	"phone failure":              0,
	"no connection to phone":     1,
	"phone-adaptor link reserved": 2,
	"operation not allowed":      3,
	"operation not supported":    4,
	"ph-sim pin required":        5,
	"ph-fsim pin required":       6,
	"ph-fsim puk required":       7,
	"sim not inserted":           10,
	"sim pin required":           11,
	"sim puk required":           12,
	"sim failure":                13,
	"sim busy":                   14,
	"sim wrong":                  15,
	"incorrect password":         16,
	"sim pin2 required":          17,
	"sim puk2 required":          18,
	"memory full":                20,
	"invalid index":              21,
	"not found":                  22,
	"memory failure":             23,
	"text string too long":       24,
	"invalid characters in text string": 25,
	"dial string too long":       26,
	"invalid characters in dial string": 27,
	"no network service":         30,
	"network timeout":            31,
	"network not allowed - emergency calls only": 32,
	"unknown":                    100,
}

// cmsNicknames maps 3GPP TS 27.005 §3.2.5 "+CMS ERROR" nicknames.
var cmsNicknames = map[string]int{
	"sim not inserted":     310,
	"sim pin required":     311,
	"sim failure":          313,
	"memory failure":       320,
	"invalid memory index":  321,
	"memory full":          322,
	"unknown error":        500,
}

// extNicknames maps a small set of vendor-extension nicknames seen in
// the field; this table is intentionally open-ended and grows as new
// vendor dialects are identified.
var extNicknames = map[string]int{
	"no network":     1,
	"sim not ready":  2,
	"flash failed":   3,
}
