package atparser

import (
	"strconv"
	"strings"

	"github.com/ttymodem/mmcore/mmerr"
)

// ParseIntField parses a single numeric AT response field (e.g. one
// comma-separated element of a +CSQ or +CREG line) as a signed 32-bit
// integer. It tolerates leading/trailing whitespace and a trailing
// CR/LF (the framing §8's boundary tests exercise); "0", math.MinInt32
// and math.MaxInt32 all parse, while anything one past either bound,
// an empty string, or non-numeric text is InvalidArguments rather than
// a panic.
func ParseIntField(s string) (int32, error) {
	trimmed := strings.TrimSpace(strings.Trim(s, "\r\n"))
	if trimmed == "" {
		return 0, mmerr.New(mmerr.InvalidArguments, "empty integer field")
	}
	n, err := strconv.ParseInt(trimmed, 10, 32)
	if err != nil {
		return 0, mmerr.Wrap(mmerr.InvalidArguments, "not an integer: "+s, err)
	}
	return int32(n), nil
}
