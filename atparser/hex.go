package atparser

import (
	"encoding/hex"

	"github.com/ttymodem/mmcore/mmerr"
)

// HexToBytes decodes an even-length hex string (as several AT
// responses encode IMSI/ICCID/byte-string fields) into its raw bytes.
// An odd-length or non-hex input is InvalidArguments, never a panic.
func HexToBytes(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, mmerr.New(mmerr.InvalidArguments, "odd-length hex string")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, mmerr.Wrap(mmerr.InvalidArguments, "invalid hex string", err)
	}
	return b, nil
}

// BytesToHex renders b as lowercase hex. BytesToHex(HexToBytes(h)) is
// equal to h up to case, the round-trip property spec.md §8 requires.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}
