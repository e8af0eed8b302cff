package atparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttymodem/mmcore/mmerr"
)

func TestIncompleteWithNoTerminator(t *testing.T) {
	r := Parse([]byte("AT\r\n"), nil)
	assert.Equal(t, Incomplete, r.Outcome)
}

func TestSimpleOK(t *testing.T) {
	r := Parse([]byte("\r\nOK\r\n"), nil)
	require.Equal(t, Completed, r.Outcome)
	require.NoError(t, r.Err)
}

func TestOKWithPayload(t *testing.T) {
	r := Parse([]byte("\r\nTelit\r\n\r\nOK\r\n"), nil)
	require.Equal(t, Completed, r.Outcome)
	require.NoError(t, r.Err)
	assert.Equal(t, "Telit", r.Payload)
}

func TestConnect(t *testing.T) {
	r := Parse([]byte("\r\nCONNECT 115200\r\n"), nil)
	require.Equal(t, Completed, r.Outcome)
	require.NoError(t, r.Err)
}

func TestShortErrors(t *testing.T) {
	cases := map[string]mmerr.Kind{
		"ERROR\r\n":       mmerr.Failed,
		"NO CARRIER\r\n":  mmerr.ConnectionNoCarrier,
		"NO DIALTONE\r\n": mmerr.ConnectionNoDialtone,
		"BUSY\r\n":        mmerr.ConnectionBusy,
		"NO ANSWER\r\n":   mmerr.ConnectionNoAnswer,
	}
	for input, want := range cases {
		r := Parse([]byte("\r\n"+input), nil)
		require.Equal(t, Completed, r.Outcome, input)
		require.Error(t, r.Err)
		got, ok := mmerr.Of(r.Err)
		require.True(t, ok)
		assert.Equal(t, want, got, input)
	}
}

// TestBusySubstringInsidePayloadIsNotTerminal covers the edge case from
// spec.md §4.2: a line that merely contains "BUSY" as a substring, not
// as a standalone line, must not be treated as terminal.
func TestBusySubstringInsidePayloadIsNotTerminal(t *testing.T) {
	r := Parse([]byte("\r\nLINE IS BUSY NOW\r\nOK\r\n"), nil)
	require.Equal(t, Completed, r.Outcome)
	require.NoError(t, r.Err)
	assert.Equal(t, "LINE IS BUSY NOW", r.Payload)
}

func TestExtendedCMEErrorNumeric(t *testing.T) {
	r := Parse([]byte("\r\n+CME ERROR: 11\r\n"), nil)
	require.Equal(t, Completed, r.Outcome)
	require.Error(t, r.Err)
	got, ok := mmerr.Of(r.Err)
	require.True(t, ok)
	assert.Equal(t, mmerr.MobileEquipmentKind(11), got)
}

type recordingLogger struct{ warnings []string }

func (l *recordingLogger) Warnf(tag, format string, args ...any) {
	l.warnings = append(l.warnings, tag)
}

func TestExtendedCMEErrorNickname(t *testing.T) {
	r := Parse([]byte("\r\n+CME ERROR: SIM not inserted\r\n"), nil)
	require.Equal(t, Completed, r.Outcome)
	got, ok := mmerr.Of(r.Err)
	require.True(t, ok)
	assert.Equal(t, mmerr.MobileEquipmentKind(10), got)
}

func TestExtendedCMEErrorUnknownNicknameWarns(t *testing.T) {
	log := &recordingLogger{}
	r := Parse([]byte("\r\n+CME ERROR: some future nickname\r\n"), log)
	require.Equal(t, Completed, r.Outcome)
	require.Error(t, r.Err)
	assert.NotEmpty(t, log.warnings)
}

func TestExtendedCMSError(t *testing.T) {
	r := Parse([]byte("\r\n+CMS ERROR: 310\r\n"), nil)
	got, ok := mmerr.Of(r.Err)
	require.True(t, ok)
	assert.Equal(t, mmerr.MessageKind(310), got)
}

func TestExtendedEXTError(t *testing.T) {
	r := Parse([]byte("\r\n+EXT ERROR: flash failed\r\n"), nil)
	got, ok := mmerr.Of(r.Err)
	require.True(t, ok)
	assert.Equal(t, mmerr.SerialExtKind(3), got)
}

func TestUnbalancedQuotingIsParseFailed(t *testing.T) {
	r := Parse([]byte("AT+CPBW=1,\"unterminated\r\n"), nil)
	require.Equal(t, ParseFailed, r.Outcome)
	require.Error(t, r.Err)
	assert.True(t, mmerr.Is(r.Err, mmerr.SerialParseFailed))
}

func TestBalancedQuotesIsNotParseFailed(t *testing.T) {
	r := Parse([]byte("AT+CPBW=1,\"12345\"\r\n"), nil)
	assert.Equal(t, Incomplete, r.Outcome)
}
