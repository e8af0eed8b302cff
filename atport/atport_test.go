package atport

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ttymodem/mmcore/atengine"
	"github.com/ttymodem/mmcore/mmtypes"
	"github.com/ttymodem/mmcore/serial"
)

func TestQuoteUnquoteRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("hello"),
		[]byte(`has "quotes" inside`),
		[]byte(`back\slash`),
		[]byte(`mixed \"escape\" already`),
		nil,
	}
	for _, c := range cases {
		q := Quote(c)
		got, err := Unquote(q)
		require.NoError(t, err)
		want := c
		if want == nil {
			want = []byte{}
		}
		require.True(t, bytes.Equal(want, got), "quote(%q) -> %q -> %q", c, q, got)
	}
}

func TestQuoteNilIsEmptyQuotedString(t *testing.T) {
	require.Equal(t, `""`, string(Quote(nil)))
}

func newTestPort(t *testing.T) (*Port, *serial.Port) {
	t.Helper()
	master, slave, err := serial.OpenPTY(nil, nil)
	require.NoError(t, err)
	require.NoError(t, slave.ConfigureAT(serial.B115200))

	ap := atengine.NewPort("pty-test", mmtypes.PortKindTty, serial.B115200, mmtypes.NopLogger{}, nil, 8)
	require.NoError(t, atengine.TestAttachRaw(ap, slave))

	p := New(ap)
	t.Cleanup(func() {
		ap.Close()
		master.Close()
	})
	return p, master
}

func TestCommandFullUsesConfiguredTerminator(t *testing.T) {
	p, master := newTestPort(t)
	p.SetSendLF(true)

	go func() {
		buf := make([]byte, 256)
		n, err := master.ReadTimeout(buf, 2*time.Second)
		require.NoError(t, err)
		require.Equal(t, "AT+CGMI\r\n", string(buf[:n]))
		master.Write([]byte("\r\nOK\r\n"))
	}()

	_, err := p.CommandFull(context.Background(), "AT+CGMI", time.Second, atengine.SendOptions{})
	require.NoError(t, err)
}

// TestReadClockParsesCCLKResponse exercises the ReadClock flow end to
// end: a +CCLK response is parsed and rendered through clockfmt into a
// result.Map, covering spec.md §8's ISO-8601 round-trip property for a
// real modem-clock read.
func TestReadClockParsesCCLKResponse(t *testing.T) {
	p, master := newTestPort(t)

	go func() {
		buf := make([]byte, 256)
		n, err := master.ReadTimeout(buf, 2*time.Second)
		require.NoError(t, err)
		require.Equal(t, "AT+CCLK?\r", string(buf[:n]))
		master.Write([]byte("\r\n+CCLK: \"24/03/15,13:45:30+08\"\r\n\r\nOK\r\n"))
	}()

	m, err := p.ReadClock(context.Background(), 2*time.Second)
	require.NoError(t, err)

	clock, err := m.GetString(ClockResultKey)
	require.NoError(t, err)
	require.Equal(t, "2024-03-15T13:45:30+02:00", clock)
}
