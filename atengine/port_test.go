package atengine

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ttymodem/mmcore/mmerr"
	"github.com/ttymodem/mmcore/mmtypes"
	"github.com/ttymodem/mmcore/serial"
)

// newTestPort opens a master/slave pseudoterminal pair (grounded in
// serial.OpenPTY) and wires the slave into a Port the same way Open()
// would, without going through a filesystem path. The master side
// plays the role of the attached modem in these tests.
func newTestPort(t *testing.T) (*Port, *serial.Port) {
	t.Helper()
	master, slave, err := serial.OpenPTY(nil, nil)
	require.NoError(t, err)
	require.NoError(t, slave.ConfigureAT(serial.B115200))

	p := NewPort("pty-test", mmtypes.PortKindTty, serial.B115200, mmtypes.NopLogger{}, nil, 8)
	require.NoError(t, TestAttachRaw(p, slave))

	t.Cleanup(func() {
		p.Close()
		master.Close()
	})
	return p, master
}

func TestSendSimpleOK(t *testing.T) {
	p, master := newTestPort(t)
	go func() {
		buf := make([]byte, 256)
		n, err := master.ReadTimeout(buf, 2*time.Second)
		require.NoError(t, err)
		require.Equal(t, "AT\r", string(buf[:n]))
		master.Write([]byte("\r\nOK\r\n"))
	}()

	payload, err := p.Send(context.Background(), []byte("AT\r"), time.Second, SendOptions{})
	require.NoError(t, err)
	require.Empty(t, payload)
}

func TestSendTimeout(t *testing.T) {
	p, master := newTestPort(t)
	defer master.Close()

	_, err := p.Send(context.Background(), []byte("AT\r"), 100*time.Millisecond, SendOptions{})
	require.Error(t, err)
	require.True(t, mmerr.Is(err, mmerr.SerialResponseTimeout))
}

// TestCancelQueuedCommandNeverTouchesDevice covers spec.md §4.3's
// normative requirement: a command still Queued when its context is
// cancelled is removed without the device ever seeing it.
func TestCancelQueuedCommandNeverTouchesDevice(t *testing.T) {
	p, master := newTestPort(t)
	defer master.Close()

	blockerCtx, cancelBlocker := context.WithCancel(context.Background())
	defer cancelBlocker()
	blockerDone := make(chan struct{})
	go func() {
		p.Send(blockerCtx, []byte("AT+BLOCK\r"), 5*time.Second, SendOptions{})
		close(blockerDone)
	}()
	// give the blocker time to become current
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Send(ctx, []byte("AT+NEVER\r"), time.Second, SendOptions{})
	require.Error(t, err)
	require.True(t, mmerr.Is(err, mmerr.Cancelled))

	cancelBlocker()
	<-blockerDone
}

// TestUnsolicitedDuringCommand covers scenario 2 of spec.md §8: a URC
// arrives interleaved with the response to an in-flight command and is
// consumed by its handler rather than corrupting the response payload.
func TestUnsolicitedDuringCommand(t *testing.T) {
	p, master := newTestPort(t)

	var got [][]byte
	done := make(chan struct{})
	p.AddUnsolicited(regexp.MustCompile(`\r\n\+CLCC: [^\r\n]*\r\n`), func(match [][]byte) {
		got = match
		close(done)
	})

	go func() {
		buf := make([]byte, 256)
		n, err := master.ReadTimeout(buf, 2*time.Second)
		require.NoError(t, err)
		require.Equal(t, "AT+CLCC\r", string(buf[:n]))
		master.Write([]byte("\r\n+CLCC: 1,1,0,0,0,\"123456789\",161\r\n\r\nOK\r\n"))
	}()

	payload, err := p.Send(context.Background(), []byte("AT+CLCC\r"), time.Second, SendOptions{})
	require.NoError(t, err)
	require.Empty(t, payload)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unsolicited handler never fired")
	}
	require.Len(t, got, 1)
}

// TestEchoSuppression covers scenario 3 of spec.md §8: the literal echo
// of the outgoing command is stripped before the parser sees the
// buffer.
func TestEchoSuppression(t *testing.T) {
	p, master := newTestPort(t)
	p.SetRemoveEcho(true)

	go func() {
		buf := make([]byte, 256)
		n, err := master.ReadTimeout(buf, 2*time.Second)
		require.NoError(t, err)
		require.Equal(t, "AT+CGMI\r", string(buf[:n]))
		master.Write([]byte("AT+CGMI\r\r\nTelit\r\n\r\nOK\r\n"))
	}()

	payload, err := p.Send(context.Background(), []byte("AT+CGMI\r"), time.Second, SendOptions{})
	require.NoError(t, err)
	require.Equal(t, "Telit", payload)
}

func TestCachedResponseServedWithoutDevice(t *testing.T) {
	p, master := newTestPort(t)

	go func() {
		buf := make([]byte, 256)
		n, err := master.ReadTimeout(buf, 2*time.Second)
		require.NoError(t, err)
		require.Equal(t, "AT+CGSN\r", string(buf[:n]))
		master.Write([]byte("\r\n123456789012345\r\n\r\nOK\r\n"))
	}()

	first, err := p.Send(context.Background(), []byte("AT+CGSN\r"), time.Second, SendOptions{Cached: true})
	require.NoError(t, err)
	require.Equal(t, "123456789012345", first)

	// Closing master here would make a second round-trip fail; the
	// second Send must be served from the cache without touching it.
	second, err := p.Send(context.Background(), []byte("AT+CGSN\r"), time.Second, SendOptions{Cached: true})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestConnectedSuspendsDispatch(t *testing.T) {
	p, master := newTestPort(t)
	defer master.Close()
	p.SetConnected(true)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err := p.Send(ctx, []byte("AT\r"), 5*time.Second, SendOptions{})
	require.Error(t, err)
	require.True(t, mmerr.Is(err, mmerr.WrongState))
}

func TestFlashAbsorbsNoCarrier(t *testing.T) {
	p, master := newTestPort(t)
	defer master.Close()

	go master.Write([]byte("\r\nNO CARRIER\r\n"))
	err := p.Flash(context.Background(), 10*time.Millisecond, true)
	require.NoError(t, err)
}

// TestFlashClearsConnectedFlag covers scenario 4 of spec.md §8: flash
// ends the data session, so dispatch resumes afterward.
func TestFlashClearsConnectedFlag(t *testing.T) {
	p, master := newTestPort(t)
	defer master.Close()

	p.SetConnected(true)
	require.True(t, p.IsConnected())

	require.NoError(t, p.Flash(context.Background(), 10*time.Millisecond, true))
	require.False(t, p.IsConnected())
}
