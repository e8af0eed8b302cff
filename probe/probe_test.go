package probe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ttymodem/mmcore/atengine"
	"github.com/ttymodem/mmcore/mmtypes"
	"github.com/ttymodem/mmcore/pluginconfig"
	"github.com/ttymodem/mmcore/serial"
)

func newTestPort(t *testing.T) (*atengine.Port, *serial.Port) {
	t.Helper()
	master, slave, err := serial.OpenPTY(nil, nil)
	require.NoError(t, err)
	require.NoError(t, slave.ConfigureAT(serial.B115200))

	p := atengine.NewPort("pty-test", mmtypes.PortKindTty, serial.B115200, mmtypes.NopLogger{}, nil, 8)
	require.NoError(t, atengine.TestAttachRaw(p, slave))

	t.Cleanup(func() {
		p.Close()
		master.Close()
	})
	return p, master
}

// TestATProbeSucceedsOnThirdTry covers scenario 1 of spec.md §8: two
// response timeouts followed by a clean OK classifies the port AT with
// no error surfaced.
func TestATProbeSucceedsOnThirdTry(t *testing.T) {
	port, master := newTestPort(t)

	go func() {
		buf := make([]byte, 64)
		for i := 0; i < 2; i++ {
			n, err := master.ReadTimeout(buf, 2*time.Second)
			require.NoError(t, err)
			require.Equal(t, "AT\r", string(buf[:n]))
			// no response: let it time out
		}
		n, err := master.ReadTimeout(buf, 2*time.Second)
		require.NoError(t, err)
		require.Equal(t, "AT\r", string(buf[:n]))
		master.Write([]byte("\r\nOK\r\n"))
	}()

	schedule := ATSchedule(300 * time.Millisecond)
	verdict, err := Run(context.Background(), port, schedule, nil)
	require.NoError(t, err)
	require.True(t, verdict.IsAT)
}

func TestATProbeAllParseFailedIsNotAT(t *testing.T) {
	port, master := newTestPort(t)

	go func() {
		buf := make([]byte, 64)
		for i := 0; i < 3; i++ {
			_, err := master.ReadTimeout(buf, 2*time.Second)
			require.NoError(t, err)
			master.Write([]byte(`garbage "unterminated` + "\r\n"))
		}
	}()

	schedule := ATSchedule(500 * time.Millisecond)
	verdict, err := Run(context.Background(), port, schedule, nil)
	require.NoError(t, err)
	require.False(t, verdict.IsAT)
}

func TestMergeTagsLaterOverrides(t *testing.T) {
	udev := map[string]string{"ID_MM_PORT_TYPE_AT_PRIMARY": "1"}
	merged := MergeTags(udev, nil, []string{"ID_MM_PORT_TYPE_AT_PRIMARY=0"})
	require.Equal(t, "0", merged["ID_MM_PORT_TYPE_AT_PRIMARY"])
}

func TestClassifyPortPrimaryFlag(t *testing.T) {
	typ, flags := ClassifyPort(true, map[string]string{"ID_MM_PORT_TYPE_AT_PRIMARY": "1"})
	require.Equal(t, mmtypes.PortTypeAt, typ)
	require.True(t, flags.Has(mmtypes.PortFlagPrimary))
}

func TestATScheduleFromConfigUsesConfiguredAttemptsAndTimeout(t *testing.T) {
	cfg := pluginconfig.Default()
	cfg.Probe.Attempts = 5
	cfg.Probe.TimeoutMS = 250

	schedule := ATScheduleFromConfig(cfg)
	require.Len(t, schedule, 5)
	for _, e := range schedule {
		require.Equal(t, 250*time.Millisecond, e.Timeout)
		require.Equal(t, "AT\r", e.Command)
	}
}

func TestATScheduleFromConfigFallsBackOnZeroValues(t *testing.T) {
	schedule := ATScheduleFromConfig(pluginconfig.Config{})
	require.Len(t, schedule, 3)
	require.Equal(t, 3*time.Second, schedule[0].Timeout)
}
