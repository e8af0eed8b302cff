package pluginconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultParsesEmbeddedDocument(t *testing.T) {
	c := Default()
	require.EqualValues(t, 115200, c.Baud)
	require.True(t, c.RemoveEcho)
	require.Equal(t, 3, c.Probe.Attempts)
	require.Equal(t, 3*time.Second, c.ProbeTimeout())
	require.Equal(t, time.Duration(0), c.SendDelay())
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("baud: 9600\nprobe:\n    attempts: 5\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.EqualValues(t, 9600, c.Baud)
	require.Equal(t, 5, c.Probe.Attempts)
	// Fields absent from the override file keep their Default() value.
	require.True(t, c.RemoveEcho)
	require.Equal(t, 16, c.CacheCapacity)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
