package udevrules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGotoLabelJump covers scenario 5 of spec.md §8.
func TestGotoLabelJump(t *testing.T) {
	text := `SUBSYSTEM=="tty", GOTO="skip"
ENV{X}="1"
LABEL="skip"
ENV{Y}="1"
`
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "77-mm-test.rules"), []byte(text), 0o644))

	rs, err := Load(dir)
	require.NoError(t, err)

	tty := rs.Evaluate(map[string]string{"SUBSYSTEM": "tty"})
	assert.Equal(t, map[string]string{"Y": "1"}, tty)

	other := rs.Evaluate(map[string]string{"SUBSYSTEM": "net"})
	assert.Equal(t, map[string]string{"X": "1", "Y": "1"}, other)
}

func TestLaterSetPropertyOverrides(t *testing.T) {
	text := `SUBSYSTEM=="tty", ENV{X}="1"
SUBSYSTEM=="tty", ENV{X}="2"
`
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "78-mm-test.rules"), []byte(text), 0o644))

	rs, err := Load(dir)
	require.NoError(t, err)
	out := rs.Evaluate(map[string]string{"SUBSYSTEM": "tty"})
	assert.Equal(t, "2", out["X"])
}

func TestUnmatchedPrefixIsIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "99-other.rules"), []byte(`ENV{X}="1"`+"\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestUnresolvedLabelIsFatal(t *testing.T) {
	_, err := ParseRuleFile(`SUBSYSTEM=="tty", GOTO="missing"` + "\n")
	require.NoError(t, err) // parse alone succeeds; resolution is separate

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "77-mm-bad.rules"), []byte(`SUBSYSTEM=="tty", GOTO="missing"`+"\n"), 0o644))
	_, err = Load(dir)
	require.Error(t, err)
}

func TestAmbiguousLabelIsFatal(t *testing.T) {
	text := `SUBSYSTEM=="tty", GOTO="dup"
LABEL="dup"
LABEL="dup"
`
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "77-mm-dup.rules"), []byte(text), 0o644))
	_, err := Load(dir)
	require.Error(t, err)
}

func TestNotEqualOperator(t *testing.T) {
	text := `SUBSYSTEM!="tty", ENV{X}="1"
`
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "77-mm-neq.rules"), []byte(text), 0o644))
	rs, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{}, rs.Evaluate(map[string]string{"SUBSYSTEM": "tty"}))
	assert.Equal(t, map[string]string{"X": "1"}, rs.Evaluate(map[string]string{"SUBSYSTEM": "net"}))
}

func TestEmptyRHSIsParseError(t *testing.T) {
	_, err := ParseRuleFile(`SUBSYSTEM=="", ENV{X}="1"` + "\n")
	require.Error(t, err)
}

func TestCommentsAndBlankLinesSkipped(t *testing.T) {
	text := "# a comment\n\nSUBSYSTEM==\"tty\", ENV{X}=\"1\"\n"
	rules, err := ParseRuleFile(text)
	require.NoError(t, err)
	require.Len(t, rules, 1)
}
