package atparser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKeyValuesTolerantWhitespace(t *testing.T) {
	kv, err := ParseKeyValues("a = 1,\n\tb\t=\t2 , c=\"three, still\"")
	require.NoError(t, err)
	require.Equal(t, "1", kv["a"])
	require.Equal(t, "2", kv["b"])
	require.Equal(t, "three, still", kv["c"])
}

func TestParseKeyValuesRejectsUnbalancedQuotes(t *testing.T) {
	_, err := ParseKeyValues(`a="unterminated`)
	require.Error(t, err)
	_, err = ParseKeyValues(`a='unterminated`)
	require.Error(t, err)
}

func TestParseKeyValuesRejectsMissingComma(t *testing.T) {
	_, err := ParseKeyValues("a=1 b=2")
	require.Error(t, err)
}

func TestParseKeyValuesEmptyInput(t *testing.T) {
	kv, err := ParseKeyValues("")
	require.NoError(t, err)
	require.Empty(t, kv)
}
