package clockfmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatParseRoundTrip(t *testing.T) {
	cases := []time.Time{
		time.Date(2024, 3, 17, 9, 30, 0, 0, time.FixedZone("", 2*3600)),
		time.Date(1999, 12, 31, 23, 59, 59, 0, time.FixedZone("", 0)),
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.FixedZone("", -5*3600)),
	}
	for _, c := range cases {
		require.True(t, RoundTrips(c), "round trip failed for %v", c)
	}
}

func TestParseAcceptsLooserForm(t *testing.T) {
	got, err := Parse("2024-03-17 09:30:00 +02:00")
	require.NoError(t, err)
	require.Equal(t, 2024, got.Year())
	require.Equal(t, time.March, got.Month())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-date")
	require.Error(t, err)
}
