package execid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDurationNumeric(t *testing.T) {
	ms, err := ParseDuration(1500)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), ms)
}

func TestParseDurationStrings(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"100ms", 100},
		{"2s", 2000},
		{"5seconds", 5000},
		{"3m", 180000},
		{"1minute", 60000},
		{"2h", 7200000},
		{"1hours", 3600000},
		{"1d", 86400000},
		{"2days", 172800000},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseDurationRejectsNegative(t *testing.T) {
	_, err := ParseDuration(-5)
	require.Error(t, err)
	var invalid *InvalidDurationError
	require.ErrorAs(t, err, &invalid)
}

func TestParseDurationRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "abc", "10", "10xs", "-5ms"} {
		_, err := ParseDuration(in)
		require.Error(t, err, in)
	}
}

func TestParseDurationIdempotentOnInt(t *testing.T) {
	// numeric duration: parseDuration(d) = d.
	for _, n := range []int{0, 1, 5000, 60000} {
		got, err := ParseDuration(n)
		require.NoError(t, err)
		assert.Equal(t, int64(n), got)
	}
}
