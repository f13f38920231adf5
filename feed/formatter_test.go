package feed

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatPose(t *testing.T) {
	b := FormatPose(0x1001, 1700000000123, 5, FlagPose,
		[3]float64{1.234, -5.6, 0.001}, [4]float64{1, 0, 0, 0})
	line := string(b)

	require.True(t, strings.HasPrefix(line, "pose:"))
	require.True(t, strings.HasSuffix(line, "\r\n"))

	fields := strings.Split(strings.TrimSuffix(line, "\r\n"), ",")
	require.Len(t, fields, 12)
	require.Equal(t, "0000000000001001", fields[1])
	require.Equal(t, "5", fields[2])
	require.Equal(t, "1", fields[4])
	require.Equal(t, "1.234", fields[5])
	require.Equal(t, "-5.600", fields[6])
	require.Equal(t, "0.001", fields[7])
	require.Equal(t, "1.0000", fields[8])
}

func TestFormatPoseLengthField(t *testing.T) {
	b := FormatPose(7, 0, 0, FlagPose, [3]float64{}, [4]float64{1, 0, 0, 0})

	// Bytes 8..10 carry the decimal line length; the comma at byte 11 and
	// the fields after it stay untouched.
	n := len(b)
	require.Equal(t, byte(','), b[11])
	got, err := strconv.Atoi(strings.TrimSpace(string(b[8:11])))
	require.NoError(t, err)
	require.Equal(t, n, got)
}
