package peripheral

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestTally_CountsAndLogs(t *testing.T) {
	var logs bytes.Buffer
	tally := NewTally(zerolog.New(&logs))

	tally.HandleRecord([]byte("hi\x00"), true)
	require.Equal(t, 1, tally.Counts().Strings)
	require.Contains(t, logs.String(), `"string":"hi"`)
	require.Contains(t, logs.String(), "received string")

	tally.HandleRecord([]byte("123456789"), false)
	counts := tally.Counts()
	require.Equal(t, 1, counts.Strings)
	require.Equal(t, 1, counts.Overflows)
	require.Equal(t, uint16(0x4B37), counts.LastCRC) // CRC-16/MODBUS check value
	require.Contains(t, logs.String(), "buffer full, received fragment")
}

func TestTally_EmptyRecord(t *testing.T) {
	tally := NewTally(zerolog.Nop())

	require.NotPanics(t, func() { tally.HandleRecord([]byte{0}, true) })
	require.Equal(t, TallyCounts{Strings: 1, LastCRC: tally.Counts().LastCRC}, tally.Counts())
}
