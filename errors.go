package peripheral

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when a transmit string is longer than the
	// configured maximum.
	ErrOutOfRange = errors.New("string length out of range")

	// ErrNoData is returned by ByteSource.ReadByte when no byte is
	// immediately available. It is not a failure.
	ErrNoData = errors.New("no data available")

	// ErrClosed is returned by ports and edge sources after Close.
	ErrClosed = errors.New("closed")

	// ErrNotReady is returned by New when a transport collaborator is missing.
	ErrNotReady = errors.New("transport not ready")
)

// OutOfRangeError reports a rejected transmit string.
type OutOfRangeError struct {
	Length int
	Max    int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("string length %d exceeds maximum %d", e.Length, e.Max)
}

// Is makes errors.Is(err, ErrOutOfRange) hold for *OutOfRangeError.
func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}
