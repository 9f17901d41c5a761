package peripheral

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutOfRangeError(t *testing.T) {
	err := &OutOfRangeError{Length: 70, Max: 64}

	msg := err.Error()
	require.True(t, strings.Contains(msg, "70"), msg)
	require.True(t, strings.Contains(msg, "64"), msg)

	require.True(t, errors.Is(err, ErrOutOfRange))
	require.True(t, errors.Is(fmt.Errorf("set string: %w", err), ErrOutOfRange))
	require.False(t, errors.Is(err, ErrClosed))
}
