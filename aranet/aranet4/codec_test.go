package aranet4

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestLE16RoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	for v := 0; v <= 0xffff; v++ {
		require.NoError(t, WriteLE16(buf, 1, uint16(v)))
		got, err := ReadLE16(buf, 1)
		require.NoError(t, err)
		require.Equal(t, uint16(v), got)
	}
}

func TestLE16ByteOrder(t *testing.T) {
	buf := []byte{0x00, 0x00}
	require.NoError(t, WriteLE16(buf, 0, 0xbeef))
	require.Equal(t, []byte{0xef, 0xbe}, buf)

	got, err := ReadLE16([]byte{0x34, 0x12}, 0)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), got)
}

func TestLE16OutOfRange(t *testing.T) {
	buf := make([]byte, 3)

	_, err := ReadLE16(buf, 2)
	require.Equal(t, ErrOutOfRange, errors.Cause(err))
	_, err = ReadLE16(buf, -1)
	require.Equal(t, ErrOutOfRange, errors.Cause(err))

	err = WriteLE16(buf, 2, 42)
	require.Equal(t, ErrOutOfRange, errors.Cause(err))
	err = WriteLE16(nil, 0, 42)
	require.Equal(t, ErrOutOfRange, errors.Cause(err))
}
