package aranet4

import "github.com/pkg/errors"

// ReadLE16 reads a little-endian 16-bit value at offset.
func ReadLE16(buf []byte, offset int) (uint16, error) {
	if offset < 0 || offset+2 > len(buf) {
		return 0, errors.Wrapf(ErrOutOfRange, "reading 2 bytes at %d of a %d-byte buffer", offset, len(buf))
	}
	return uint16(buf[offset]) | uint16(buf[offset+1])<<8, nil
}

// WriteLE16 stores value little-endian at offset, in place.
func WriteLE16(buf []byte, offset int, value uint16) error {
	if offset < 0 || offset+2 > len(buf) {
		return errors.Wrapf(ErrOutOfRange, "writing 2 bytes at %d of a %d-byte buffer", offset, len(buf))
	}
	buf[offset] = byte(value)
	buf[offset+1] = byte(value >> 8)
	return nil
}
