package aranet4

import "github.com/pkg/errors"

// Error kinds surfaced by this package. Wrapped with context on the way
// out; use errors.Cause to classify.
var (
	ErrNotFound         = errors.New("no aranet4 device found")
	ErrBusy             = errors.New("history read already in progress")
	ErrUnpaired         = errors.New("device refused the read, check pairing")
	ErrTruncatedPayload = errors.New("payload shorter than expected")
	ErrOutOfRange       = errors.New("offset out of range")
	ErrEmptyHistory     = errors.New("history is empty")
	ErrInvalidSensor    = errors.New("unknown sensor id")
)
