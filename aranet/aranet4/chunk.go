package aranet4

import (
	"github.com/pkg/errors"

	"github.com/alepar/aranet4/aranet"
)

// historyChunk is one notification carrying a contiguous run of stored
// values for one sensor.
//
// Layout:
//   byte  0    sensor id
//   bytes 1-2  index of the first value (LE16)
//   byte  3    number of valid values in this chunk (the chunk may carry
//              trailing garbage beyond that)
//   bytes 4+   packed values, 1 byte each for humidity, LE16 otherwise
type historyChunk struct {
	sensor     aranet.Sensor
	firstIndex int
	values     []uint16
}

func parseHistoryChunk(data []byte) (historyChunk, error) {
	if len(data) < 4 {
		return historyChunk{}, errors.Wrapf(ErrTruncatedPayload, "history chunk is %d bytes", len(data))
	}

	sensor := aranet.Sensor(data[0])
	first, _ := ReadLE16(data, 1)
	count := int(data[3])

	step := 2
	if sensor == aranet.SensorHumidity {
		step = 1
	}

	payload := data[4:]
	if len(payload) < count*step {
		return historyChunk{}, errors.Wrapf(ErrTruncatedPayload, "history chunk carries %d payload bytes for %d values", len(payload), count)
	}

	values := make([]uint16, 0, count)
	for i := 0; i < count; i++ {
		if step == 1 {
			values = append(values, uint16(payload[i]))
		} else {
			value, _ := ReadLE16(payload, i*2)
			values = append(values, value)
		}
	}

	return historyChunk{sensor: sensor, firstIndex: int(first), values: values}, nil
}
