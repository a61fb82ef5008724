package aranet4

import (
	"github.com/pkg/errors"

	"github.com/alepar/aranet4/aranet"
)

// Normalize maps a raw on-wire value to its display unit for the given
// sensor. The device reserves a few encodings for "no reading available"
// (calibration in progress, sensor fault); those come back as
// aranet.NotValid. Normalization is pure, it depends on nothing but its
// arguments.
func Normalize(raw uint16, sensor aranet.Sensor) (float64, error) {
	switch sensor {
	case aranet.SensorHumidity:
		if raw&0x80 == 0x80 {
			return aranet.NotValid, nil
		}
		return float64(raw), nil
	case aranet.SensorCO2:
		if raw&0x8000 == 0x8000 {
			return aranet.NotValid, nil
		}
		return float64(raw), nil
	case aranet.SensorPressure:
		if raw&0x8000 == 0x8000 {
			return aranet.NotValid, nil
		}
		return float64(raw) / 10.0, nil
	case aranet.SensorTemperature:
		if raw == 0x4000 {
			return aranet.NotValid, nil
		}
		if raw > 0x8000 {
			return 0, nil
		}
		return float64(raw) / 20.0, nil
	}
	return 0, errors.Wrapf(ErrInvalidSensor, "sensor id %d", sensor)
}
