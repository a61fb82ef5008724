package aranet4

import (
	"github.com/pkg/errors"

	"github.com/alepar/aranet4/aranet"
)

const (
	simpleReadingLen = 8
	fullReadingLen   = 13
)

// DecodeReadings unpacks a current-reading characteristic payload. The
// simple variant carries the four sensors and the battery level; the full
// variant appends the update interval and the age of the newest
// measurement.
//
// Layout:
//   bytes 0-1   co2 (LE16, ppm)
//   bytes 2-3   temperature (LE16, 1/20 °C)
//   bytes 4-5   pressure (LE16, 1/10 hPa)
//   byte  6     humidity (%)
//   byte  7     battery level (%)
//   bytes 9-10  update interval (LE16, s; full only)
//   bytes 11-12 since last update (LE16, s; full only)
func DecodeReadings(data []byte, full bool) (aranet.Readings, error) {
	need := simpleReadingLen
	if full {
		need = fullReadingLen
	}
	if len(data) < need {
		return aranet.Readings{}, errors.Wrapf(ErrTruncatedPayload, "current reading is %d bytes, want %d", len(data), need)
	}

	co2, _ := ReadLE16(data, 0)
	temperature, _ := ReadLE16(data, 2)
	pressure, _ := ReadLE16(data, 4)

	var readings aranet.Readings
	readings.CO2, _ = Normalize(co2, aranet.SensorCO2)
	readings.Temperature, _ = Normalize(temperature, aranet.SensorTemperature)
	readings.Pressure, _ = Normalize(pressure, aranet.SensorPressure)
	readings.Humidity, _ = Normalize(uint16(data[6]), aranet.SensorHumidity)
	readings.BatteryLevel = data[7]

	if full {
		readings.UpdateInterval, _ = ReadLE16(data, 9)
		readings.SinceLastUpdate, _ = ReadLE16(data, 11)
	}

	return readings, nil
}
