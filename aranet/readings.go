package aranet

// NotValid is reported in place of a measurement when the device has no
// real value to offer, e.g. while the CO2 sensor is still calibrating.
const NotValid = -1

type Readings struct {
	// units: ppm
	CO2 float64

	// units: degrees Celsius
	Temperature float64

	// units: hPa
	Pressure float64

	// units: % of relative Humidity
	Humidity float64

	// units: % of charge remaining
	BatteryLevel uint8

	// units: seconds; only set when read with the full variant
	UpdateInterval uint16

	// units: seconds since the newest measurement; only set when read
	// with the full variant
	SinceLastUpdate uint16
}
