package aranet

// Sensor identifies one measurement channel of an Aranet4 meter.
// The numeric values match the sensor ids used on the wire by the
// device's history protocol.
type Sensor byte

const (
	SensorTemperature Sensor = 1
	SensorHumidity    Sensor = 2
	SensorPressure    Sensor = 3
	SensorCO2         Sensor = 4
)

func (s Sensor) String() string {
	switch s {
	case SensorTemperature:
		return "temperature"
	case SensorHumidity:
		return "humidity"
	case SensorPressure:
		return "pressure"
	case SensorCO2:
		return "co2"
	}
	return "unknown"
}

// AllSensors returns every channel, in the order history is read by default.
func AllSensors() []Sensor {
	return []Sensor{SensorCO2, SensorHumidity, SensorPressure, SensorTemperature}
}
