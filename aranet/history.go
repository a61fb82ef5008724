package aranet

// History is the readings log retrieved from the device, aligned across
// all sensors that were read.
type History struct {
	// Sensors lists the channels actually read, in request order.
	Sensors []Sensor

	// Points holds one sparse index->value series per sensor. Every
	// series contains exactly the indexes present for all sensors.
	Points map[Sensor]map[int]float64

	// Timestamps maps each index in Points to unix seconds.
	Timestamps map[int]int64
}
