package aranet

import "context"

type Scanner interface {

	// returns map from device address to advertised device name
	Scan() (map[string]string, error)
}

type Device interface {
	Address() string
	Readings() (Readings, error)

	// History reads the on-board log for the given sensors over the
	// inclusive 1-based slot range. Empty sensors means all of them.
	History(ctx context.Context, sensors []Sensor, start, end int) (History, error)
}
