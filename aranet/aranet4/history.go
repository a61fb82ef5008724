package aranet4

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aranet4/aranet"
)

// History retrieves the readings log stored on the device.
//
// Sensors are read strictly one after another. Between two sensor reads
// the device may roll a new measurement into the log, which shifts the
// index window; indexes not present for every sensor are discarded during
// reconciliation rather than reported as an error. start and end bound
// the 1-based slot range, inclusive.
func (dev *Device) History(ctx context.Context, sensors []aranet.Sensor, start, end int) (aranet.History, error) {
	if len(sensors) == 0 {
		sensors = aranet.AllSensors()
	}
	if !dev.tryBeginHistory() {
		return aranet.History{}, errors.Wrap(ErrBusy, "refusing concurrent history read")
	}
	defer dev.endHistory()

	// the device numbers slots one above the caller-facing range
	start++
	if start < 1 {
		start = 1
	}
	params := []byte{0x82, 0x00, 0x00, 0x00, 0x01, 0x00, 0xff, 0xff}
	if err := WriteLE16(params, 4, uint16(start)); err != nil {
		return aranet.History{}, err
	}
	if err := WriteLE16(params, 6, uint16(end)); err != nil {
		return aranet.History{}, err
	}

	interval, err := dev.readLE16(uuidUpdateInterval, true)
	if err != nil {
		return aranet.History{}, err
	}

	perSensor := map[aranet.Sensor]map[int]float64{}
	// capture instant of the newest stored value, keyed by the greatest
	// index each sensor reported
	instants := map[int]int64{}

	for _, sensor := range sensors {
		log.Debugf("retrieving stored values for sensor %s", sensor)

		sinceLast, err := dev.readLE16(uuidSinceLastUpdate, true)
		if err != nil {
			return aranet.History{}, err
		}
		newestInstant := time.Now().Unix() - int64(sinceLast)

		params[1] = byte(sensor)
		points, maxIndex, err := dev.collectSensorHistory(ctx, sensor, params)
		if err != nil {
			return aranet.History{}, err
		}
		if len(points) == 0 {
			return aranet.History{}, errors.Wrapf(ErrEmptyHistory, "sensor %s returned no stored values", sensor)
		}

		perSensor[sensor] = points
		instants[maxIndex] = newestInstant
	}

	return reconcile(sensors, perSensor, instants, interval)
}

// collectSensorHistory issues one range request and waits for the chunk
// stream to settle. The subscription is released on every exit path.
func (dev *Device) collectSensorHistory(ctx context.Context, sensor aranet.Sensor, params []byte) (map[int]float64, int, error) {
	if err := dev.transport.Write(uuidHistoryRange, params); err != nil {
		return nil, 0, errors.Wrapf(err, "requesting history range for sensor %s", sensor)
	}

	reasm := newReassembler(sensor)
	sub, err := dev.transport.Subscribe(uuidHistoryNotifier, reasm.handle)
	if err != nil {
		return nil, 0, errors.Wrap(err, "subscribing to history notifications")
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Errorf("failed to unsubscribe from history notifications: %s", err)
		}
	}()

	idle, poll, max := dev.settleTuning()
	deadline := time.Now().Add(max)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, 0, errors.Wrap(ctx.Err(), "history read abandoned")
		case <-ticker.C:
		}
		if reasm.settled(idle) {
			break
		}
		if time.Now().After(deadline) {
			log.Errorf("history transfer for sensor %s did not settle within %s, proceeding with what arrived", sensor, max)
			break
		}
	}

	points, maxIndex := reasm.result()
	log.Debugf("received %d stored values for sensor %s", len(points), sensor)
	return points, maxIndex, nil
}

// reconcile intersects the per-sensor index sets and derives a timestamp
// for every surviving index: the newest common index gets the capture
// instant recorded against it, and each step down the log is one update
// interval earlier.
func reconcile(sensors []aranet.Sensor, perSensor map[aranet.Sensor]map[int]float64, instants map[int]int64, interval uint16) (aranet.History, error) {
	common := commonIndexes(sensors, perSensor)
	if len(common) == 0 {
		return aranet.History{}, errors.Wrap(ErrEmptyHistory, "sensors share no stored indexes")
	}

	for _, sensor := range sensors {
		for index := range perSensor[sensor] {
			if !common[index] {
				log.Debugf("discarding uncommon index %d from sensor %s", index, sensor)
				delete(perSensor[sensor], index)
			}
		}
	}

	ordered := make([]int, 0, len(common))
	for index := range common {
		ordered = append(ordered, index)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ordered)))

	instant, ok := instants[ordered[0]]
	if !ok {
		return aranet.History{}, errors.Wrapf(ErrEmptyHistory, "no capture instant recorded for index %d", ordered[0])
	}

	timestamps := make(map[int]int64, len(ordered))
	for _, index := range ordered {
		timestamps[index] = instant
		instant -= int64(interval)
	}

	return aranet.History{
		Sensors:    sensors,
		Points:     perSensor,
		Timestamps: timestamps,
	}, nil
}

func commonIndexes(sensors []aranet.Sensor, perSensor map[aranet.Sensor]map[int]float64) map[int]bool {
	common := map[int]bool{}
	for index := range perSensor[sensors[0]] {
		common[index] = true
	}
	for _, sensor := range sensors[1:] {
		for index := range common {
			if _, ok := perSensor[sensor][index]; !ok {
				delete(common, index)
			}
		}
	}
	return common
}
