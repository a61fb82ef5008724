package aranet4

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/alepar/aranet4/aranet"
)

// reassembler folds the notification stream for one sensor into a sparse
// index->value map. The device never signals end of transfer, so the
// stream counts as settled once at least one chunk has arrived and then
// nothing new shows up for a full idle window.
type reassembler struct {
	sensor aranet.Sensor

	mu           sync.Mutex
	points       map[int]float64
	maxIndex     int
	lastActivity time.Time
	received     bool
}

func newReassembler(sensor aranet.Sensor) *reassembler {
	return &reassembler{
		sensor:       sensor,
		points:       map[int]float64{},
		lastActivity: time.Now(),
	}
}

// handle is the notification callback. Chunks tagged with another sensor
// are leftovers of a previous range read and are dropped without touching
// any state. Malformed chunks are dropped too, the device occasionally
// emits short frames at the tail of a transfer.
func (r *reassembler) handle(data []byte) {
	chunk, err := parseHistoryChunk(data)
	if err != nil {
		log.Debugf("dropping malformed history chunk: %s", err)
		return
	}
	if chunk.sensor != r.sensor {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastActivity = time.Now()
	r.received = true

	index := chunk.firstIndex
	for _, raw := range chunk.values {
		value, err := Normalize(raw, r.sensor)
		if err != nil {
			continue
		}
		// the device reports series indexes two above their logical slot
		key := index - 2
		r.points[key] = value
		if key > r.maxIndex {
			r.maxIndex = key
		}
		index++
	}
}

// settled reports whether the stream has gone quiet for at least idle.
func (r *reassembler) settled(idle time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received && time.Since(r.lastActivity) >= idle
}

// result hands out the collected series and its greatest index.
func (r *reassembler) result() (map[int]float64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.points, r.maxIndex
}
