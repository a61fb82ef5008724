package aranet4

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/alepar/aranet4/aranet"
)

// fakeTransport scripts characteristic reads and lets tests react to
// writes by pushing notification payloads, the way the real device
// answers a history range request.
type fakeTransport struct {
	mu           sync.Mutex
	reads        map[string][][]byte // queued per uuid, last value repeats
	writes       [][]byte
	notify       func([]byte)
	onWrite      func(uuid string, value []byte)
	unsubscribes int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{reads: map[string][][]byte{}}
}

func le16Bytes(value uint16) []byte {
	return []byte{byte(value), byte(value >> 8)}
}

func (t *fakeTransport) script(uuid string, values ...[]byte) {
	t.mu.Lock()
	t.reads[uuid] = append(t.reads[uuid], values...)
	t.mu.Unlock()
}

func (t *fakeTransport) Read(uuid string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	queue := t.reads[uuid]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no scripted value for %s", uuid)
	}
	value := queue[0]
	if len(queue) > 1 {
		t.reads[uuid] = queue[1:]
	}
	return value, nil
}

func (t *fakeTransport) Write(uuid string, value []byte) error {
	value = append([]byte(nil), value...)
	t.mu.Lock()
	t.writes = append(t.writes, value)
	onWrite := t.onWrite
	t.mu.Unlock()
	if onWrite != nil {
		go onWrite(uuid, value)
	}
	return nil
}

func (t *fakeTransport) Subscribe(uuid string, handle func(value []byte)) (Subscription, error) {
	t.mu.Lock()
	t.notify = handle
	t.mu.Unlock()
	return &fakeSubscription{transport: t}, nil
}

func (t *fakeTransport) Close() error { return nil }

// push delivers a notification once a subscriber is registered. The range
// request write lands just before the subscription, so a short wait is
// part of the contract here.
func (t *fakeTransport) push(data []byte) {
	for i := 0; i < 500; i++ {
		t.mu.Lock()
		notify := t.notify
		t.mu.Unlock()
		if notify != nil {
			notify(data)
			return
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeSubscription struct {
	transport *fakeTransport
}

func (s *fakeSubscription) Unsubscribe() error {
	s.transport.mu.Lock()
	s.transport.notify = nil
	s.transport.unsubscribes++
	s.transport.mu.Unlock()
	return nil
}

func newTestDevice(transport Transport) *Device {
	dev := NewDevice("aa:bb:cc:dd:ee:ff", transport)
	dev.IdleWindow = 50 * time.Millisecond
	dev.PollEvery = 10 * time.Millisecond
	dev.MaxWait = 2 * time.Second
	return dev
}

func TestHistoryAlignsSensorsAndTimestamps(t *testing.T) {
	transport := newFakeTransport()
	transport.script(uuidUpdateInterval, le16Bytes(60))
	transport.script(uuidSinceLastUpdate, le16Bytes(30))

	co2Values := []uint16{400, 410, 420, 430, 440, 450, 460, 470, 480, 490}
	tempValues := []uint16{400, 402, 404, 406, 408, 410, 412, 414, 416, 418, 420}

	transport.onWrite = func(uuid string, value []byte) {
		if uuid != uuidHistoryRange {
			return
		}
		switch aranet.Sensor(value[1]) {
		case aranet.SensorCO2:
			// stale noise from another sensor must not disturb the read
			transport.push(chunkPayload(aranet.SensorPressure, 3, 9999))
			transport.push(chunkPayload(aranet.SensorCO2, 3, co2Values[:5]...))
			transport.push(chunkPayload(aranet.SensorCO2, 8, co2Values[5:]...))
		case aranet.SensorTemperature:
			// one extra trailing index: the device logged a new value
			// between the two sensor reads
			transport.push(chunkPayload(aranet.SensorTemperature, 3, tempValues...))
		}
	}

	sensors := []aranet.Sensor{aranet.SensorCO2, aranet.SensorTemperature}
	before := time.Now().Unix()
	history, err := newTestDevice(transport).History(context.Background(), sensors, 1, 0xffff)
	require.NoError(t, err)

	require.Equal(t, sensors, history.Sensors)

	// the trailing index 11 was not seen by co2 and must be gone from both
	require.Len(t, history.Points[aranet.SensorCO2], 10)
	require.Len(t, history.Points[aranet.SensorTemperature], 10)
	require.NotContains(t, history.Points[aranet.SensorTemperature], 11)

	for index := 1; index <= 10; index++ {
		require.Equal(t, float64(co2Values[index-1]), history.Points[aranet.SensorCO2][index])
		require.Equal(t, float64(tempValues[index-1])/20.0, history.Points[aranet.SensorTemperature][index])
		require.Contains(t, history.Timestamps, index)
	}
	require.Len(t, history.Timestamps, 10)

	// newest common index carries the capture instant, every step down
	// the log is one update interval earlier
	require.InDelta(t, before-30, history.Timestamps[10], 3)
	require.Equal(t, history.Timestamps[10]-60, history.Timestamps[9])
	require.Equal(t, history.Timestamps[10]-120, history.Timestamps[8])
	require.Equal(t, history.Timestamps[10]-9*60, history.Timestamps[1])
}

func TestHistoryRangeRequestEncoding(t *testing.T) {
	transport := newFakeTransport()
	transport.script(uuidUpdateInterval, le16Bytes(60))
	transport.script(uuidSinceLastUpdate, le16Bytes(0))
	transport.onWrite = func(uuid string, value []byte) {
		if uuid == uuidHistoryRange {
			transport.push(chunkPayload(aranet.SensorCO2, 3, 400))
		}
	}

	_, err := newTestDevice(transport).History(context.Background(), []aranet.Sensor{aranet.SensorCO2}, 1, 0x1234)
	require.NoError(t, err)

	require.Len(t, transport.writes, 1)
	// 0x82 command, sensor id, then the caller range shifted up by one
	require.Equal(t, []byte{0x82, byte(aranet.SensorCO2), 0x00, 0x00, 0x02, 0x00, 0x34, 0x12}, transport.writes[0])
}

func TestHistoryRejectsConcurrentReads(t *testing.T) {
	transport := newFakeTransport()
	transport.script(uuidUpdateInterval, le16Bytes(60))
	transport.script(uuidSinceLastUpdate, le16Bytes(0))
	transport.onWrite = func(uuid string, value []byte) {
		if uuid == uuidHistoryRange {
			time.Sleep(100 * time.Millisecond)
			transport.push(chunkPayload(aranet.SensorCO2, 3, 400))
		}
	}

	dev := newTestDevice(transport)
	sensors := []aranet.Sensor{aranet.SensorCO2}

	firstDone := make(chan error, 1)
	go func() {
		_, err := dev.History(context.Background(), sensors, 1, 0xffff)
		firstDone <- err
	}()

	time.Sleep(30 * time.Millisecond)
	_, err := dev.History(context.Background(), sensors, 1, 0xffff)
	require.Equal(t, ErrBusy, errors.Cause(err))

	require.NoError(t, <-firstDone)

	// the single-flight guard is released once the first read completes
	_, err = dev.History(context.Background(), sensors, 1, 0xffff)
	require.NoError(t, err)
}

func TestHistoryEmptyStream(t *testing.T) {
	transport := newFakeTransport()
	transport.script(uuidUpdateInterval, le16Bytes(60))
	transport.script(uuidSinceLastUpdate, le16Bytes(0))

	dev := newTestDevice(transport)
	dev.MaxWait = 200 * time.Millisecond

	_, err := dev.History(context.Background(), []aranet.Sensor{aranet.SensorCO2}, 1, 0xffff)
	require.Equal(t, ErrEmptyHistory, errors.Cause(err))
	require.Equal(t, 1, transport.unsubscribes)
}

func TestHistoryCancellationReleasesSubscription(t *testing.T) {
	transport := newFakeTransport()
	transport.script(uuidUpdateInterval, le16Bytes(60))
	transport.script(uuidSinceLastUpdate, le16Bytes(0))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := newTestDevice(transport).History(ctx, []aranet.Sensor{aranet.SensorCO2}, 1, 0xffff)
	require.Equal(t, context.Canceled, errors.Cause(err))
	require.Equal(t, 1, transport.unsubscribes)

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Nil(t, transport.notify)
}

func TestReconcileDisjointSensors(t *testing.T) {
	perSensor := map[aranet.Sensor]map[int]float64{
		aranet.SensorCO2:      {1: 400, 2: 410},
		aranet.SensorPressure: {3: 1013.2},
	}
	sensors := []aranet.Sensor{aranet.SensorCO2, aranet.SensorPressure}

	_, err := reconcile(sensors, perSensor, map[int]int64{2: 1000, 3: 1000}, 60)
	require.Equal(t, ErrEmptyHistory, errors.Cause(err))
}
