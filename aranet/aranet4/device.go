package aranet4

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/alepar/aranet4/aranet"
)

const (
	defaultIdleWindow = 500 * time.Millisecond
	defaultPollEvery  = 100 * time.Millisecond
	defaultMaxWait    = 30 * time.Second
)

// Device drives the vendor GATT protocol of one Aranet4 meter over a
// Transport. A Device owns one connection and is safe for concurrent use,
// but the firmware can only service one history range read at a time, so
// a second History call while one is in flight fails with ErrBusy.
type Device struct {
	transport Transport
	addr      string

	// Settle tuning for history transfers. Zero values fall back to the
	// defaults, which match the device's observed pacing (0.5s idle
	// window polled every 0.1s, 30s total cap).
	IdleWindow time.Duration
	PollEvery  time.Duration
	MaxWait    time.Duration

	// UseCache memoizes characteristic reads by UUID. Off by default.
	// Reads over BLE are slow, so scripts touching many getters in a row
	// may want it on; InvalidateCache drops the memos.
	UseCache bool

	mu      sync.Mutex
	reading bool
	cache   map[string][]byte
}

func NewDevice(addr string, transport Transport) *Device {
	return &Device{
		transport: transport,
		addr:      addr,
		cache:     map[string][]byte{},
	}
}

func (dev *Device) Address() string {
	return dev.addr
}

// Close releases the underlying transport connection.
func (dev *Device) Close() error {
	return dev.transport.Close()
}

// InvalidateCache drops all memoized characteristic values.
func (dev *Device) InvalidateCache() {
	dev.mu.Lock()
	dev.cache = map[string][]byte{}
	dev.mu.Unlock()
}

// read goes through the cache when enabled. A transport-level read
// rejection almost always means the device is not paired with this host.
func (dev *Device) read(uuid string) ([]byte, error) {
	if dev.UseCache {
		dev.mu.Lock()
		value, ok := dev.cache[uuid]
		dev.mu.Unlock()
		if ok {
			return value, nil
		}
	}

	value, err := dev.readDirect(uuid)
	if err != nil {
		return nil, err
	}

	if dev.UseCache {
		dev.mu.Lock()
		dev.cache[uuid] = value
		dev.mu.Unlock()
	}
	return value, nil
}

// readDirect always hits the device, bypassing the cache. History reads
// use it for the time-sensitive characteristics.
func (dev *Device) readDirect(uuid string) ([]byte, error) {
	value, err := dev.transport.Read(uuid)
	if err != nil {
		return nil, errors.Wrapf(ErrUnpaired, "reading characteristic %s: %s", uuid, err)
	}
	return value, nil
}

func (dev *Device) readString(uuid string) (string, error) {
	value, err := dev.read(uuid)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(value), "\x00"), nil
}

func (dev *Device) readLE16(uuid string, direct bool) (uint16, error) {
	read := dev.read
	if direct {
		read = dev.readDirect
	}
	value, err := read(uuid)
	if err != nil {
		return 0, err
	}
	parsed, err := ReadLE16(value, 0)
	return parsed, errors.Wrapf(err, "characteristic %s", uuid)
}

// BatteryLevel returns the charge remaining, as a percentage.
func (dev *Device) BatteryLevel() (uint8, error) {
	value, err := dev.read(uuidBatteryLevel)
	if err != nil {
		return 0, err
	}
	if len(value) < 1 {
		return 0, errors.Wrap(ErrTruncatedPayload, "battery level")
	}
	return value[0], nil
}

func (dev *Device) ManufacturerName() (string, error) {
	return dev.readString(uuidManufacturerName)
}

func (dev *Device) ModelName() (string, error) {
	return dev.readString(uuidModelName)
}

func (dev *Device) DeviceName() (string, error) {
	return dev.readString(uuidDeviceName)
}

func (dev *Device) SerialNumber() (string, error) {
	return dev.readString(uuidSerialNumber)
}

func (dev *Device) HardwareRevision() (string, error) {
	return dev.readString(uuidHardwareRevision)
}

func (dev *Device) SoftwareRevision() (string, error) {
	return dev.readString(uuidSoftwareRevision)
}

// UpdateInterval returns the pause between measurements, in seconds.
func (dev *Device) UpdateInterval() (uint16, error) {
	return dev.readLE16(uuidUpdateInterval, false)
}

// SinceLastUpdate returns the age of the newest measurement, in seconds.
func (dev *Device) SinceLastUpdate() (uint16, error) {
	return dev.readLE16(uuidSinceLastUpdate, false)
}

// StoredReadings returns the number of measurements in the on-board log.
func (dev *Device) StoredReadings() (uint16, error) {
	return dev.readLE16(uuidStoredReadings, false)
}

// Readings returns the newest measurement of every sensor along with the
// device settings. ReadingsSimple is the faster variant without settings.
func (dev *Device) Readings() (aranet.Readings, error) {
	return dev.readings(true)
}

func (dev *Device) ReadingsSimple() (aranet.Readings, error) {
	return dev.readings(false)
}

func (dev *Device) readings(full bool) (aranet.Readings, error) {
	uuid := uuidCurrentReadingSimple
	if full {
		uuid = uuidCurrentReadingFull
	}
	value, err := dev.read(uuid)
	if err != nil {
		return aranet.Readings{}, err
	}
	return DecodeReadings(value, full)
}

func (dev *Device) tryBeginHistory() bool {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.reading {
		return false
	}
	dev.reading = true
	return true
}

func (dev *Device) endHistory() {
	dev.mu.Lock()
	dev.reading = false
	dev.mu.Unlock()
}

func (dev *Device) settleTuning() (idle, poll, max time.Duration) {
	idle, poll, max = dev.IdleWindow, dev.PollEvery, dev.MaxWait
	if idle <= 0 {
		idle = defaultIdleWindow
	}
	if poll <= 0 {
		poll = defaultPollEvery
	}
	if max <= 0 {
		max = defaultMaxWait
	}
	return idle, poll, max
}
