package aranet4

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/alepar/aranet4/aranet"
)

func TestDeviceGetters(t *testing.T) {
	transport := newFakeTransport()
	transport.script(uuidBatteryLevel, []byte{87})
	transport.script(uuidManufacturerName, []byte("SAF Tehnika"))
	transport.script(uuidModelName, []byte("Aranet4"))
	transport.script(uuidSerialNumber, []byte("3041000123\x00"))
	transport.script(uuidUpdateInterval, le16Bytes(300))
	transport.script(uuidStoredReadings, le16Bytes(2016))

	dev := NewDevice("aa:bb:cc:dd:ee:ff", transport)

	battery, err := dev.BatteryLevel()
	require.NoError(t, err)
	require.Equal(t, uint8(87), battery)

	manufacturer, err := dev.ManufacturerName()
	require.NoError(t, err)
	require.Equal(t, "SAF Tehnika", manufacturer)

	serial, err := dev.SerialNumber()
	require.NoError(t, err)
	require.Equal(t, "3041000123", serial)

	interval, err := dev.UpdateInterval()
	require.NoError(t, err)
	require.Equal(t, uint16(300), interval)

	stored, err := dev.StoredReadings()
	require.NoError(t, err)
	require.Equal(t, uint16(2016), stored)
}

func TestDeviceReadings(t *testing.T) {
	transport := newFakeTransport()
	transport.script(uuidCurrentReadingFull, fullReadingPayload())
	transport.script(uuidCurrentReadingSimple, fullReadingPayload()[:simpleReadingLen])

	dev := NewDevice("aa:bb:cc:dd:ee:ff", transport)

	full, err := dev.Readings()
	require.NoError(t, err)
	require.Equal(t, 880.0, full.CO2)
	require.Equal(t, uint16(60), full.UpdateInterval)

	simple, err := dev.ReadingsSimple()
	require.NoError(t, err)
	require.Equal(t, 880.0, simple.CO2)
	require.Zero(t, simple.UpdateInterval)
}

func TestDeviceReadRejectionMeansUnpaired(t *testing.T) {
	dev := NewDevice("aa:bb:cc:dd:ee:ff", newFakeTransport())

	_, err := dev.Readings()
	require.Equal(t, ErrUnpaired, errors.Cause(err))

	_, err = dev.BatteryLevel()
	require.Equal(t, ErrUnpaired, errors.Cause(err))
}

func TestDeviceReadCache(t *testing.T) {
	transport := newFakeTransport()
	transport.script(uuidDeviceName, []byte("Aranet4 00123"), []byte("Aranet4 renamed"))

	dev := NewDevice("aa:bb:cc:dd:ee:ff", transport)
	dev.UseCache = true

	name, err := dev.DeviceName()
	require.NoError(t, err)
	require.Equal(t, "Aranet4 00123", name)

	// second read is served from the cache
	name, err = dev.DeviceName()
	require.NoError(t, err)
	require.Equal(t, "Aranet4 00123", name)

	dev.InvalidateCache()
	name, err = dev.DeviceName()
	require.NoError(t, err)
	require.Equal(t, "Aranet4 renamed", name)
}

func TestHistoryBypassesReadCache(t *testing.T) {
	transport := newFakeTransport()
	transport.script(uuidUpdateInterval, le16Bytes(60))
	transport.script(uuidSinceLastUpdate, le16Bytes(10), le16Bytes(40))
	transport.onWrite = func(uuid string, value []byte) {
		if uuid == uuidHistoryRange {
			transport.push(chunkPayload(aranet.Sensor(value[1]), 3, 400))
		}
	}

	dev := newTestDevice(transport)
	dev.UseCache = true

	// warm the cache with a stale age value
	_, err := dev.SinceLastUpdate()
	require.NoError(t, err)

	history, err := dev.History(context.Background(), []aranet.Sensor{aranet.SensorCO2}, 1, 0xffff)
	require.NoError(t, err)

	// the capture instant must come from the fresh (40s) read, not the
	// cached 10s one
	require.InDelta(t, time.Now().Unix()-40, history.Timestamps[1], 3)
}
