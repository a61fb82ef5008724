package aranet4

// GATT characteristics exposed by the meter. The 0000xxxx ones are
// Bluetooth SIG standard; the f0cdxxxx ones are vendor-specific.
const (
	uuidBatteryLevel     = "00002a19-0000-1000-8000-00805f9b34fb"
	uuidManufacturerName = "00002a29-0000-1000-8000-00805f9b34fb"
	uuidModelName        = "00002a24-0000-1000-8000-00805f9b34fb"
	uuidDeviceName       = "00002a00-0000-1000-8000-00805f9b34fb"
	uuidSerialNumber     = "00002a25-0000-1000-8000-00805f9b34fb"
	uuidHardwareRevision = "00002a27-0000-1000-8000-00805f9b34fb"
	uuidSoftwareRevision = "00002a28-0000-1000-8000-00805f9b34fb"

	uuidUpdateInterval       = "f0cd2002-95da-4f4b-9ac8-aa55d312af0c"
	uuidSinceLastUpdate      = "f0cd2004-95da-4f4b-9ac8-aa55d312af0c"
	uuidStoredReadings       = "f0cd2001-95da-4f4b-9ac8-aa55d312af0c"
	uuidCurrentReadingSimple = "f0cd1503-95da-4f4b-9ac8-aa55d312af0c"
	uuidCurrentReadingFull   = "f0cd3001-95da-4f4b-9ac8-aa55d312af0c"
	uuidHistoryRange         = "f0cd1402-95da-4f4b-9ac8-aa55d312af0c"
	uuidHistoryNotifier      = "f0cd2003-95da-4f4b-9ac8-aa55d312af0c"
)
