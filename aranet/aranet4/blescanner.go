package aranet4

import (
	"context"
	"strings"
	"time"

	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// deviceNameMagic is the substring an advertised local name must contain
// for the device to be taken for an Aranet4 meter.
const deviceNameMagic = "Aranet4"

// BleScanner discovers nearby Aranet4 meters by their advertised name.
type BleScanner struct {
	ScanDuration time.Duration
	Retries      int

	// Magic overrides the name substring to look for; empty means
	// "Aranet4".
	Magic string
}

func (scanner *BleScanner) Scan() (map[string]string, error) {
	var lastErr error
	var devices map[string]string
	for i := 0; i < scanner.Retries; i++ {
		devices, lastErr = scanner.scan()
		if lastErr == nil {
			return devices, nil
		}
		if i < scanner.Retries {
			log.Errorf("retrying error in scan: %s", lastErr)
		}
	}

	return map[string]string{}, errors.Wrap(lastErr, "all retries to scan failed")
}

func (scanner *BleScanner) scan() (map[string]string, error) {
	magic := scanner.Magic
	if magic == "" {
		magic = deviceNameMagic
	}
	filter := func(a ble.Advertisement) bool {
		return a.Connectable() && strings.Contains(a.LocalName(), magic)
	}

	ctx := ble.WithSigHandler(context.WithTimeout(context.Background(), scanner.ScanDuration))
	ads, err := ble.Find(ctx, false, filter)
	if err != nil {
		switch errors.Cause(err) {
		case nil:
		case context.DeadlineExceeded:
		case context.Canceled:
			return map[string]string{}, errors.Wrap(err, "scan for devices cancelled")
		default:
			return map[string]string{}, errors.Wrap(err, "failed to scan for devices")
		}
	}

	found := map[string]string{}
	for _, a := range ads {
		log.Infof("found %s at %s", a.LocalName(), a.Addr())
		found[a.Addr().String()] = a.LocalName()
	}

	if len(found) == 0 {
		return map[string]string{}, errors.Wrap(ErrNotFound, "try moving the meter closer to the bluetooth receiver")
	}

	return found, nil
}
