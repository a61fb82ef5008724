package aranet4

import (
	"context"
	"strings"
	"time"

	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Connect establishes a BLE connection to the meter at addr, discovers its
// GATT profile and returns a Device bound to it. The Device owns the
// connection; Close releases it.
func Connect(addr string, timeout time.Duration) (*Device, error) {
	filter := func(a ble.Advertisement) bool {
		return strings.EqualFold(a.Addr().String(), addr)
	}

	log.Debugf("connecting to device %s", addr)
	ctx := ble.WithSigHandler(context.WithTimeout(context.Background(), timeout))
	cln, err := ble.Connect(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't connect to ble")
	}

	// Normally the connection is disconnected by us via Close. However, it
	// can be asynchronously dropped by the remote peripheral, so we detect
	// the disconnection in a goroutine.
	done := make(chan struct{})
	go func() {
		<-cln.Disconnected()
		log.Debugf("device %s disconnected", addr)
		close(done)
	}()

	log.Debugf("discovering gatt profile")
	profile, err := cln.DiscoverProfile(true)
	log.Debugf("finished discovering gatt profile")
	if err != nil {
		_ = cln.CancelConnection()
		<-done
		return nil, errors.Wrap(err, "couldn't discover gatt profile")
	}

	chars := map[string]*ble.Characteristic{}
	for _, service := range profile.Services {
		for _, char := range service.Characteristics {
			chars[char.UUID.String()] = char
		}
	}

	transport := &bleTransport{
		client: cln,
		chars:  chars,
		done:   done,
	}
	return NewDevice(addr, transport), nil
}

// bleTransport binds the Transport contract to a live go-ble connection.
type bleTransport struct {
	client ble.Client
	chars  map[string]*ble.Characteristic
	done   chan struct{}
}

func (t *bleTransport) find(uuid string) (*ble.Characteristic, error) {
	parsed, err := ble.Parse(uuid)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse characteristic uuid %s", uuid)
	}
	char, ok := t.chars[parsed.String()]
	if !ok {
		return nil, errors.Errorf("characteristic %s not present on device", uuid)
	}
	return char, nil
}

func (t *bleTransport) Read(uuid string) ([]byte, error) {
	char, err := t.find(uuid)
	if err != nil {
		return nil, err
	}
	log.Debugf("reading characteristic %s", uuid)
	value, err := t.client.ReadCharacteristic(char)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read characteristic %s", uuid)
	}
	return value, nil
}

func (t *bleTransport) Write(uuid string, value []byte) error {
	char, err := t.find(uuid)
	if err != nil {
		return err
	}
	log.Debugf("writing characteristic %s", uuid)
	return errors.Wrapf(t.client.WriteCharacteristic(char, value, false), "failed to write characteristic %s", uuid)
}

func (t *bleTransport) Subscribe(uuid string, handle func(value []byte)) (Subscription, error) {
	char, err := t.find(uuid)
	if err != nil {
		return nil, err
	}
	if err := t.client.Subscribe(char, false, func(data []byte) { handle(data) }); err != nil {
		return nil, errors.Wrapf(err, "failed to subscribe to characteristic %s", uuid)
	}
	return &bleSubscription{transport: t, char: char, uuid: uuid}, nil
}

func (t *bleTransport) Close() error {
	log.Debugf("closing connection")
	err := t.client.CancelConnection()
	<-t.done
	return errors.Wrap(err, "failed to close ble connection")
}

type bleSubscription struct {
	transport *bleTransport
	char      *ble.Characteristic
	uuid      string
}

func (s *bleSubscription) Unsubscribe() error {
	return errors.Wrapf(s.transport.client.Unsubscribe(s.char, false), "failed to unsubscribe from characteristic %s", s.uuid)
}
