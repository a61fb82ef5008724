package aranet4

// Transport is the slice of the BLE stack the protocol needs: plain
// characteristic reads and writes plus value-change notifications, all
// addressed by UUID. The go-ble binding lives in bletransport.go; tests
// substitute their own.
type Transport interface {
	Read(uuid string) ([]byte, error)
	Write(uuid string, value []byte) error
	Subscribe(uuid string, handle func(value []byte)) (Subscription, error)
	Close() error
}

// Subscription is an active notification registration. Unsubscribe must be
// called on every exit path, otherwise the transport leaks the handler.
type Subscription interface {
	Unsubscribe() error
}
