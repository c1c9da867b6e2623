// Package ble provides the transport layer for talking to a Silvercrest
// blood-pressure cuff over Bluetooth Low Energy. The hardware adapter is
// hidden behind small interfaces so the acquisition logic can be exercised
// without a radio.
package ble

import (
	"context"
	"time"
)

// Silvercrest cuff GATT identifiers. The cuff pushes its 17-byte record on a
// vendor characteristic rather than the standard 2A35 encoding.
const (
	ServiceUUID         = "0000fff0-0000-1000-8000-00805f9b34fb"
	MeasurementCharUUID = "0000fff1-0000-1000-8000-00805f9b34fb"
)

// Advertisement is one observed BLE advertisement.
type Advertisement struct {
	Address   string
	LocalName string
	RSSI      int
	Seen      time.Time
}

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
	// Unsubscribe disables notifications.
	Unsubscribe() error
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan streams advertisements to fn until ctx is cancelled.
	Scan(ctx context.Context, fn func(Advertisement)) error
	// Connect establishes a connection to the device with the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}
