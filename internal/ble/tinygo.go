package ble

import (
	"context"
	"fmt"
	"time"

	"tinygo.org/x/bluetooth"
)

// TinygoAdapter wraps tinygo-org/bluetooth. On Linux device addresses are MAC
// addresses; on macOS they are CoreBluetooth UUID strings. Advertisement and
// config values carry whichever form the platform reports.
type TinygoAdapter struct {
	adapter *bluetooth.Adapter
}

// NewTinygoAdapter creates a BLE adapter backed by the platform default stack.
func NewTinygoAdapter() *TinygoAdapter {
	return &TinygoAdapter{adapter: bluetooth.DefaultAdapter}
}

func (a *TinygoAdapter) Enable() error {
	return a.adapter.Enable()
}

// Scan streams every advertisement to fn until ctx is cancelled. No
// deduplication happens here: the cuff re-advertises while it has a reading
// to hand over, and every repeat matters for poll scheduling.
func (a *TinygoAdapter) Scan(ctx context.Context, fn func(Advertisement)) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		fn(Advertisement{
			Address:   result.Address.String(),
			LocalName: result.LocalName(),
			RSSI:      int(result.RSSI),
			Seen:      time.Now(),
		})
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

func (a *TinygoAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(address)

	// tinygo/bluetooth's Connect blocks internally with its own timeout.
	// We wrap it to also respect our ctx cancellation.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		// The underlying Connect will eventually time out or succeed on its
		// own; we cannot cancel it from here, but we return immediately.
		return nil, fmt.Errorf("ble: connect to %s: %w", address, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", address, result.err)
		}
		return &tinygoConnection{device: &result.device}, nil
	}
}

// Compile-time check that TinygoAdapter implements Adapter.
var _ Adapter = (*TinygoAdapter)(nil)

type tinygoConnection struct {
	device *bluetooth.Device
}

func (c *tinygoConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, err
	}
	charUUIDParsed, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, err
	}

	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("ble: service %s not found", serviceUUID)
	}

	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{charUUIDParsed})
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("ble: characteristic %s not found", charUUID)
	}

	return &tinygoCharacteristic{char: &chars[0]}, nil
}

func (c *tinygoConnection) Disconnect() error {
	return c.device.Disconnect()
}

type tinygoCharacteristic struct {
	char *bluetooth.DeviceCharacteristic
}

func (c *tinygoCharacteristic) Subscribe(cb func([]byte)) error {
	return c.char.EnableNotifications(func(buf []byte) {
		cb(buf)
	})
}

// Unsubscribe turns notifications off. tinygo/bluetooth treats a nil handler
// as "disable".
func (c *tinygoCharacteristic) Unsubscribe() error {
	return c.char.EnableNotifications(nil)
}
