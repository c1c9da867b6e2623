package ble

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// mockCharacteristic records subscriptions and allows injecting notifications.
type mockCharacteristic struct {
	mu           sync.Mutex
	callback     func([]byte)
	unsubscribed bool
}

func (c *mockCharacteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
	return nil
}

func (c *mockCharacteristic) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = true
	c.callback = nil
	return nil
}

// SimulateNotification sends a notification to the subscriber.
func (c *mockCharacteristic) SimulateNotification(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

// mockConnection simulates a BLE connection.
type mockConnection struct {
	mu              sync.Mutex
	measurementChar *mockCharacteristic
	disconnected    bool
}

func newMockConnection() *mockConnection {
	return &mockConnection{measurementChar: &mockCharacteristic{}}
}

func (c *mockConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	if charUUID != MeasurementCharUUID {
		return nil, fmt.Errorf("mock: unknown characteristic UUID %q", charUUID)
	}
	return c.measurementChar, nil
}

func (c *mockConnection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

// mockAdapter simulates the BLE adapter.
type mockAdapter struct {
	mu             sync.Mutex
	advertisements []Advertisement
	connection     *mockConnection // most recent connection for test assertions
}

func newMockAdapter(advs []Advertisement) *mockAdapter {
	return &mockAdapter{advertisements: advs}
}

func (a *mockAdapter) Enable() error { return nil }

func (a *mockAdapter) Scan(_ context.Context, fn func(Advertisement)) error {
	for _, adv := range a.advertisements {
		fn(adv)
	}
	return nil
}

func (a *mockAdapter) Connect(_ context.Context, _ string) (Connection, error) {
	conn := newMockConnection()
	a.mu.Lock()
	a.connection = conn
	a.mu.Unlock()
	return conn, nil
}

func TestMockAdapterImplementsInterface(t *testing.T) {
	var _ Adapter = (*mockAdapter)(nil)
}

func TestMockConnectionImplementsInterface(t *testing.T) {
	var _ Connection = (*mockConnection)(nil)
}

func TestMockCharacteristicImplementsInterface(t *testing.T) {
	var _ Characteristic = (*mockCharacteristic)(nil)
}

func TestMockScanStreamsAdvertisements(t *testing.T) {
	advs := []Advertisement{
		{Address: "AA:BB:CC:DD:EE:FF", LocalName: "SBM67", RSSI: -60},
		{Address: "AA:BB:CC:DD:EE:FF", LocalName: "SBM67", RSSI: -61},
	}
	adapter := newMockAdapter(advs)

	var got []Advertisement
	if err := adapter.Scan(context.Background(), func(adv Advertisement) {
		got = append(got, adv)
	}); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Scan() streamed %d advertisements, want 2", len(got))
	}
}
