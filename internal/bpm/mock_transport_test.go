package bpm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/chaz8081/bpcuff/internal/ble"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCharacteristic counts subscription traffic and lets tests inject
// notifications. When autoNotify is set, the payload is delivered on the
// subscriber's callback as soon as the subscription is armed, standing in for
// the cuff pushing its record right after connect.
type fakeCharacteristic struct {
	mu             sync.Mutex
	callback       func([]byte)
	autoNotify     []byte
	subscribeErr   error
	unsubscribeErr error
	subscribes     int
	unsubscribes   int
}

func (c *fakeCharacteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	c.subscribes++
	if c.subscribeErr != nil {
		c.mu.Unlock()
		return c.subscribeErr
	}
	c.callback = cb
	auto := c.autoNotify
	c.mu.Unlock()

	if auto != nil {
		cb(auto)
	}
	return nil
}

func (c *fakeCharacteristic) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribes++
	c.callback = nil
	return c.unsubscribeErr
}

func (c *fakeCharacteristic) notify(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

func (c *fakeCharacteristic) counts() (subscribes, unsubscribes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribes, c.unsubscribes
}

// fakeConnection hands out one characteristic and counts disconnects.
type fakeConnection struct {
	mu          sync.Mutex
	char        *fakeCharacteristic
	discoverErr error
	disconnects int
}

func (c *fakeConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (ble.Characteristic, error) {
	if c.discoverErr != nil {
		return nil, c.discoverErr
	}
	if charUUID != ble.MeasurementCharUUID {
		return nil, errors.New("fake: unknown characteristic")
	}
	return c.char, nil
}

func (c *fakeConnection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	return nil
}

func (c *fakeConnection) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// fakeAdapter produces fakeConnections, or fails every Connect.
type fakeAdapter struct {
	mu         sync.Mutex
	connectErr error
	conn       *fakeConnection
	connects   int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{conn: &fakeConnection{char: &fakeCharacteristic{}}}
}

func (a *fakeAdapter) Enable() error { return nil }

func (a *fakeAdapter) Scan(_ context.Context, _ func(ble.Advertisement)) error {
	return nil
}

func (a *fakeAdapter) Connect(_ context.Context, _ string) (ble.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connects++
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	return a.conn, nil
}

func (a *fakeAdapter) connectCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}

var _ ble.Adapter = (*fakeAdapter)(nil)
