package bpm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chaz8081/bpcuff/internal/ble"
)

func testAdvertisement() ble.Advertisement {
	return ble.Advertisement{
		Address:   "AA:BB:CC:DD:EE:FF",
		LocalName: "SBM67",
		RSSI:      -67,
		Seen:      time.Now(),
	}
}

func TestPollerRunsSessionWhenDue(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.conn.char.autoNotify = validPayload()

	p := NewPoller(adapter, NewListener(), discardLogger())
	outcome := p.HandleAdvertisement(context.Background(), testAdvertisement())

	if outcome == nil {
		t.Fatal("HandleAdvertisement() = nil, want an outcome on first advertisement")
	}
	if outcome.Measurement == nil {
		t.Error("outcome has no measurement")
	}
	if p.LastPoll().IsZero() {
		t.Error("LastPoll() still zero after a poll")
	}
}

func TestPollerSkipsWhenFresh(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.conn.char.autoNotify = validPayload()

	p := NewPoller(adapter, NewListener(), discardLogger())
	if p.HandleAdvertisement(context.Background(), testAdvertisement()) == nil {
		t.Fatal("first advertisement did not poll")
	}
	if p.HandleAdvertisement(context.Background(), testAdvertisement()) != nil {
		t.Error("second advertisement polled inside the update interval")
	}
	if adapter.connectCount() != 1 {
		t.Errorf("connects = %d, want 1", adapter.connectCount())
	}
}

func TestPollerExclusiveSession(t *testing.T) {
	// A slow adapter holds the first session open while concurrent
	// advertisements arrive; none of them may start a second session.
	adapter := newFakeAdapter()

	listener := NewListener()
	p := NewPoller(adapter, listener, discardLogger())
	p.Timeout = 200 * time.Millisecond

	var outcomes atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.HandleAdvertisement(context.Background(), testAdvertisement()) != nil {
				outcomes.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := outcomes.Load(); got != 1 {
		t.Errorf("%d sessions ran, want exactly 1", got)
	}
	if adapter.connectCount() != 1 {
		t.Errorf("connects = %d, want 1", adapter.connectCount())
	}
}

func TestPollerMetadataUpdatesWhileSkipping(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.conn.char.autoNotify = validPayload()

	listener := NewListener()
	p := NewPoller(adapter, listener, discardLogger())
	p.HandleAdvertisement(context.Background(), testAdvertisement())

	// A fresher advertisement with a different RSSI only refreshes identity.
	adv := testAdvertisement()
	adv.RSSI = -42
	if p.HandleAdvertisement(context.Background(), adv) != nil {
		t.Fatal("metadata advertisement started a session")
	}
	if got := listener.Device().RSSI; got != -42 {
		t.Errorf("listener RSSI = %d, want -42", got)
	}
}
