package bpm

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/bpcuff/internal/ble"
)

// Poller owns the poll schedule for a single cuff and guarantees at most one
// acquisition session in flight. Advertisements may arrive from the scan
// callback at any rate; while a session is running they only refresh the
// listener's metadata.
type Poller struct {
	adapter  ble.Adapter
	listener *Listener
	log      *slog.Logger

	// Timeout overrides the session notification timeout when positive.
	Timeout time.Duration

	inFlight atomic.Bool

	mu       sync.Mutex
	lastPoll time.Time
}

// NewPoller returns a poller that has never polled.
func NewPoller(adapter ble.Adapter, listener *Listener, log *slog.Logger) *Poller {
	return &Poller{adapter: adapter, listener: listener, log: log}
}

// HandleAdvertisement feeds one advertisement through the listener and, when
// a poll is due and no session is running, runs one. It returns the outcome
// of the session it ran, or nil when it only updated metadata.
func (p *Poller) HandleAdvertisement(ctx context.Context, adv ble.Advertisement) *Outcome {
	p.listener.HandleAdvertisement(adv)

	if !p.listener.PollDue(p.LastPoll()) {
		return nil
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		p.log.Debug("[BLE] poll already in flight, skipping", "address", adv.Address)
		return nil
	}
	defer p.inFlight.Store(false)

	session := NewSession(p.adapter, p.listener, p.log)
	if p.Timeout > 0 {
		session.Timeout = p.Timeout
	}
	outcome := session.Poll(ctx, adv.Address)

	p.mu.Lock()
	p.lastPoll = outcome.PolledAt
	p.mu.Unlock()
	return outcome
}

// LastPoll returns when the previous session started, or the zero time before
// the first one.
func (p *Poller) LastPoll() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPoll
}
