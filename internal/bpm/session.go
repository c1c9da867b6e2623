package bpm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/bpcuff/internal/ble"
)

// NotifyTimeout bounds how long a session waits for the cuff to push its
// measurement after connecting.
const NotifyTimeout = 15 * time.Second

// Outcome is the terminal result of one acquisition session. When the cuff
// never delivered a notification, the snapshot carries device metadata
// (signal strength) only and Measurement is nil.
type Outcome struct {
	Device      DeviceInfo
	Readings    []Reading
	Measurement *Measurement
	PolledAt    time.Time
}

// Session drives one active acquisition against the cuff: connect, subscribe
// to the measurement characteristic, wait for a single notification, then
// tear everything down. A Session value is good for one Poll call; readings
// accumulate in a sink scoped to that call.
type Session struct {
	adapter  ble.Adapter
	listener *Listener
	log      *slog.Logger

	// Timeout falls back to NotifyTimeout when zero.
	Timeout time.Duration
}

// NewSession returns a session for the given transport and listener. The
// logger is required; the session never surfaces errors any other way.
func NewSession(adapter ble.Adapter, listener *Listener, log *slog.Logger) *Session {
	return &Session{adapter: adapter, listener: listener, log: log, Timeout: NotifyTimeout}
}

// Poll runs the full acquisition against the device at address. It never
// returns an error: every failure mode is logged and folded into the outcome,
// and the transport is released on every exit path. Only a connect failure
// cuts the session short; a failed subscription or a malformed payload still
// runs the bounded wait and the full teardown.
func (s *Session) Poll(ctx context.Context, address string) *Outcome {
	device := s.listener.Device()
	outcome := &Outcome{Device: device, PolledAt: time.Now()}

	// mu guards the sink and measurement against the notification callback,
	// which runs on the transport's goroutine. A late notification racing the
	// timeout must not tear the snapshot.
	var mu sync.Mutex
	sink := NewSink()
	sink.Record(KeySignalStrength, "Signal Strength", UnitDBm, device.RSSI)

	snapshot := func() []Reading {
		mu.Lock()
		defer mu.Unlock()
		return sink.Snapshot()
	}

	s.log.Debug("[BLE] connecting", "address", address)
	conn, err := s.adapter.Connect(ctx, address)
	if err != nil {
		s.log.Error("[BLE] connect failed", "address", address, "error", err)
		outcome.Readings = snapshot()
		return outcome
	}
	defer func() {
		if err := conn.Disconnect(); err != nil {
			s.log.Error("[BLE] disconnect failed", "address", address, "error", err)
		}
		s.log.Debug("[BLE] disconnected", "address", address)
	}()

	notified := make(chan struct{})
	var once sync.Once
	var measurement *Measurement

	handle := func(data []byte) {
		defer once.Do(func() { close(notified) })

		s.log.Debug("[BLE] notification received", "bytes", len(data))
		m, err := Decode(data)
		if m == nil {
			s.log.Error("[BLE] payload decode failed", "error", err)
			return
		}
		if err != nil {
			// The vitals decoded fine; only the cuff's clock is off.
			s.log.Error("[BLE] measured date unusable", "error", err)
		}

		mu.Lock()
		defer mu.Unlock()
		measurement = m
		sink.Record(KeySystolic, "Systolic", UnitMmHg, m.Systolic)
		sink.Record(KeyDiastolic, "Diastolic", UnitMmHg, m.Diastolic)
		sink.Record(KeyPulse, "Pulse", UnitBPM, m.Pulse)
		if !m.MeasuredAt.IsZero() {
			sink.Record(KeyTimestamp, "Measured Date", "", m.MeasuredAt)
		}
	}

	char, err := s.subscribe(conn, handle)
	if err != nil {
		// A failed subscription means the notification can never arrive; the
		// bounded wait below still governs the session, matching the cuff's
		// upstream integration.
		s.log.Error("[BLE] subscribe failed", "address", address, "error", err)
	}
	if char != nil {
		defer func() {
			if err := char.Unsubscribe(); err != nil {
				s.log.Error("[BLE] unsubscribe failed", "address", address, "error", err)
			}
		}()
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = NotifyTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-notified:
	case <-timer.C:
		s.log.Warn("[BLE] timed out waiting for measurement", "address", address, "timeout", timeout)
	case <-ctx.Done():
		s.log.Warn("[BLE] poll cancelled", "address", address, "error", ctx.Err())
	}

	mu.Lock()
	outcome.Measurement = measurement
	mu.Unlock()
	outcome.Readings = snapshot()
	return outcome
}

// subscribe resolves the measurement characteristic and arms notifications.
// The characteristic is returned even when arming fails so the caller can
// still attempt the unsubscribe during teardown.
func (s *Session) subscribe(conn ble.Connection, handle func([]byte)) (ble.Characteristic, error) {
	char, err := conn.DiscoverCharacteristic(ble.ServiceUUID, ble.MeasurementCharUUID)
	if err != nil {
		return nil, err
	}
	if err := char.Subscribe(handle); err != nil {
		return char, err
	}
	return char, nil
}
