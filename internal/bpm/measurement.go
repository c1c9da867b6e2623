// Package bpm implements acquisition and decoding of blood-pressure
// measurements from a Silvercrest BLE cuff. The cuff only hands a reading
// over while it is advertising, so the flow is: watch advertisements
// passively, and when a poll is due, connect briefly and wait for a single
// measurement notification.
package bpm

import (
	"errors"
	"fmt"
	"time"
)

// MinPayloadLen is the shortest measurement notification the cuff sends.
const MinPayloadLen = 17

var (
	// ErrMalformedPayload reports a notification too short to decode.
	ErrMalformedPayload = errors.New("bpm: malformed payload")
	// ErrInvalidTimestamp reports an impossible calendar date in an
	// otherwise valid payload.
	ErrInvalidTimestamp = errors.New("bpm: invalid timestamp")
)

// Measurement is one decoded blood-pressure record.
//
// Arterial (mean arterial pressure) and UserSlot are present on the wire and
// decoded for completeness; the cuff's sensor readings do not surface them.
type Measurement struct {
	Systolic  uint16 // mmHg
	Diastolic uint16 // mmHg
	Arterial  uint16 // mmHg
	Pulse     uint16 // bpm
	UserSlot  uint8

	// MeasuredAt is the cuff's own clock reading, placed in the host's
	// local zone. Zero when the payload carried an impossible date.
	MeasuredAt time.Time
}

// Decode parses a measurement notification payload.
//
// Payload layout, multi-byte fields little-endian:
//
//	[0]      unused
//	[1:3]    systolic
//	[3:5]    diastolic
//	[5:7]    mean arterial
//	[7:9]    year
//	[9]      month
//	[10]     day
//	[11]     hour
//	[12]     minute
//	[13]     unused
//	[14:16]  pulse
//	[16]     user slot
//
// A payload shorter than MinPayloadLen yields (nil, ErrMalformedPayload). An
// impossible date yields the decoded measurement together with an error
// wrapping ErrInvalidTimestamp: the pressure fields are usable even when the
// cuff's clock is not.
func Decode(data []byte) (*Measurement, error) {
	if len(data) < MinPayloadLen {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrMalformedPayload, len(data), MinPayloadLen)
	}

	m := &Measurement{
		Systolic:  uint16(data[1]) | uint16(data[2])<<8,
		Diastolic: uint16(data[3]) | uint16(data[4])<<8,
		Arterial:  uint16(data[5]) | uint16(data[6])<<8,
		Pulse:     uint16(data[14]) | uint16(data[15])<<8,
		UserSlot:  data[16],
	}

	year := int(data[7]) | int(data[8])<<8
	month, day := int(data[9]), int(data[10])
	hour, minute := int(data[11]), int(data[12])

	ts, err := calendarTime(year, month, day, hour, minute)
	if err != nil {
		return m, err
	}
	m.MeasuredAt = ts
	return m, nil
}

// calendarTime builds a local-zone instant, rejecting combinations that
// time.Date would silently normalize (month 0, day 32, hour 25).
func calendarTime(year, month, day, hour, minute int) (time.Time, error) {
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d %02d:%02d",
			ErrInvalidTimestamp, year, month, day, hour, minute)
	}
	return t, nil
}
