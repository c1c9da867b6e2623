package bpm

import (
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/bpcuff/internal/ble"
)

// DefaultUpdateInterval is how long a poll result stays fresh before a new
// advertisement should trigger another active poll.
const DefaultUpdateInterval = 60 * time.Second

// Device identity reported for every cuff; the advertisement carries no
// manufacturer data to refine it.
const (
	Manufacturer = "Silvercrest"
	Model        = "Blood Pressure Measurement"
)

// DeviceInfo is the identity metadata derived from advertisements.
type DeviceInfo struct {
	Address      string
	Name         string
	Manufacturer string
	Model        string
	RSSI         int
	LastSeen     time.Time
}

// Listener consumes advertisements from one cuff. It only maintains identity
// metadata and answers the poll-due question; it never opens a connection —
// triggering the actual session belongs to the Poller.
type Listener struct {
	// UpdateInterval overrides DefaultUpdateInterval when positive.
	UpdateInterval time.Duration

	mu   sync.Mutex
	info DeviceInfo

	now func() time.Time // test hook
}

// NewListener returns a listener with the default update interval.
func NewListener() *Listener {
	return &Listener{UpdateInterval: DefaultUpdateInterval, now: time.Now}
}

// HandleAdvertisement folds one advertisement into the device identity. The
// display name combines the advertised name with a shortened address so two
// cuffs of the same model stay distinguishable.
func (l *Listener) HandleAdvertisement(adv ble.Advertisement) {
	name := strings.TrimSpace(adv.LocalName)
	if name == "" {
		name = Manufacturer
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.info = DeviceInfo{
		Address:      adv.Address,
		Name:         name + " " + ShortAddress(adv.Address),
		Manufacturer: Manufacturer,
		Model:        Model,
		RSSI:         adv.RSSI,
		LastSeen:     adv.Seen,
	}
}

// Device returns the most recently observed identity.
func (l *Listener) Device() DeviceInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.info
}

// PollDue reports whether an active poll should run: always before the first
// poll, then whenever the last one is older than the update interval.
func (l *Listener) PollDue(lastPoll time.Time) bool {
	if lastPoll.IsZero() {
		return true
	}
	interval := l.UpdateInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	return l.now().Sub(lastPoll) > interval
}

// ShortAddress reduces a device address to its last two separator-delimited
// groups, the form used in display names ("AA:BB:CC:DD:EE:FF" -> "EEFF").
// CoreBluetooth UUIDs (macOS) shorten to their last two dash groups.
func ShortAddress(address string) string {
	parts := strings.Split(strings.ReplaceAll(address, "-", ":"), ":")
	if len(parts) < 2 {
		return strings.ToUpper(address)
	}
	return strings.ToUpper(parts[len(parts)-2] + parts[len(parts)-1])
}
