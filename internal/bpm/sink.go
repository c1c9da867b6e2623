package bpm

// SensorKey identifies one of the readings the cuff produces.
type SensorKey string

const (
	KeySystolic       SensorKey = "systolic"
	KeyDiastolic      SensorKey = "diastolic"
	KeyPulse          SensorKey = "pulse"
	KeySignalStrength SensorKey = "signal_strength"
	KeyTimestamp      SensorKey = "timestamp"
)

// Units attached to readings.
const (
	UnitMmHg = "mmHg"
	UnitBPM  = "bpm"
	UnitDBm  = "dBm"
)

// Reading is one named, unit-tagged sensor value.
type Reading struct {
	Key   SensorKey `json:"key"`
	Name  string    `json:"name"`
	Unit  string    `json:"unit,omitempty"`
	Value any       `json:"value"`
}

// Sink accumulates readings for one acquisition session. Keys are unique;
// recording a key again replaces the earlier value in place, so insertion
// order stays stable. Values are stored as-is: the cuff is trusted, there is
// deliberately no range checking.
type Sink struct {
	readings []Reading
	index    map[SensorKey]int
}

// NewSink returns an empty sink.
func NewSink() *Sink {
	return &Sink{index: make(map[SensorKey]int)}
}

// Record appends the reading, or replaces an existing one with the same key.
func (s *Sink) Record(key SensorKey, name, unit string, value any) {
	r := Reading{Key: key, Name: name, Unit: unit, Value: value}
	if i, ok := s.index[key]; ok {
		s.readings[i] = r
		return
	}
	s.index[key] = len(s.readings)
	s.readings = append(s.readings, r)
}

// Snapshot returns a copy of the accumulated readings in insertion order.
// It does not clear the sink and may be called any number of times.
func (s *Sink) Snapshot() []Reading {
	out := make([]Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// Len returns the number of distinct readings recorded so far.
func (s *Sink) Len() int { return len(s.readings) }
