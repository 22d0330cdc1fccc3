package telemetry

import (
	"encoding/json"
	"time"
)

// TimestampLayout is ISO-8601 with microsecond precision, the format consumers of the queues parse.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Kind tags the variants of Record
type Kind int

const (
	KindUnknown Kind = iota
	KindSensorReading
	KindPumpEvent
)

// String returns the name used in message properties and metric labels
func (k Kind) String() string {
	switch k {
	case KindSensorReading:
		return "sensor_reading"
	case KindPumpEvent:
		return "pump_event"
	default:
		return "unknown"
	}
}

// Record is a closed set: only SensorReading and PumpEvent implement it.
type Record interface {
	Kind() Kind
	Address() string
	// WithDeviceAddress returns a copy carrying addr. The receiver is left as is.
	WithDeviceAddress(addr string) Record
	// Marshal serializes the record in its queue wire format.
	Marshal() ([]byte, error)

	sealed()
}

// Timestamp is a time that serializes with TimestampLayout
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(TimestampLayout))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}
