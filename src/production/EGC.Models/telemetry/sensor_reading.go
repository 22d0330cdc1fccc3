package telemetry

import (
	"encoding/json"
	"time"
)

// Payload keys shared by the MQTT input and the queue output
const (
	FieldDeviceAddress = "mac_address"
	FieldSensorLabel   = "nombre"
	FieldValue         = "valor"
	FieldTimestamp     = "fecha"
)

// SensorReading is one measurement reported by a device sensor.
// Timestamp is the processing time; device clocks are not trusted.
type SensorReading struct {
	DeviceAddress string
	SensorLabel   string
	Value         float64
	Timestamp     time.Time
}

// SensorReadingMessage is the queue representation of a SensorReading
type SensorReadingMessage struct {
	DeviceAddress string    `json:"mac_address"`
	SensorLabel   string    `json:"nombre"`
	Value         float64   `json:"valor"`
	Timestamp     Timestamp `json:"fecha"`
}

func (r SensorReading) Kind() Kind { return KindSensorReading }

func (r SensorReading) Address() string { return r.DeviceAddress }

func (r SensorReading) WithDeviceAddress(addr string) Record {
	r.DeviceAddress = addr
	return r
}

func (r SensorReading) Marshal() ([]byte, error) {
	return json.Marshal(SensorReadingMessage{
		DeviceAddress: r.DeviceAddress,
		SensorLabel:   r.SensorLabel,
		Value:         r.Value,
		Timestamp:     Timestamp(r.Timestamp),
	})
}

func (SensorReading) sealed() {}
