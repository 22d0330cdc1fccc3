package telemetry

import (
	"encoding/json"
	"time"
)

const (
	FieldEventKind         = "evento"
	FieldHumidityValue     = "valor_humedad"
	FieldSensorID          = "id_sensor"
	FieldOnDurationSeconds = "tiempo_encendida_seg"
)

// PumpEvent is a pump status change. OnDurationSeconds is only set once an
// activation cycle has finished.
type PumpEvent struct {
	DeviceAddress     string
	EventKind         string
	SensorID          int64
	HumidityValue     float64
	OnDurationSeconds *int64
	Timestamp         time.Time
}

// PumpEventMessage is the queue representation of a PumpEvent
type PumpEventMessage struct {
	DeviceAddress     string    `json:"mac_address"`
	EventKind         string    `json:"evento"`
	SensorID          int64     `json:"id_sensor"`
	HumidityValue     float64   `json:"valor_humedad"`
	OnDurationSeconds *int64    `json:"tiempo_encendida_seg"`
	Timestamp         Timestamp `json:"fecha"`
}

// CompletedCycle reports whether the event closes an activation cycle.
// Only completed cycles are stored.
func (e PumpEvent) CompletedCycle() bool {
	return e.OnDurationSeconds != nil && *e.OnDurationSeconds > 0
}

func (e PumpEvent) Kind() Kind { return KindPumpEvent }

func (e PumpEvent) Address() string { return e.DeviceAddress }

func (e PumpEvent) WithDeviceAddress(addr string) Record {
	e.DeviceAddress = addr
	return e
}

func (e PumpEvent) Marshal() ([]byte, error) {
	return json.Marshal(PumpEventMessage{
		DeviceAddress:     e.DeviceAddress,
		EventKind:         e.EventKind,
		SensorID:          e.SensorID,
		HumidityValue:     e.HumidityValue,
		OnDurationSeconds: e.OnDurationSeconds,
		Timestamp:         Timestamp(e.Timestamp),
	})
}

func (PumpEvent) sealed() {}
