package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models/telemetry"
)

// ErrDecode is returned for payloads that are not a single JSON object
var ErrDecode = errors.New("payload is not a JSON object")

// ValidationError lists the fields of a decoded payload that are missing or of the wrong type
type ValidationError struct {
	Route  Route
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s payload: missing or invalid fields: %s", e.Route, strings.Join(e.Fields, ", "))
}

func decodeObject(payload []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: null", ErrDecode)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrDecode)
	}
	return obj, nil
}

// fields collects typed values and remembers which keys failed
type fields struct {
	obj     map[string]interface{}
	invalid []string
}

func (f *fields) str(key string) string {
	s, ok := f.obj[key].(string)
	if !ok {
		f.invalid = append(f.invalid, key)
	}
	return s
}

func (f *fields) float(key string) float64 {
	n, ok := f.obj[key].(json.Number)
	if !ok {
		f.invalid = append(f.invalid, key)
		return 0
	}
	v, err := n.Float64()
	if err != nil {
		f.invalid = append(f.invalid, key)
		return 0
	}
	return v
}

func (f *fields) int(key string) int64 {
	v, ok := wholeNumber(f.obj[key])
	if !ok {
		f.invalid = append(f.invalid, key)
	}
	return v
}

// optionalInt treats a missing key and an explicit null the same way
func (f *fields) optionalInt(key string) *int64 {
	raw, present := f.obj[key]
	if !present || raw == nil {
		return nil
	}
	v, ok := wholeNumber(raw)
	if !ok {
		f.invalid = append(f.invalid, key)
		return nil
	}
	return &v
}

func (f *fields) err(route Route) error {
	if len(f.invalid) == 0 {
		return nil
	}
	return &ValidationError{Route: route, Fields: f.invalid}
}

// wholeNumber accepts 7 and 7.0 but not 7.5 or "7"
func wholeNumber(raw interface{}) (int64, bool) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, false
	}
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	v, err := n.Float64()
	if err != nil || v != math.Trunc(v) || v >= 1<<63 || v < -(1<<63) {
		return 0, false
	}
	return int64(v), true
}

func decodeSensorReading(obj map[string]interface{}, now time.Time) (telemetry.SensorReading, error) {
	f := &fields{obj: obj}
	reading := telemetry.SensorReading{
		DeviceAddress: f.str(telemetry.FieldDeviceAddress),
		Value:         f.float(telemetry.FieldValue),
		SensorLabel:   f.str(telemetry.FieldSensorLabel),
		Timestamp:     now,
	}
	if err := f.err(RouteSensor); err != nil {
		return telemetry.SensorReading{}, err
	}
	return reading, nil
}

func decodePumpEvent(obj map[string]interface{}, now time.Time) (telemetry.PumpEvent, error) {
	f := &fields{obj: obj}
	event := telemetry.PumpEvent{
		DeviceAddress:     f.str(telemetry.FieldDeviceAddress),
		EventKind:         f.str(telemetry.FieldEventKind),
		HumidityValue:     f.float(telemetry.FieldHumidityValue),
		SensorID:          f.int(telemetry.FieldSensorID),
		OnDurationSeconds: f.optionalInt(telemetry.FieldOnDurationSeconds),
		Timestamp:         now,
	}
	if err := f.err(RoutePump); err != nil {
		return telemetry.PumpEvent{}, err
	}
	return event, nil
}
