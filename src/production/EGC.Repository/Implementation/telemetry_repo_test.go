package implementation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models/telemetry"
	interfaces "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Repository/Interfaces"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	id  int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int64)) = r.id
	return nil
}

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	row     fakeRow
	execErr error
	queries [][]any
	execs   []execCall
}

func (db *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	db.queries = append(db.queries, args)
	return db.row
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execs = append(db.execs, execCall{sql: sql, args: args})
	if db.execErr != nil {
		return pgconn.CommandTag{}, db.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (db *fakeDB) Ping(context.Context) error { return nil }

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func TestSaveSensorReading_ResolvesSensorAndInserts(t *testing.T) {
	db := &fakeDB{row: fakeRow{id: 12}}
	repo := NewPostgresTelemetryRepository(db, time.Second)

	err := repo.SaveSensorReading(context.Background(), telemetry.SensorReading{
		DeviceAddress: "AA:BB", SensorLabel: "humedad1", Value: 42.5, Timestamp: now,
	})
	require.NoError(t, err)

	require.Len(t, db.queries, 1)
	assert.Equal(t, []any{"humedad1", "AA:BB"}, db.queries[0])

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "INSERT INTO datos_sensores")
	assert.Equal(t, []any{int64(12), "AA:BB", 42.5, now}, db.execs[0].args)
}

func TestSaveSensorReading_LookupMiss(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	repo := NewPostgresTelemetryRepository(db, time.Second)

	err := repo.SaveSensorReading(context.Background(), telemetry.SensorReading{DeviceAddress: "AA:BB", SensorLabel: "x"})

	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrSensorNotFound)
	assert.Empty(t, db.execs)
}

func TestSaveSensorReading_LookupFailure(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: errors.New("connection reset")}}
	repo := NewPostgresTelemetryRepository(db, time.Second)

	err := repo.SaveSensorReading(context.Background(), telemetry.SensorReading{})

	require.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrSensorNotFound)
	assert.Empty(t, db.execs)
}

func TestSavePumpActivation(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresTelemetryRepository(db, time.Second)
	seconds := int64(45)

	err := repo.SavePumpActivation(context.Background(), telemetry.PumpEvent{
		DeviceAddress: "CC:DD", SensorID: 3, OnDurationSeconds: &seconds, Timestamp: now,
	})
	require.NoError(t, err)

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "duracion_segundos")
	assert.Equal(t, []any{int64(3), "CC:DD", now, int64(45)}, db.execs[0].args)
}

func TestSavePumpActivation_RejectsOpenCycle(t *testing.T) {
	db := &fakeDB{}
	repo := NewPostgresTelemetryRepository(db, time.Second)

	err := repo.SavePumpActivation(context.Background(), telemetry.PumpEvent{SensorID: 3})

	require.Error(t, err)
	assert.Empty(t, db.execs)
}

func TestSavePumpActivation_ExecFailure(t *testing.T) {
	db := &fakeDB{execErr: errors.New("duplicate key")}
	repo := NewPostgresTelemetryRepository(db, time.Second)
	seconds := int64(10)

	err := repo.SavePumpActivation(context.Background(), telemetry.PumpEvent{SensorID: 3, OnDurationSeconds: &seconds})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
}
