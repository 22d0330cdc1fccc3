package implementation

import (
	"context"
	"errors"
	"fmt"
	"time"

	metrics "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Metrics"
	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models/telemetry"
	interfaces "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Repository/Interfaces"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	findSensorIDQuery = `
		SELECT s.id_sensor
		FROM sensores s
		JOIN dispositivos d ON s.id_dispositivo = d.id_dispositivo
		WHERE s.descripcion = $1 AND d.mac_address = $2
	`

	insertSensorReadingQuery = `
		INSERT INTO datos_sensores (id_sensor, mac_address, valor, fecha)
		VALUES ($1, $2, $3, $4)
	`

	insertPumpActivationQuery = `
		INSERT INTO activaciones_bomba (id_sensor, mac_address, fecha, duracion_segundos)
		VALUES ($1, $2, $3, $4)
	`
)

// DB is the subset of *pgxpool.Pool used by the repository
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

type PostgresTelemetryRepository struct {
	db           DB
	writeTimeout time.Duration
}

var _ interfaces.TelemetryRepository = (*PostgresTelemetryRepository)(nil)

func NewPostgresTelemetryRepository(db DB, writeTimeout time.Duration) *PostgresTelemetryRepository {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &PostgresTelemetryRepository{db: db, writeTimeout: writeTimeout}
}

func (r *PostgresTelemetryRepository) SaveSensorReading(ctx context.Context, reading telemetry.SensorReading) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	sensorID, err := r.findSensorID(ctx, reading.SensorLabel, reading.DeviceAddress)
	if err != nil {
		if errors.Is(err, interfaces.ErrSensorNotFound) {
			metrics.StoreWrites.WithLabelValues("save_sensor_reading", metrics.ResultMiss).Inc()
		} else {
			metrics.StoreWrites.WithLabelValues("save_sensor_reading", metrics.ResultError).Inc()
		}
		return err
	}

	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("insert_sensor_reading").Observe(time.Since(start).Seconds())
	}()

	_, err = r.db.Exec(ctx, insertSensorReadingQuery, sensorID, reading.DeviceAddress, reading.Value, reading.Timestamp)
	if err != nil {
		metrics.StoreWrites.WithLabelValues("save_sensor_reading", metrics.ResultError).Inc()
		return fmt.Errorf("failed to insert sensor reading for sensor %d: %w", sensorID, err)
	}

	metrics.StoreWrites.WithLabelValues("save_sensor_reading", metrics.ResultOK).Inc()
	return nil
}

func (r *PostgresTelemetryRepository) SavePumpActivation(ctx context.Context, event telemetry.PumpEvent) error {
	if !event.CompletedCycle() {
		return fmt.Errorf("pump event for sensor %d has no completed cycle duration", event.SensorID)
	}

	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("insert_pump_activation").Observe(time.Since(start).Seconds())
	}()

	_, err := r.db.Exec(ctx, insertPumpActivationQuery, event.SensorID, event.DeviceAddress, event.Timestamp, *event.OnDurationSeconds)
	if err != nil {
		metrics.StoreWrites.WithLabelValues("save_pump_activation", metrics.ResultError).Inc()
		return fmt.Errorf("failed to insert pump activation for sensor %d: %w", event.SensorID, err)
	}

	metrics.StoreWrites.WithLabelValues("save_pump_activation", metrics.ResultOK).Inc()
	return nil
}

func (r *PostgresTelemetryRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PostgresTelemetryRepository) findSensorID(ctx context.Context, label, macAddress string) (int64, error) {
	start := time.Now()
	defer func() {
		metrics.DBQueryDuration.WithLabelValues("find_sensor_id").Observe(time.Since(start).Seconds())
	}()

	var sensorID int64
	err := r.db.QueryRow(ctx, findSensorIDQuery, label, macAddress).Scan(&sensorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: nombre=%q mac_address=%q", interfaces.ErrSensorNotFound, label, macAddress)
		}
		return 0, fmt.Errorf("failed to look up sensor: %w", err)
	}
	return sensorID, nil
}
