package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Logger"
	metrics "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Metrics"
	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models/telemetry"
	interfaces "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Repository/Interfaces"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrUnsupportedRecord  = errors.New("unsupported record")
	ErrReconnectExhausted = errors.New("rabbitmq reconnect attempts exhausted")
	ErrPublisherClosed    = errors.New("publisher is closed")
)

// Options configures a RabbitMQPublisher
type Options struct {
	URL         string
	SensorQueue string
	PumpQueue   string
	// DeviceAddress replaces the device address of every published record
	DeviceAddress     string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	Dialer            Dialer
}

// RabbitMQPublisher publishes records to one durable queue per record kind.
// A lost connection is re-established lazily on the next Publish.
type RabbitMQPublisher struct {
	opts   Options
	queues map[telemetry.Kind]string
	logger *logger.Logger

	mu     sync.Mutex
	conn   Connection
	ch     Channel
	closed bool
}

var _ interfaces.RecordPublisher = (*RabbitMQPublisher)(nil)

func NewRabbitMQPublisher(opts Options, log *logger.Logger) *RabbitMQPublisher {
	if opts.Dialer == nil {
		opts.Dialer = DialAMQP
	}
	if opts.ReconnectAttempts < 1 {
		opts.ReconnectAttempts = 3
	}
	return &RabbitMQPublisher{
		opts: opts,
		queues: map[telemetry.Kind]string{
			telemetry.KindSensorReading: opts.SensorQueue,
			telemetry.KindPumpEvent:     opts.PumpQueue,
		},
		logger: log.WithComponent("rabbitmq_publisher"),
	}
}

// Connect opens the connection and declares the queues
func (p *RabbitMQPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	return p.reconnectLocked(ctx)
}

// Publish sends a copy of record, with the device address replaced, to the record's queue
func (p *RabbitMQPublisher) Publish(ctx context.Context, record telemetry.Record) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", ErrUnsupportedRecord)
	}
	queue, ok := p.queues[record.Kind()]
	if !ok {
		return fmt.Errorf("%w: kind %s", ErrUnsupportedRecord, record.Kind())
	}

	body, err := anonymize(record, p.opts.DeviceAddress).Marshal()
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", record.Kind(), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	if !p.connectedLocked() {
		p.logger.Logger.Warn().Str("queue", queue).Msg("RabbitMQ connection is not open, reconnecting before publish")
		if err := p.reconnectLocked(ctx); err != nil {
			metrics.QueuePublishes.WithLabelValues(queue, metrics.ResultError).Inc()
			return err
		}
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         record.Kind().String(),
		AppId:        "easygrow-consumer",
		Body:         body,
	}

	if err := p.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		metrics.QueuePublishes.WithLabelValues(queue, metrics.ResultError).Inc()
		return fmt.Errorf("failed to publish to queue %s: %w", queue, err)
	}

	metrics.QueuePublishes.WithLabelValues(queue, metrics.ResultOK).Inc()
	p.logger.Logger.Debug().Str("queue", queue).Str("message_id", msg.MessageId).Bytes("body", body).Msg("Message published to RabbitMQ")
	return nil
}

// IsConnected reports whether both the connection and the channel are open
func (p *RabbitMQPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectedLocked()
}

// Close closes the channel and the connection. Safe to call more than once.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.teardownLocked()
	p.logger.Info("RabbitMQ publisher closed")
	return nil
}

// anonymize is the identity override stage: published records never carry the
// reporting device's real address.
func anonymize(record telemetry.Record, sentinel string) telemetry.Record {
	return record.WithDeviceAddress(sentinel)
}

func (p *RabbitMQPublisher) connectedLocked() bool {
	return p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed()
}

func (p *RabbitMQPublisher) reconnectLocked(ctx context.Context) error {
	p.teardownLocked()

	var lastErr error
	for attempt := 1; attempt <= p.opts.ReconnectAttempts; attempt++ {
		err := p.connectOnceLocked()
		if err == nil {
			metrics.QueueReconnectAttempts.WithLabelValues(metrics.ResultOK).Inc()
			p.logger.Logger.Info().Int("attempt", attempt).Str("sensor_queue", p.opts.SensorQueue).Str("pump_queue", p.opts.PumpQueue).Msg("Connected to RabbitMQ and declared queues")
			return nil
		}
		lastErr = err
		metrics.QueueReconnectAttempts.WithLabelValues(metrics.ResultError).Inc()
		p.logger.WithError(err).WithFields(map[string]interface{}{"attempt": attempt, "max_attempts": p.opts.ReconnectAttempts}).Error("RabbitMQ connection attempt failed")

		if attempt == p.opts.ReconnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrReconnectExhausted, ctx.Err())
		case <-time.After(p.opts.ReconnectDelay):
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrReconnectExhausted, p.opts.ReconnectAttempts, lastErr)
}

func (p *RabbitMQPublisher) connectOnceLocked() error {
	conn, err := p.opts.Dialer(p.opts.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	for _, queue := range []string{p.opts.SensorQueue, p.opts.PumpQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
	}

	p.conn, p.ch = conn, ch
	return nil
}

func (p *RabbitMQPublisher) teardownLocked() {
	if p.ch != nil && !p.ch.IsClosed() {
		if err := p.ch.Close(); err != nil {
			p.logger.WithError(err).Debug("Ignoring error while closing RabbitMQ channel")
		}
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			p.logger.WithError(err).Debug("Ignoring error while closing RabbitMQ connection")
		}
	}
	p.conn, p.ch = nil, nil
}
