package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	logger "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Logger"
	metrics "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Metrics"
	egcmodels "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models"
	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models/telemetry"
	interfaces "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Repository/Interfaces"
	"github.com/google/uuid"
)

const payloadExcerpt = 256

// Outcome is what became of one inbound message
type Outcome int

const (
	OutcomeDispatched Outcome = iota
	OutcomeDecodeError
	OutcomeValidationError
	OutcomeUnrecognized
	OutcomeForwardFailed
	OutcomeInternalError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeDecodeError:
		return "decode_error"
	case OutcomeValidationError:
		return "validation_error"
	case OutcomeUnrecognized:
		return "unrecognized"
	case OutcomeForwardFailed:
		return "forward_failed"
	case OutcomeInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Route names the topic family a message arrived on
type Route string

const (
	RouteSensor  Route = "sensor"
	RoutePump    Route = "pump"
	RouteUnknown Route = "unknown"
)

type SensorHandler interface {
	Handle(ctx context.Context, reading telemetry.SensorReading) error
}

type PumpHandler interface {
	Handle(ctx context.Context, event telemetry.PumpEvent) error
}

// Options configures a Router. Zero values fall back to the defaults.
type Options struct {
	SensorFilter string
	PumpFilter   string
	// Clock stamps decoded records; payload timestamps are never used
	Clock   func() time.Time
	Archive interfaces.MessageArchive
}

// Router decodes MQTT payloads and hands typed records to the domain services.
// Handle is called from a single delivery goroutine and keeps no state between messages.
type Router struct {
	sensor SensorHandler
	pump   PumpHandler
	opts   Options
	logger *logger.Logger
}

func New(sensor SensorHandler, pump PumpHandler, opts Options, log *logger.Logger) *Router {
	if opts.SensorFilter == "" {
		opts.SensorFilter = "sensor/#"
	}
	if opts.PumpFilter == "" {
		opts.PumpFilter = "bomba/estado"
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Router{
		sensor: sensor,
		pump:   pump,
		opts:   opts,
		logger: log.WithComponent("router"),
	}
}

// Route returns the route a topic belongs to. The pump filter is checked first
// so an overlapping sensor wildcard cannot swallow pump events.
func (r *Router) Route(topic string) Route {
	switch {
	case MatchTopic(r.opts.PumpFilter, topic):
		return RoutePump
	case MatchTopic(r.opts.SensorFilter, topic):
		return RouteSensor
	default:
		return RouteUnknown
	}
}

// Handle processes one delivery. It never panics and reports failures only through the outcome.
func (r *Router) Handle(ctx context.Context, topic string, payload []byte) (outcome Outcome) {
	start := time.Now()
	receivedAt := r.opts.Clock()
	route := r.Route(topic)
	var detail string

	defer func() {
		if rec := recover(); rec != nil {
			outcome = OutcomeInternalError
			detail = fmt.Sprint(rec)
			r.logger.Logger.Error().
				Str("topic", topic).
				Str("panic", detail).
				Bytes("stack", debug.Stack()).
				Str("payload", logger.Excerpt(payload, payloadExcerpt)).
				Msg("Recovered from panic while handling message")
		}

		metrics.MessagesReceived.WithLabelValues(string(route), outcome.String()).Inc()
		metrics.MessageProcessingDuration.WithLabelValues(string(route)).Observe(time.Since(start).Seconds())
		r.archive(ctx, egcmodels.InboundMessage{
			ID:         uuid.NewString(),
			Topic:      topic,
			Payload:    append([]byte(nil), payload...),
			Route:      string(route),
			Outcome:    outcome.String(),
			Detail:     detail,
			ReceivedAt: receivedAt,
		})
	}()

	obj, err := decodeObject(payload)
	if err != nil {
		detail = err.Error()
		r.logger.Logger.Warn().Err(err).Str("topic", topic).Str("payload", logger.Excerpt(payload, payloadExcerpt)).Msg("Discarding undecodable message")
		return OutcomeDecodeError
	}

	switch route {
	case RouteSensor:
		reading, err := decodeSensorReading(obj, receivedAt)
		if err != nil {
			detail = err.Error()
			return r.rejected(topic, payload, err)
		}
		err = r.sensor.Handle(ctx, reading)
		if err != nil {
			detail = err.Error()
		}
		return r.dispatched(topic, err)

	case RoutePump:
		event, err := decodePumpEvent(obj, receivedAt)
		if err != nil {
			detail = err.Error()
			return r.rejected(topic, payload, err)
		}
		err = r.pump.Handle(ctx, event)
		if err != nil {
			detail = err.Error()
		}
		return r.dispatched(topic, err)

	default:
		r.logger.Logger.Warn().Str("topic", topic).Msg("Message on unrecognized topic, ignoring")
		return OutcomeUnrecognized
	}
}

func (r *Router) rejected(topic string, payload []byte, err error) Outcome {
	var verr *ValidationError
	if errors.As(err, &verr) {
		r.logger.Logger.Warn().Strs("fields", verr.Fields).Str("topic", topic).Str("payload", logger.Excerpt(payload, payloadExcerpt)).Msg("Discarding message with missing or invalid fields")
	} else {
		r.logger.Logger.Warn().Err(err).Str("topic", topic).Msg("Discarding invalid message")
	}
	return OutcomeValidationError
}

func (r *Router) dispatched(topic string, err error) Outcome {
	if err != nil {
		r.logger.Logger.Warn().Err(err).Str("topic", topic).Msg("Message handled but not forwarded")
		return OutcomeForwardFailed
	}
	r.logger.Logger.Debug().Str("topic", topic).Msg("Message dispatched")
	return OutcomeDispatched
}

func (r *Router) archive(ctx context.Context, msg egcmodels.InboundMessage) {
	if r.opts.Archive == nil {
		return
	}
	if err := r.opts.Archive.Archive(ctx, msg); err != nil {
		r.logger.Logger.Warn().Err(err).Str("topic", msg.Topic).Msg("Failed to archive inbound message")
	}
}
