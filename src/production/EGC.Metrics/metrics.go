package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingress
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "egc_messages_received_total",
		Help: "Inbound MQTT messages by route and outcome",
	}, []string{"route", "outcome"})

	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "egc_message_processing_seconds",
		Help:    "Time spent routing, storing and forwarding one inbound message",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"route"})

	MQTTConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "egc_mqtt_connected",
		Help: "1 while the MQTT client is connected",
	})

	MQTTReconnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "egc_mqtt_reconnect_attempts_total",
		Help: "Reconnect requests issued by the MQTT supervisor",
	}, []string{"result"})

	// Store
	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "egc_db_query_duration_seconds",
		Help:    "Database query duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	StoreWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "egc_store_writes_total",
		Help: "Store write attempts by operation and result",
	}, []string{"operation", "result"})

	// Egress
	QueuePublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "egc_queue_publish_total",
		Help: "Queue publish attempts by queue and result",
	}, []string{"queue", "result"})

	QueueReconnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "egc_queue_reconnect_attempts_total",
		Help: "RabbitMQ reconnect attempts by result",
	}, []string{"result"})
)

// Result label values
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
	ResultMiss    = "miss"
)
