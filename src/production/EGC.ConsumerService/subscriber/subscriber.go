package subscriber

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	config "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Config"
	logger "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Logger"
	metrics "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Metrics"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qos             = 1
	connectTimeout  = 10 * time.Second
	disconnectQuiet = 250
)

// Handler processes one delivery. It is called from a single goroutine, in arrival order.
type Handler func(ctx context.Context, topic string, payload []byte)

// Client is the part of mqtt.Client the subscriber drives
type Client interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// ClientFactory builds the client from the prepared options
type ClientFactory func(opts *mqtt.ClientOptions) Client

func newPahoClient(opts *mqtt.ClientOptions) Client {
	return mqtt.NewClient(opts)
}

// Subscriber owns the MQTT session. Paho's own reconnect is off; a supervisor
// loop polls the connection state and asks for a reconnect when it is down.
type Subscriber struct {
	cfg       config.MQTTConfig
	brokerURL string
	handler   Handler
	newClient ClientFactory
	logger    *logger.Logger

	client Client
	// status is written only by the connect and connection-lost callbacks
	status atomic.Int32

	handlerCtx context.Context
	mu         sync.Mutex
	stopping   bool
	inflight   sync.WaitGroup

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func New(cfg config.MQTTConfig, brokerURL string, handler Handler, log *logger.Logger) *Subscriber {
	return &Subscriber{
		cfg:       cfg,
		brokerURL: brokerURL,
		handler:   handler,
		newClient: newPahoClient,
		logger:    log.WithComponent("mqtt_subscriber"),
		done:      make(chan struct{}),
	}
}

// WithClientFactory replaces the paho client constructor
func (s *Subscriber) WithClientFactory(f ClientFactory) *Subscriber {
	s.newClient = f
	return s
}

// Start connects to the broker and launches the supervisor. A failed first
// connection is returned to the caller.
func (s *Subscriber) Start(ctx context.Context) error {
	opts, err := s.clientOptions()
	if err != nil {
		return err
	}

	// in-flight messages finish even after shutdown begins
	s.handlerCtx = context.WithoutCancel(ctx)
	s.client = s.newClient(opts)

	s.logger.Logger.Info().Str("broker", s.brokerURL).Str("client_id", s.cfg.ClientID).Msg("Connecting to MQTT broker")
	if err := waitToken(s.client.Connect(), connectTimeout); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", s.brokerURL, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.supervise(ctx)
	}()

	return nil
}

// Stop stops accepting deliveries, waits for the one in progress, then disconnects.
func (s *Subscriber) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()

		s.inflight.Wait()
		close(s.done)
		s.wg.Wait()

		if s.client != nil {
			s.client.Disconnect(disconnectQuiet)
		}
		metrics.MQTTConnected.Set(0)
		s.logger.Info("MQTT subscriber stopped")
	})
}

// Status returns the last state reported by the client callbacks
func (s *Subscriber) Status() ConnectionStatus {
	return ConnectionStatus(s.status.Load())
}

func (s *Subscriber) IsConnected() bool {
	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()
	return !stopping && s.Status() == StatusConnected
}

func (s *Subscriber) clientOptions() (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(s.brokerURL).
		SetClientID(s.cfg.ClientID).
		SetUsername(s.cfg.BrokerUser).
		SetPassword(s.cfg.BrokerPass).
		SetOrderMatters(true).
		SetKeepAlive(s.cfg.KeepAlive).
		SetPingTimeout(10 * time.Second).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetCleanSession(false).
		SetAutoAckDisabled(true)

	if s.cfg.UseTLS {
		tlsCfg, err := tlsConfig(s.cfg.CACertPath)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnect = func(mqtt.Client) { s.onConnect() }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) { s.onConnectionLost(err) }
	return opts, nil
}

func (s *Subscriber) onConnect() {
	s.status.Store(int32(StatusConnected))
	metrics.MQTTConnected.Set(1)

	for _, topic := range []string{s.cfg.SensorTopic, s.cfg.PumpTopic} {
		s.logger.Logger.Info().Str("topic", topic).Msg("MQTT connected, subscribing to topic")
		if err := waitToken(s.client.Subscribe(topic, qos, s.onMessage), connectTimeout); err != nil {
			s.logger.Logger.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
		}
	}
}

func (s *Subscriber) onConnectionLost(err error) {
	s.status.Store(int32(StatusDisconnected))
	metrics.MQTTConnected.Set(0)
	s.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
}

// onMessage acks only after the handler returned. Deliveries refused during
// shutdown stay unacked and are redelivered to the persistent session.
func (s *Subscriber) onMessage(_ mqtt.Client, m mqtt.Message) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		s.logger.Logger.Debug().Str("topic", m.Topic()).Msg("Shutting down, leaving message unacknowledged")
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	s.logger.Logger.Debug().Str("topic", m.Topic()).Uint16("message_id", m.MessageID()).Bool("duplicate", m.Duplicate()).Msg("Received MQTT message")
	s.handler(s.handlerCtx, m.Topic(), m.Payload())
	m.Ack()
}

func (s *Subscriber) supervise(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if s.Status() == StatusDisconnected {
				s.reconnect()
			}
		}
	}
}

func (s *Subscriber) reconnect() {
	s.logger.Logger.Warn().Str("broker", s.brokerURL).Msg("MQTT connection is down, requesting reconnect")
	if err := waitToken(s.client.Connect(), connectTimeout); err != nil {
		metrics.MQTTReconnectAttempts.WithLabelValues(metrics.ResultError).Inc()
		s.logger.Logger.Error().Err(err).Str("broker", s.brokerURL).Msg("MQTT reconnect failed")
		return
	}
	metrics.MQTTReconnectAttempts.WithLabelValues(metrics.ResultOK).Inc()
	s.logger.Info("MQTT reconnect succeeded")
}

var errTokenTimeout = errors.New("timed out waiting for broker")

func waitToken(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return errTokenTimeout
	}
	return token.Error()
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file %s", caFile)
	}
	cfg.RootCAs = cp
	return cfg, nil
}
