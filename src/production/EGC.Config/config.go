package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ConsumerConfig holds all configuration of the telemetry consumer
type ConsumerConfig struct {
	MQTT     MQTTConfig     `json:"mqtt"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
	Database DatabaseConfig `json:"database"`
	Mongo    MongoConfig    `json:"mongo"`
	Redis    RedisConfig    `json:"redis"`
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
}

// MQTTConfig holds the inbound broker configuration
type MQTTConfig struct {
	BrokerHost     string        `json:"broker_host"`
	BrokerPort     int           `json:"broker_port"`
	BrokerUser     string        `json:"broker_user"`
	BrokerPass     string        `json:"-"`
	UseTLS         bool          `json:"use_tls"`
	CACertPath     string        `json:"ca_cert_path"`
	ClientID       string        `json:"client_id"`
	SensorTopic    string        `json:"sensor_topic"`
	PumpTopic      string        `json:"pump_topic"`
	KeepAlive      time.Duration `json:"keep_alive"`
	HealthInterval time.Duration `json:"health_interval"`
}

// RabbitMQConfig holds the durable queue broker configuration
type RabbitMQConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	User              string        `json:"user"`
	Password          string        `json:"-"`
	VHost             string        `json:"vhost"`
	SensorQueue       string        `json:"sensor_queue"`
	PumpQueue         string        `json:"pump_queue"`
	DeviceAddress     string        `json:"device_address"`
	ReconnectAttempts int           `json:"reconnect_attempts"`
	ReconnectDelay    time.Duration `json:"reconnect_delay"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	User         string        `json:"user"`
	Password     string        `json:"-"`
	DBName       string        `json:"db_name"`
	SSLMode      string        `json:"ssl_mode"`
	MaxConns     int           `json:"max_conns"`
	MinConns     int           `json:"min_conns"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// MongoConfig configures the raw message archive. An empty URI disables it.
type MongoConfig struct {
	URI        string `json:"-"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

// RedisConfig configures the latest value cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// ServerConfig holds the health server configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// LoadConsumerConfig loads the consumer configuration from the environment.
// A .env file in the working directory is loaded first when present.
func LoadConsumerConfig() (*ConsumerConfig, error) {
	// Missing .env is fine, variables may come from the environment directly
	_ = godotenv.Load()

	return FromLookup(os.LookupEnv)
}

// FromLookup builds the configuration from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (*ConsumerConfig, error) {
	env := &envReader{lookup: lookup}

	cfg := &ConsumerConfig{
		MQTT: MQTTConfig{
			BrokerHost:     env.required("MOSQUITTOHOST"),
			BrokerPort:     env.getInt("MQTT_PORT", 1883),
			BrokerUser:     env.required("USERMOSQUITTO"),
			BrokerPass:     env.required("PASSMOSQUITTO"),
			UseTLS:         env.getBool("MQTT_TLS", false),
			CACertPath:     env.get("MQTT_CA_FILE", ""),
			ClientID:       env.get("MQTT_CLIENT_ID", "easygrow-consumer"),
			SensorTopic:    env.get("MQTT_SENSOR_TOPIC", "sensor/#"),
			PumpTopic:      env.get("MQTT_PUMP_TOPIC", "bomba/estado"),
			KeepAlive:      env.getDuration("MQTT_KEEP_ALIVE", 60*time.Second),
			HealthInterval: env.getDuration("MQTT_HEALTH_INTERVAL", 2*time.Second),
		},
		RabbitMQ: RabbitMQConfig{
			Host:              env.required("RABBITMQ_HOST"),
			Port:              env.getInt("RABBITMQ_PORT", 5672),
			User:              env.required("RABBITMQ_USER"),
			Password:          env.required("RABBITMQ_PASSWORD"),
			VHost:             env.get("RABBITMQ_VHOST", "/"),
			SensorQueue:       env.get("RABBITMQ_QUEUE", "datos_sensores"),
			PumpQueue:         env.get("RABBITMQ_PUMP_QUEUE", "eventos_bomba"),
			DeviceAddress:     env.get("RABBITMQ_DEVICE_ADDRESS", "00:00:00:00:00:00"),
			ReconnectAttempts: env.getInt("RABBITMQ_RECONNECT_ATTEMPTS", 3),
			ReconnectDelay:    env.getDuration("RABBITMQ_RECONNECT_DELAY", time.Second),
		},
		Database: DatabaseConfig{
			Host:         env.required("DB_HOST"),
			Port:         env.getInt("DB_PORT", 5432),
			User:         env.required("DB_USER"),
			Password:     env.required("DB_PASS"),
			DBName:       env.required("DB_SCHEMA"),
			SSLMode:      env.get("DB_SSLMODE", "disable"),
			MaxConns:     env.getInt("DB_MAX_CONNS", 5),
			MinConns:     env.getInt("DB_MIN_CONNS", 1),
			WriteTimeout: env.getDuration("DB_WRITE_TIMEOUT", 5*time.Second),
		},
		Mongo: MongoConfig{
			URI:        env.get("MONGODB_URI", ""),
			Database:   env.get("MONGODB_DB", "easygrow"),
			Collection: env.get("MONGODB_COLLECTION", "mensajes_mqtt"),
		},
		Redis: RedisConfig{
			Addr:     env.get("REDIS_ADDR", ""),
			Password: env.get("REDIS_PASSWORD", ""),
			DB:       env.getInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:         env.get("HEALTH_PORT", "9010"),
			ReadTimeout:  env.getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: env.getDuration("WRITE_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:        env.get("LOG_LEVEL", "info"),
			Format:       env.get("LOG_FORMAT", "text"),
			Output:       env.get("LOG_OUTPUT", "stdout"),
			EnableCaller: env.getBool("LOG_ENABLE_CALLER", false),
		},
	}

	if err := env.err(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks values that parse correctly but make no sense together
func (c *ConsumerConfig) Validate() error {
	var problems []error
	if c.RabbitMQ.SensorQueue == c.RabbitMQ.PumpQueue {
		problems = append(problems, fmt.Errorf("RABBITMQ_QUEUE and RABBITMQ_PUMP_QUEUE must differ (both %q)", c.RabbitMQ.SensorQueue))
	}
	if c.RabbitMQ.ReconnectAttempts < 1 {
		problems = append(problems, fmt.Errorf("RABBITMQ_RECONNECT_ATTEMPTS must be at least 1"))
	}
	if c.MQTT.HealthInterval <= 0 {
		problems = append(problems, fmt.Errorf("MQTT_HEALTH_INTERVAL must be positive"))
	}
	if c.Database.MinConns > c.Database.MaxConns {
		problems = append(problems, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns))
	}
	return errors.Join(problems...)
}

// GetDatabaseDSN returns the PostgreSQL connection URL
func (c *ConsumerConfig) GetDatabaseDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.DBName,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *ConsumerConfig) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

// GetRabbitMQURL returns the AMQP connection URL
func (c *ConsumerConfig) GetRabbitMQURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.RabbitMQ.User, c.RabbitMQ.Password),
		Host:   fmt.Sprintf("%s:%d", c.RabbitMQ.Host, c.RabbitMQ.Port),
		Path:   "/" + strings.TrimPrefix(c.RabbitMQ.VHost, "/"),
	}
	return u.String()
}

// envReader reads variables and collects every problem instead of stopping at the first one
type envReader struct {
	lookup   func(string) (string, bool)
	problems []error
}

func (e *envReader) err() error {
	return errors.Join(e.problems...)
}

func (e *envReader) value(key string) string {
	v, _ := e.lookup(key)
	return strings.TrimSpace(v)
}

func (e *envReader) get(key, defaultValue string) string {
	if v := e.value(key); v != "" {
		return v
	}
	return defaultValue
}

func (e *envReader) required(key string) string {
	v := e.value(key)
	if v == "" {
		e.problems = append(e.problems, fmt.Errorf("missing required environment variable: %s", key))
	}
	return v
}

func (e *envReader) getInt(key string, defaultValue int) int {
	v := e.value(key)
	if v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return i
}

func (e *envReader) getBool(key string, defaultValue bool) bool {
	switch v := e.value(key); v {
	case "":
		return defaultValue
	case "1", "true", "TRUE":
		return true
	case "0", "false", "FALSE":
		return false
	default:
		e.problems = append(e.problems, fmt.Errorf("invalid %s: %q (expected true/false or 1/0)", key, v))
		return defaultValue
	}
}

func (e *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	v := e.value(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.problems = append(e.problems, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}
