package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.ConsumerService/healthserver"
	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.ConsumerService/router"
	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.ConsumerService/services"
	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.ConsumerService/subscriber"
	container "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Container"
	"golang.org/x/sync/errgroup"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	// Initialize dependency injection container
	ctr, err := container.NewConsumerContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize container: %v\n", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = ctr.Shutdown(ctx)
	}()

	logger := ctr.GetLogger()
	cfg := ctr.GetConfig()
	logger.Info("Starting EasyGrow telemetry consumer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := ctr.GetTelemetryRepository()
	if err != nil {
		logger.ErrorWithError(err, "Failed to initialize telemetry store")
		return 1
	}
	cache := ctr.GetLatestReadingCache()
	archive := ctr.GetMessageArchive()

	startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	pub, err := ctr.GetPublisher(startupCtx)
	cancel()
	if err != nil {
		logger.ErrorWithError(err, "Failed to initialize RabbitMQ publisher")
		return 1
	}

	rt := router.New(
		services.NewSensorService(repo, cache, pub, logger),
		services.NewPumpService(repo, pub, logger),
		router.Options{
			SensorFilter: cfg.MQTT.SensorTopic,
			PumpFilter:   cfg.MQTT.PumpTopic,
			Archive:      archive,
		},
		logger,
	)

	sub := subscriber.New(cfg.MQTT, cfg.GetMQTTBrokerURL(), func(ctx context.Context, topic string, payload []byte) {
		rt.Handle(ctx, topic, payload)
	}, logger)

	srv := healthserver.NewServer(cfg.Server, healthserver.NewHealthController(map[string]healthserver.Check{
		"mqtt": func(context.Context) error {
			if !sub.IsConnected() {
				return errors.New("mqtt " + sub.Status().String())
			}
			return nil
		},
		"rabbitmq": func(context.Context) error {
			if !pub.IsConnected() {
				return errors.New("rabbitmq disconnected")
			}
			return nil
		},
		"postgres": repo.Ping,
	}, logger), logger)

	if err := sub.Start(ctx); err != nil {
		logger.ErrorWithError(err, "Failed to start MQTT subscriber")
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")

		// the message being handled finishes before the session closes
		sub.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("EasyGrow consumer running... press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		logger.ErrorWithError(err, "Consumer stopped with error")
		return 1
	}
	return 0
}
