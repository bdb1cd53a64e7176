// Meter collector stores the readings of a remote P1 bridge in InfluxDB.
// Depends on the bridge's /ws endpoint being reachable.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/p1_bridge/pkg/config"
	"github.com/NotCoffee418/p1_bridge/pkg/exporter"
	"github.com/NotCoffee418/p1_bridge/pkg/interpreter"
	"github.com/NotCoffee418/p1_bridge/pkg/metrics"
	"github.com/NotCoffee418/p1_bridge/pkg/stream"
)

func main() {
	logger := config.NewLogger()

	cfg, err := config.Load(config.DefaultPath(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Logging.Apply(logger); err != nil {
		logger.WithError(err).Fatal("Invalid logging config")
	}

	// Set the host:port from env var INTERPRETER_API_HOST
	host := os.Getenv("INTERPRETER_API_HOST")
	if host == "" {
		host = cfg.InterpreterAPIHost
	}
	if host == "" {
		host = "raspberrypi.local:9039"
	}

	sink, err := exporter.NewInfluxSink(exporter.InfluxConfig{
		Host:     cfg.Influx.Host,
		Database: cfg.Influx.Database,
		Username: cfg.Influx.Username,
		Password: cfg.Influx.Password,
	})
	if err != nil {
		logger.WithError(err).Fatal("Nothing to collect into")
	}
	defer sink.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	broker := stream.NewBroker(stream.DefaultBufferSize, logger, m)
	exp := exporter.NewExporter(sink, logger, m)
	events := broker.Subscribe("exporter")

	go func() {
		interpreter.NewListener(host, logger).Run(ctx, broker)
		broker.Close()
	}()

	exp.Run(ctx, events)
}
