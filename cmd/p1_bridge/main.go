// P1 bridge reads the meter and fans every reading out to discovery, the
// InfluxDB exporter and the broadcast API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/NotCoffee418/p1_bridge/pkg/accessory"
	"github.com/NotCoffee418/p1_bridge/pkg/broadcast"
	"github.com/NotCoffee418/p1_bridge/pkg/config"
	"github.com/NotCoffee418/p1_bridge/pkg/exporter"
	"github.com/NotCoffee418/p1_bridge/pkg/interpreter"
	"github.com/NotCoffee418/p1_bridge/pkg/metrics"
	"github.com/NotCoffee418/p1_bridge/pkg/orchestrator"
	"github.com/NotCoffee418/p1_bridge/pkg/port_reader"
	"github.com/NotCoffee418/p1_bridge/pkg/stream"
	"github.com/sirupsen/logrus"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	broker := stream.NewBroker(stream.DefaultBufferSize, logger, m)
	registry := accessory.NewRegistry(accessory.DefaultHistorySize, logger)

	var wg sync.WaitGroup
	subscribe := func(name string, run func(events <-chan stream.Event)) {
		events := broker.Subscribe(name)
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(events)
		}()
	}

	orch := orchestrator.New(orchestrator.Options{
		Factory: registry.Factory(),
		OnComplete: func(sensors []orchestrator.SubSensor) {
			names := make([]string, 0, len(sensors))
			for _, s := range sensors {
				names = append(names, s.Name)
			}
			logger.WithField("sensors", names).Infof("%d sub-sensors discovered", len(sensors))
		},
		WatchdogTimeout: cfg.EffectiveWatchdogTimeout(),
		Logger:          logger,
		Metrics:         m,
	})
	subscribe("orchestrator", func(events <-chan stream.Event) { orch.Run(ctx, events) })

	server := broadcast.NewServer(cfg.Name, registry, m, logger)
	subscribe("broadcast", func(events <-chan stream.Event) { server.Run(ctx, events) })

	if exp := newExporter(cfg, m, logger); exp != nil {
		subscribe("exporter", func(events <-chan stream.Event) { exp.Run(ctx, events) })
	}

	source := newSource(cfg, logger)
	go func() {
		source.Run(ctx, broker)
		<-ctx.Done()
		broker.Close()
	}()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Debug("HTTP server shutdown")
		}
	}()

	logger.Infof("Starting P1 bridge %q on %s", cfg.Name, httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("HTTP server failed")
	}

	wg.Wait()
	logger.Info("Stopped")
}

// newSource reads from another instance when interpreter_api_host is set and
// from the serial port otherwise.
func newSource(cfg *config.Config, logger *logrus.Logger) stream.Source {
	if cfg.InterpreterAPIHost != "" {
		return interpreter.NewListener(cfg.InterpreterAPIHost, logger)
	}
	return port_reader.NewP1Reader(cfg.SerialDevice, cfg.DSMR22, logger)
}

func newExporter(cfg *config.Config, m *metrics.Metrics, logger *logrus.Logger) *exporter.Exporter {
	sink, err := exporter.NewInfluxSink(exporter.InfluxConfig{
		Host:     cfg.Influx.Host,
		Database: cfg.Influx.Database,
		Username: cfg.Influx.Username,
		Password: cfg.Influx.Password,
	})
	if err != nil {
		logger.WithError(err).Error("InfluxDB export disabled")
		return nil
	}
	return exporter.NewExporter(sink, logger, m)
}
