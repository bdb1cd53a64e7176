// Package exporter writes every reading to InfluxDB as one batch of points
// following the measurements declared in package schema.
package exporter

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/p1_bridge/pkg/metrics"
	"github.com/NotCoffee418/p1_bridge/pkg/schema"
	"github.com/NotCoffee418/p1_bridge/pkg/stream"
	"github.com/NotCoffee418/p1_bridge/pkg/types"
)

// Sink accepts a batch of points and succeeds or fails as a unit.
type Sink interface {
	WritePoints(ctx context.Context, points []schema.Point) error
}

type Exporter struct {
	sink    Sink
	logger  *logrus.Entry
	metrics *metrics.Metrics
}

func NewExporter(sink Sink, logger *logrus.Logger, m *metrics.Metrics) *Exporter {
	return &Exporter{
		sink:    sink,
		logger:  logger.WithField("component", "exporter"),
		metrics: m,
	}
}

// Run exports every reading event until the channel closes or ctx is done.
// A failed batch never stops the loop.
func (e *Exporter) Run(ctx context.Context, events <-chan stream.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != stream.EventReading || ev.Reading == nil {
				continue
			}
			e.metrics.ReadingsReceived.WithLabelValues("exporter").Inc()
			_ = e.OnReading(ctx, ev.Reading)
		}
	}
}

// OnReading writes the points of one reading as a single batch. The error is
// logged here; it is returned only so callers can observe the outcome.
func (e *Exporter) OnReading(ctx context.Context, r *types.Reading) error {
	points := PointsForReading(r)
	if len(points) == 0 {
		return nil
	}

	e.logger.WithField("points", len(points)).Debug("Writing points")
	start := time.Now()
	err := e.sink.WritePoints(ctx, points)
	e.metrics.WriteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.BatchFailures.Inc()
		e.logger.WithError(err).WithField("points", len(points)).Error("Failed to write points")
		return err
	}

	e.metrics.PointsWritten.Add(float64(len(points)))
	e.logger.WithField("points", len(points)).Debug("Saved to influx DB")
	return nil
}

// PointsForReading maps a reading onto the schema. Absent values become 0,
// so an absent value and a reported 0 produce the same point.
func PointsForReading(r *types.Reading) []schema.Point {
	var points []schema.Point

	if in := r.ElectricityIn; in != nil {
		points = append(points, schema.ConsumedElectricity(in.Tariff, electricityFields(in), in.LastUpdated))
		for _, p := range in.Phases() {
			points = append(points, schema.ElectricityPhase(p.Name, schema.PhaseFields{
				Power:   types.OrZero(p.Phase.Power),
				Current: types.OrZero(p.Phase.Current),
				Voltage: types.OrZero(p.Phase.Voltage),
			}))
		}
	}

	if out := r.ElectricityOut; out != nil {
		points = append(points, schema.DeliveredElectricity(out.Tariff, electricityFields(out), out.LastUpdated))
	}

	if gas := r.Gas; gas != nil {
		points = append(points, schema.ConsumedGas(types.OrZero(gas.Consumption), gas.LastUpdated))
	}

	return points
}

func electricityFields(e *types.Electricity) schema.ElectricityFields {
	f := schema.ElectricityFields{TotalPower: types.OrZero(e.Power)}
	if e.Consumption != nil {
		f.TotalNormal = types.OrZero(e.Consumption.Normal)
		f.TotalLow = types.OrZero(e.Consumption.Low)
	}
	return f
}
