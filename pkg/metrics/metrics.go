package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors. Each process registers them on its
// own registry so tests can create as many as they need.
type Metrics struct {
	Registry *prometheus.Registry

	ReadingsReceived  *prometheus.CounterVec
	PointsWritten     prometheus.Counter
	BatchFailures     prometheus.Counter
	WriteDuration     prometheus.Histogram
	Ticks             prometheus.Counter
	DiscoveredSensors prometheus.Gauge
	SourceEvents      *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ReadingsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "p1",
				Name:      "readings_received_total",
				Help:      "Readings received per subscriber",
			},
			[]string{"subscriber"},
		),
		PointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "p1",
			Subsystem: "influx",
			Name:      "points_written_total",
			Help:      "Points written to the time-series sink",
		}),
		BatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "p1",
			Subsystem: "influx",
			Name:      "batch_failures_total",
			Help:      "Batches the time-series sink rejected or could not receive",
		}),
		WriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "p1",
			Subsystem: "influx",
			Name:      "write_duration_seconds",
			Help:      "Duration of one batch write",
			Buckets:   prometheus.DefBuckets,
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "p1",
			Name:      "ticks_total",
			Help:      "Periodic ticks delivered to the discovered sub-sensors",
		}),
		DiscoveredSensors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "p1",
			Name:      "discovered_sensors",
			Help:      "Number of sub-sensors discovered from the first reading",
		}),
		SourceEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "p1",
				Name:      "source_events_total",
				Help:      "Non-reading events emitted by the source, by kind",
			},
			[]string{"kind"},
		),
		EventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "p1",
				Name:      "events_dropped_total",
				Help:      "Events dropped because a subscriber's buffer was full",
			},
			[]string{"subscriber"},
		),
	}

	m.Registry.MustRegister(
		m.ReadingsReceived,
		m.PointsWritten,
		m.BatchFailures,
		m.WriteDuration,
		m.Ticks,
		m.DiscoveredSensors,
		m.SourceEvents,
		m.EventsDropped,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
