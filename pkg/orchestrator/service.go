// Package orchestrator discovers the sub-sensors of a meter from its first
// reading and keeps their handles fed with readings and periodic ticks.
package orchestrator

import (
	"context"
	"time"

	"github.com/NotCoffee418/p1_bridge/pkg/metrics"
	"github.com/NotCoffee418/p1_bridge/pkg/stream"
	"github.com/NotCoffee418/p1_bridge/pkg/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Orchestrator owns the discovery state. All of it is touched only from the
// Run goroutine.
type Orchestrator struct {
	factory    HandleFactory
	onComplete CompletionFunc
	timeout    time.Duration
	interval   time.Duration
	logger     *logrus.Entry
	metrics    *metrics.Metrics

	state     State
	timedOut  bool
	completed bool
	sensors   []SubSensor

	watchdog         *time.Timer
	watchdogEndpoint string
	ticker           *time.Ticker

	rawLines rate.Sometimes
	skipped  int
}

func New(opts Options) *Orchestrator {
	interval := opts.TickInterval
	if interval <= 0 {
		interval = TickInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Orchestrator{
		factory:    opts.Factory,
		onComplete: opts.OnComplete,
		timeout:    opts.WatchdogTimeout,
		interval:   interval,
		logger:     logger.WithField("component", "orchestrator"),
		metrics:    m,
		rawLines:   rate.Sometimes{First: 5, Interval: time.Minute},
	}
}

// Discover returns the sub-sensors present in the first reading. Electricity
// in is always present. Delivered electricity needs a positive total, so a
// meter that can export but has not yet done so is not discovered.
func Discover(r *types.Reading) []Kind {
	kinds := []Kind{ElectricityIn}
	if out := r.ElectricityOut; out != nil && out.Consumption != nil &&
		(types.OrZero(out.Consumption.Low) > 0 || types.OrZero(out.Consumption.Normal) > 0) {
		kinds = append(kinds, ElectricityOut)
	}
	if r.Gas != nil {
		kinds = append(kinds, Gas)
	}
	return kinds
}

// Run processes events until ctx is done or events is closed. Readings,
// watchdog expiry and ticks are handled one at a time on this goroutine.
func (o *Orchestrator) Run(ctx context.Context, events <-chan stream.Event) {
	defer o.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.handle(ev)
		case <-o.watchdogC():
			o.onWatchdog()
		case <-o.tickC():
			o.onTick()
		}
	}
}

func (o *Orchestrator) handle(ev stream.Event) {
	switch ev.Kind {
	case stream.EventReading:
		if ev.Reading == nil {
			return
		}
		o.metrics.ReadingsReceived.WithLabelValues("orchestrator").Inc()
		if o.state == AwaitingFirstReading {
			o.discover(ev.Reading)
		} else {
			o.update(ev.Reading)
		}
	case stream.EventConnected:
		o.metrics.SourceEvents.WithLabelValues(ev.Kind.String()).Inc()
		o.logger.WithField("endpoint", ev.Endpoint).Debug("listening")
		o.armWatchdog(ev.Endpoint)
	case stream.EventConnectFailed:
		o.metrics.SourceEvents.WithLabelValues(ev.Kind.String()).Inc()
		o.logger.WithError(ev.Err).Error("connection failed")
		if o.state == AwaitingFirstReading {
			o.stopWatchdog()
			o.complete(nil)
		}
	case stream.EventError:
		o.metrics.SourceEvents.WithLabelValues(ev.Kind.String()).Inc()
		o.logger.WithError(ev.Err).Error("error")
	case stream.EventRawLine:
		o.metrics.SourceEvents.WithLabelValues(ev.Kind.String()).Inc()
		logged := false
		o.rawLines.Do(func() {
			entry := o.logger.WithField("line", ev.Line)
			if o.skipped > 0 {
				entry = entry.WithField("suppressed", o.skipped)
			}
			entry.Warn("warning: unknown key")
			o.skipped = 0
			logged = true
		})
		if !logged {
			o.skipped++
		}
	}
}

func (o *Orchestrator) discover(r *types.Reading) {
	o.stopWatchdog()

	o.logger.Infof("%s v%s", r.Type, r.Version)
	for _, kind := range Discover(r) {
		name := kind.Name()
		o.sensors = append(o.sensors, SubSensor{
			Kind:   kind,
			Name:   name,
			Handle: o.factory(kind, name, kind.Slice(r)),
		})
	}
	o.metrics.DiscoveredSensors.Set(float64(len(o.sensors)))
	o.ticker = time.NewTicker(o.interval)
	o.state = Discovered

	if o.timedOut || o.completed {
		o.logger.Error("data received too late")
		return
	}
	o.complete(o.sensors)
}

func (o *Orchestrator) update(r *types.Reading) {
	for _, s := range o.sensors {
		s.Handle.Update(s.Kind.Slice(r))
	}
}

func (o *Orchestrator) onWatchdog() {
	endpoint := o.watchdogEndpoint
	o.watchdog = nil
	if o.state != AwaitingFirstReading {
		return
	}
	o.timedOut = true
	o.logger.Errorf("%s: no valid data received", endpoint)
	o.complete(nil)
}

func (o *Orchestrator) onTick() {
	o.metrics.Ticks.Inc()
	for _, s := range o.sensors {
		s.Handle.Tick()
	}
}

func (o *Orchestrator) complete(sensors []SubSensor) {
	if o.completed {
		return
	}
	o.completed = true
	if o.onComplete != nil {
		o.onComplete(append([]SubSensor{}, sensors...))
	}
}
