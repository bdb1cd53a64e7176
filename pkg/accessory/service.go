// Package accessory keeps the state and history of one sub-sensor.
package accessory

import (
	"sort"
	"time"

	"github.com/NotCoffee418/p1_bridge/pkg/esmutils"
	"github.com/NotCoffee418/p1_bridge/pkg/types"
	"github.com/sirupsen/logrus"
)

// New creates an accessory whose expected fields are the ones initial carries.
func New(kind, name string, initial types.Slice, historySize int, logger *logrus.Logger) *Accessory {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	values, tariff, updated := fieldsOf(initial)
	a := &Accessory{
		name:    name,
		kind:    kind,
		logger:  logger.WithField("component", "accessory").WithField("accessory", name),
		now:     time.Now,
		values:  values,
		tariff:  tariff,
		updated: updated,
		history: make([]Entry, 0, historySize),
	}
	for field := range values {
		a.expected = append(a.expected, field)
	}
	sort.Strings(a.expected)
	return a
}

func (a *Accessory) Name() string {
	return a.name
}

// Update replaces the latest state with s. Fields that the first reading
// carried but s lacks are reported and treated as absent.
func (a *Accessory) Update(s types.Slice) {
	values, tariff, updated := fieldsOf(s)

	if s == nil {
		a.logger.Warn("warning: no data")
	} else {
		for _, field := range a.expected {
			if _, ok := values[field]; !ok {
				a.logger.WithField("field", field).Warn("warning: missing field")
			}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = values
	a.tariff = tariff
	if !updated.IsZero() {
		a.updated = updated
	}
}

// Tick records the current values as a history entry.
func (a *Accessory) Tick() {
	a.mu.Lock()
	entry := Entry{Time: a.now(), Values: copyValues(a.values)}
	if len(a.history) < cap(a.history) {
		a.history = append(a.history, entry)
	} else {
		a.history[a.next] = entry
	}
	a.next = (a.next + 1) % cap(a.history)
	a.ticks++
	a.mu.Unlock()

	a.logger.WithField("values", entry.Values).Debug("history entry")
}

// History returns the recorded entries, oldest first.
func (a *Accessory) History() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Entry, 0, len(a.history))
	if len(a.history) < cap(a.history) {
		return append(out, a.history...)
	}
	out = append(out, a.history[a.next:]...)
	return append(out, a.history[:a.next]...)
}

func (a *Accessory) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Snapshot{
		Name:        a.name,
		Kind:        a.kind,
		Values:      copyValues(a.values),
		Tariff:      a.tariff,
		LastUpdated: a.updated,
		Ticks:       a.ticks,
	}
	if kw, ok := a.values["power"]; ok {
		w := esmutils.KwToW(kw)
		s.PowerW = &w
	}
	return s
}

// fieldsOf flattens a slice into dotted field names.
func fieldsOf(s types.Slice) (map[string]float64, string, time.Time) {
	values := make(map[string]float64)
	set := func(name string, v *float64) {
		if v != nil {
			values[name] = *v
		}
	}

	switch v := s.(type) {
	case *types.Electricity:
		if v == nil {
			return values, "", time.Time{}
		}
		if v.Consumption != nil {
			set("consumption.normal", v.Consumption.Normal)
			set("consumption.low", v.Consumption.Low)
		}
		set("power", v.Power)
		for _, p := range v.Phases() {
			set(p.Name+".power", p.Phase.Power)
			set(p.Name+".current", p.Phase.Current)
			set(p.Name+".voltage", p.Phase.Voltage)
		}
		return values, v.Tariff, v.LastUpdated
	case *types.Gas:
		if v == nil {
			return values, "", time.Time{}
		}
		set("consumption", v.Consumption)
		return values, "", v.LastUpdated
	}
	return values, "", time.Time{}
}

func copyValues(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
