package orchestrator

import (
	"time"

	"github.com/NotCoffee418/p1_bridge/pkg/metrics"
	"github.com/NotCoffee418/p1_bridge/pkg/types"
	"github.com/sirupsen/logrus"
)

// TickInterval is the period of the synthetic tick sent to every handle.
const TickInterval = 10 * time.Minute

type State uint8

const (
	AwaitingFirstReading State = iota
	Discovered
)

func (s State) String() string {
	if s == Discovered {
		return "discovered"
	}
	return "awaiting_first_reading"
}

// Kind identifies a sub-sensor.
type Kind uint8

const (
	ElectricityIn Kind = iota
	ElectricityOut
	Gas
)

// Name is the display name of the sub-sensor.
func (k Kind) Name() string {
	switch k {
	case ElectricityIn:
		return "Electricity"
	case ElectricityOut:
		return "Electricity Delivered"
	case Gas:
		return "Gas"
	default:
		return "Unknown"
	}
}

func (k Kind) String() string {
	switch k {
	case ElectricityIn:
		return "electricity"
	case ElectricityOut:
		return "electricity_delivered"
	case Gas:
		return "gas"
	default:
		return "unknown"
	}
}

// Slice returns the part of r that belongs to k, or nil when r lacks it.
func (k Kind) Slice(r *types.Reading) types.Slice {
	switch k {
	case ElectricityIn:
		if r.ElectricityIn != nil {
			return r.ElectricityIn
		}
	case ElectricityOut:
		if r.ElectricityOut != nil {
			return r.ElectricityOut
		}
	case Gas:
		if r.Gas != nil {
			return r.Gas
		}
	}
	return nil
}

// LifecycleHandle receives the readings and ticks of one sub-sensor.
// A nil slice means the reading did not carry it.
type LifecycleHandle interface {
	Update(slice types.Slice)
	Tick()
}

// HandleFactory builds the handle of a discovered sub-sensor from the slice
// of the first reading.
type HandleFactory func(kind Kind, name string, initial types.Slice) LifecycleHandle

type SubSensor struct {
	Kind   Kind
	Name   string
	Handle LifecycleHandle
}

// CompletionFunc receives the discovered sub-sensors. It is called at most
// once, with an empty list when discovery timed out or the source failed.
type CompletionFunc func(sensors []SubSensor)

type Options struct {
	Factory    HandleFactory
	OnComplete CompletionFunc

	// WatchdogTimeout counts from the moment the source reports connected.
	WatchdogTimeout time.Duration
	// TickInterval defaults to the package TickInterval.
	TickInterval time.Duration

	Logger  *logrus.Logger
	Metrics *metrics.Metrics
}
