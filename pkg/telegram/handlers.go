package telegram

import (
	"strconv"
	"time"

	"github.com/NotCoffee418/p1_bridge/pkg/types"
)

type handler func(b *builder, value string) error

// builder collects values while a telegram is parsed. Delivered values are
// kept aside and only become ElectricityOut when a delivered total exists.
type builder struct {
	reading    types.Reading
	receivedAt time.Time
	timestamp  time.Time

	in  *types.Electricity
	out types.Electricity

	deliveredTotal bool
}

var handlers = map[string]handler{
	"1-3:0.2.8": func(b *builder, v string) error {
		if len(v) == 2 {
			b.reading.Version = v[:1] + "." + v[1:]
		} else {
			b.reading.Version = v
		}
		return nil
	},
	"0-0:1.0.0": func(b *builder, v string) error {
		t, err := parseTimestamp(v)
		if err == nil {
			b.timestamp = t
		}
		return err
	},
	"1-0:1.8.1": number(func(b *builder, f float64) { b.consumption().Low = &f }),
	"1-0:1.8.2": number(func(b *builder, f float64) { b.consumption().Normal = &f }),
	"1-0:2.8.1": number(func(b *builder, f float64) { b.delivered().Low = &f }),
	"1-0:2.8.2": number(func(b *builder, f float64) { b.delivered().Normal = &f }),
	"1-0:1.7.0": number(func(b *builder, f float64) { b.electricity().Power = &f }),
	"1-0:2.7.0": number(func(b *builder, f float64) { b.out.Power = &f }),
	"0-0:96.14.0": func(b *builder, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		b.electricity().Tariff = tariffName(n)
		return nil
	},
	"1-0:21.7.0": number(func(b *builder, f float64) { b.phase(1).Power = &f }),
	"1-0:41.7.0": number(func(b *builder, f float64) { b.phase(2).Power = &f }),
	"1-0:61.7.0": number(func(b *builder, f float64) { b.phase(3).Power = &f }),
	"1-0:31.7.0": number(func(b *builder, f float64) { b.phase(1).Current = &f }),
	"1-0:51.7.0": number(func(b *builder, f float64) { b.phase(2).Current = &f }),
	"1-0:71.7.0": number(func(b *builder, f float64) { b.phase(3).Current = &f }),
	"1-0:32.7.0": number(func(b *builder, f float64) { b.phase(1).Voltage = &f }),
	"1-0:52.7.0": number(func(b *builder, f float64) { b.phase(2).Voltage = &f }),
	"1-0:72.7.0": number(func(b *builder, f float64) { b.phase(3).Voltage = &f }),
}

func number(set func(b *builder, f float64)) handler {
	return func(b *builder, v string) error {
		f, err := parseNumber(v)
		if err != nil {
			return err
		}
		set(b, f)
		return nil
	}
}

// tariffName maps the tariff indicator: 1 is the low tariff, 2 the normal one.
func tariffName(n int) string {
	if n == 1 {
		return "low"
	}
	return "normal"
}

func (b *builder) electricity() *types.Electricity {
	if b.in == nil {
		b.in = &types.Electricity{}
	}
	return b.in
}

func (b *builder) consumption() *types.Consumption {
	e := b.electricity()
	if e.Consumption == nil {
		e.Consumption = &types.Consumption{}
	}
	return e.Consumption
}

func (b *builder) delivered() *types.Consumption {
	b.deliveredTotal = true
	if b.out.Consumption == nil {
		b.out.Consumption = &types.Consumption{}
	}
	return b.out.Consumption
}

func (b *builder) phase(n int) *types.Phase {
	e := b.electricity()
	slot := map[int]**types.Phase{1: &e.L1, 2: &e.L2, 3: &e.L3}[n]
	if *slot == nil {
		*slot = &types.Phase{}
	}
	return *slot
}

func (b *builder) setGas(value, timestamp string) {
	f, err := parseNumber(value)
	if err != nil {
		return
	}
	gas := &types.Gas{Consumption: &f, LastUpdated: b.receivedAt}
	if t, err := parseTimestamp(timestamp); err == nil {
		gas.LastUpdated = t
	}
	b.reading.Gas = gas
}

func (b *builder) finish() *types.Reading {
	ts := b.timestamp
	if ts.IsZero() {
		ts = b.receivedAt
	}

	if b.in != nil {
		b.in.LastUpdated = ts
		b.reading.ElectricityIn = b.in
	}
	if b.deliveredTotal {
		out := b.out
		out.LastUpdated = ts
		if b.in != nil {
			out.Tariff = b.in.Tariff
		}
		b.reading.ElectricityOut = &out
	}

	r := b.reading
	return &r
}
