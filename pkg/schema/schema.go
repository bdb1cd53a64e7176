// Package schema declares the fixed InfluxDB measurements written by the
// exporter and the typed builders used to produce points for them.
package schema

import (
	"fmt"
	"time"
)

type FieldType uint8

const (
	Float FieldType = iota
	Integer
	String
	Boolean
)

const (
	ConsumedElectricityMeasurement  = "consumed_electricity"
	DeliveredElectricityMeasurement = "delivered_electricity"
	ElectricityPhaseMeasurement     = "electricity_phase"
	ConsumedGasMeasurement          = "consumed_gas"
)

// DefaultTariff is used when a reading does not report the active tariff.
const DefaultTariff = "normal"

// Measurement is one schema entry: a name, its tag names in declaration
// order and its typed fields.
type Measurement struct {
	Name   string
	Tags   []string
	Fields map[string]FieldType
}

var electricityFields = map[string]FieldType{
	"total_power":  Float,
	"total":        Float,
	"total_normal": Float,
	"total_low":    Float,
}

var registry = []Measurement{
	{
		Name:   ConsumedElectricityMeasurement,
		Tags:   []string{"tariff"},
		Fields: electricityFields,
	},
	{
		Name:   DeliveredElectricityMeasurement,
		Tags:   []string{"tariff"},
		Fields: electricityFields,
	},
	{
		Name: ElectricityPhaseMeasurement,
		Tags: []string{"phase"},
		Fields: map[string]FieldType{
			"power":   Float,
			"current": Float,
			"voltage": Float,
		},
	},
	{
		Name: ConsumedGasMeasurement,
		Tags: []string{},
		Fields: map[string]FieldType{
			"total": Float,
		},
	},
}

// Measurements returns every declared measurement.
func Measurements() []Measurement {
	out := make([]Measurement, len(registry))
	copy(out, registry)
	return out
}

// Lookup finds a measurement by name.
func Lookup(name string) (Measurement, bool) {
	for _, m := range registry {
		if m.Name == name {
			return m, true
		}
	}
	return Measurement{}, false
}

// Conforms reports whether p only uses tags and fields declared for its
// measurement. Points built through this package always conform; the check
// is meant for tests and diagnostics, not for the write path.
func Conforms(p Point) error {
	m, ok := Lookup(p.Measurement)
	if !ok {
		return fmt.Errorf("unknown measurement %q", p.Measurement)
	}
	for _, tag := range p.Tags {
		if !m.hasTag(tag.Key) {
			return fmt.Errorf("%s: undeclared tag %q", m.Name, tag.Key)
		}
	}
	for name := range p.Fields {
		if _, ok := m.Fields[name]; !ok {
			return fmt.Errorf("%s: undeclared field %q", m.Name, name)
		}
	}
	return nil
}

func (m Measurement) hasTag(key string) bool {
	for _, t := range m.Tags {
		if t == key {
			return true
		}
	}
	return false
}

// Tag is a single tag of a point. Tags keep the declaration order of their
// measurement.
type Tag struct {
	Key   string
	Value string
}

// Point is one time-series write unit. A zero Time means the sink assigns
// the ingestion time.
type Point struct {
	Measurement string
	Tags        []Tag
	Fields      map[string]float64
	Time        time.Time
}

// HasTime reports whether the point carries its own timestamp.
func (p Point) HasTime() bool {
	return !p.Time.IsZero()
}

// TagMap returns the tags as a map, the shape the influx client expects.
func (p Point) TagMap() map[string]string {
	tags := make(map[string]string, len(p.Tags))
	for _, t := range p.Tags {
		tags[t.Key] = t.Value
	}
	return tags
}
