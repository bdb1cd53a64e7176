package types

import "time"

// Reading is one snapshot of the meter as emitted by a source.
// It must not be modified once published; subscribers only read it.
type Reading struct {
	Type    string `json:"type,omitempty"`
	Version string `json:"version,omitempty"`

	ElectricityIn  *Electricity `json:"electricity,omitempty"`
	ElectricityOut *Electricity `json:"electricityBack,omitempty"`
	Gas            *Gas         `json:"gas,omitempty"`
}

// Consumption holds the register totals per tariff in kWh.
type Consumption struct {
	Normal *float64 `json:"normal,omitempty"`
	Low    *float64 `json:"low,omitempty"`
}

// Phase is the instantaneous breakdown of one phase.
type Phase struct {
	Power   *float64 `json:"power,omitempty"`   // kW
	Current *float64 `json:"current,omitempty"` // A
	Voltage *float64 `json:"voltage,omitempty"` // V
}

type Electricity struct {
	Consumption *Consumption `json:"consumption,omitempty"`
	Power       *float64     `json:"power,omitempty"` // kW
	Tariff      string       `json:"tariff,omitempty"`

	L1 *Phase `json:"l1,omitempty"`
	L2 *Phase `json:"l2,omitempty"`
	L3 *Phase `json:"l3,omitempty"`

	LastUpdated time.Time `json:"lastupdated,omitempty"`
}

type Gas struct {
	Consumption *float64  `json:"consumption,omitempty"` // m3
	LastUpdated time.Time `json:"lastupdated,omitempty"`
}

// Slice is the part of a Reading that belongs to a single sub-sensor.
// It is either *Electricity or *Gas.
type Slice interface {
	isSlice()
}

func (*Electricity) isSlice() {}
func (*Gas) isSlice()         {}

// Phases returns the present phases keyed by their tag name, in l1..l3 order.
func (e *Electricity) Phases() []NamedPhase {
	var phases []NamedPhase
	for _, p := range []NamedPhase{{"l1", e.L1}, {"l2", e.L2}, {"l3", e.L3}} {
		if p.Phase != nil {
			phases = append(phases, p)
		}
	}
	return phases
}

type NamedPhase struct {
	Name  string
	Phase *Phase
}

// Float returns a pointer to v. Used by parsers and tests to fill optional fields.
func Float(v float64) *float64 {
	return &v
}

// OrZero returns the value behind p, or 0 when p is nil.
func OrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
