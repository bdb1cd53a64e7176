package schema

import "time"

// ElectricityFields are the values of a consumed or delivered electricity
// point. Absent values are expected to be coalesced to 0 by the caller.
type ElectricityFields struct {
	TotalPower  float64
	TotalNormal float64
	TotalLow    float64
}

// Total is the sum of both tariff registers.
func (f ElectricityFields) Total() float64 {
	return f.TotalNormal + f.TotalLow
}

type PhaseFields struct {
	Power   float64
	Current float64
	Voltage float64
}

func ConsumedElectricity(tariff string, f ElectricityFields, ts time.Time) Point {
	return electricityPoint(ConsumedElectricityMeasurement, tariff, f, ts)
}

func DeliveredElectricity(tariff string, f ElectricityFields, ts time.Time) Point {
	return electricityPoint(DeliveredElectricityMeasurement, tariff, f, ts)
}

func electricityPoint(measurement, tariff string, f ElectricityFields, ts time.Time) Point {
	if tariff == "" {
		tariff = DefaultTariff
	}
	return Point{
		Measurement: measurement,
		Tags:        []Tag{{Key: "tariff", Value: tariff}},
		Fields: map[string]float64{
			"total_power":  f.TotalPower,
			"total":        f.Total(),
			"total_normal": f.TotalNormal,
			"total_low":    f.TotalLow,
		},
		Time: ts,
	}
}

// ElectricityPhase builds a phase point. Phase points never carry a
// timestamp: the meter does not timestamp instantaneous values.
func ElectricityPhase(phase string, f PhaseFields) Point {
	return Point{
		Measurement: ElectricityPhaseMeasurement,
		Tags:        []Tag{{Key: "phase", Value: phase}},
		Fields: map[string]float64{
			"power":   f.Power,
			"current": f.Current,
			"voltage": f.Voltage,
		},
	}
}

func ConsumedGas(total float64, ts time.Time) Point {
	return Point{
		Measurement: ConsumedGasMeasurement,
		Fields:      map[string]float64{"total": total},
		Time:        ts,
	}
}
