package domain

import "time"

// Reading is one complete snapshot of the polled telemetry. It is built once
// per successful cycle and passed around by value.
type Reading struct {
	CycleId   string    `json:"cycle_id"`
	Timestamp time.Time `json:"timestamp"`

	PowerOutput    float64 `json:"power_output"`
	Voltage1       float64 `json:"voltage_1"`
	Current1       float64 `json:"current_1"`
	Voltage2       float64 `json:"voltage_2"`
	Current2       float64 `json:"current_2"`
	Temperature1   float64 `json:"temperature_1"`
	Temperature2   float64 `json:"temperature_2"`
	GridVoltage    float64 `json:"grid_voltage"`
	PeakPowerToday float64 `json:"peak_power_today"`

	// energy counters in kWh
	EnergyToday float64 `json:"energy_today"`
	EnergyWeek  float64 `json:"energy_week"`
	EnergyMonth float64 `json:"energy_month"`
	EnergyYear  float64 `json:"energy_year"`
	EnergyTotal float64 `json:"energy_total"`

	// nil when no DC input power is flowing
	EfficiencyPercent *float64 `json:"efficiency_percent"`
}

func (r Reading) IsZero() bool {
	return r.Timestamp.IsZero()
}

func (r Reading) HasEfficiency() bool {
	return r.EfficiencyPercent != nil
}

// ReadingEvent is published on the actor system event stream for every
// Reading the poller emits.
type ReadingEvent struct {
	Reading Reading
}
