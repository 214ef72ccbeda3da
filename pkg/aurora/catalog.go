package aurora

import (
	"fmt"
)

type Command byte

// command codes
const (
	CommandDSP             Command = 59
	CommandCumulatedEnergy Command = 78
)

func (c Command) String() string {
	switch c {
	case CommandDSP:
		return "dsp"
	case CommandCumulatedEnergy:
		return "cumulated_energy"
	default:
		return fmt.Sprintf("command(%d)", byte(c))
	}
}

type Unit string

const (
	UnitVolt     Unit = "V"
	UnitAmpere   Unit = "A"
	UnitWatt     Unit = "W"
	UnitCelsius  Unit = "°C"
	UnitWattHour Unit = "Wh"
)

type DspParameter byte

// DSP parameter codes
const (
	DspGridVoltage    DspParameter = 1
	DspPowerOutput    DspParameter = 3
	DspTemperature1   DspParameter = 21
	DspTemperature2   DspParameter = 22
	DspInputVoltage1  DspParameter = 23
	DspInputCurrent1  DspParameter = 25
	DspInputVoltage2  DspParameter = 26
	DspInputCurrent2  DspParameter = 27
	DspPeakPowerToday DspParameter = 35
)

type dspSpec struct {
	name  string
	scale float64
	unit  Unit
}

var dspCatalog = map[DspParameter]dspSpec{
	DspGridVoltage:    {name: "grid_voltage", scale: 0.1, unit: UnitVolt},
	DspPowerOutput:    {name: "power_output", scale: 1, unit: UnitWatt},
	DspTemperature1:   {name: "temperature_1", scale: 0.1, unit: UnitCelsius},
	DspTemperature2:   {name: "temperature_2", scale: 0.1, unit: UnitCelsius},
	DspInputVoltage1:  {name: "input_voltage_1", scale: 0.1, unit: UnitVolt},
	DspInputCurrent1:  {name: "input_current_1", scale: 0.01, unit: UnitAmpere},
	DspInputVoltage2:  {name: "input_voltage_2", scale: 0.1, unit: UnitVolt},
	DspInputCurrent2:  {name: "input_current_2", scale: 0.01, unit: UnitAmpere},
	DspPeakPowerToday: {name: "peak_power_today", scale: 1, unit: UnitWatt},
}

// AllDspParameters is the fixed telemetry set, in polling order.
var AllDspParameters = []DspParameter{
	DspPowerOutput,
	DspInputVoltage1,
	DspInputCurrent1,
	DspInputVoltage2,
	DspInputCurrent2,
	DspTemperature1,
	DspTemperature2,
	DspGridVoltage,
	DspPeakPowerToday,
}

func (p DspParameter) String() string {
	if s, ok := dspCatalog[p]; ok {
		return s.name
	}
	return fmt.Sprintf("dsp(%d)", byte(p))
}

// Scale is the factor applied to the raw 16-bit value. Unknown parameters are
// passed through unscaled.
func (p DspParameter) Scale() float64 {
	if s, ok := dspCatalog[p]; ok {
		return s.scale
	}
	return 1
}

func (p DspParameter) Unit() Unit {
	return dspCatalog[p].unit
}

func (p DspParameter) Known() bool {
	_, ok := dspCatalog[p]
	return ok
}

type EnergyPeriod byte

// cumulated energy period codes. 2 is not assigned.
const (
	EnergyToday EnergyPeriod = 0
	EnergyWeek  EnergyPeriod = 1
	EnergyMonth EnergyPeriod = 3
	EnergyYear  EnergyPeriod = 4
	EnergyTotal EnergyPeriod = 5
)

const (
	EnergyTodayStr   = "today"
	EnergyWeekStr    = "week"
	EnergyMonthStr   = "month"
	EnergyYearStr    = "year"
	EnergyTotalStr   = "total"
	EnergyUnknownStr = "unknown"
)

var AllEnergyPeriods = []EnergyPeriod{
	EnergyToday,
	EnergyWeek,
	EnergyMonth,
	EnergyYear,
	EnergyTotal,
}

func (e EnergyPeriod) String() string {
	switch e {
	case EnergyToday:
		return EnergyTodayStr
	case EnergyWeek:
		return EnergyWeekStr
	case EnergyMonth:
		return EnergyMonthStr
	case EnergyYear:
		return EnergyYearStr
	case EnergyTotal:
		return EnergyTotalStr
	default:
		return fmt.Sprintf("%s(%d)", EnergyUnknownStr, byte(e))
	}
}

func (e EnergyPeriod) Unit() Unit {
	return UnitWattHour
}

// WattHoursToKWh converts a raw energy counter to kilowatt-hours.
func WattHoursToKWh(raw int32) float64 {
	return float64(raw) / 1000
}
