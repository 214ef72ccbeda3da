package service

import (
	"time"

	"github.com/berfenger/aurora2mqtt/internal/core/domain"
	"github.com/berfenger/aurora2mqtt/pkg/aurora"
)

// Efficiency is AC output over DC input power, in percent. It is nil when no
// DC power is flowing, which is distinct from a real 0% efficiency.
func Efficiency(power, v1, i1, v2, i2 float64) *float64 {
	input := v1*i1 + v2*i2
	if input <= 0 {
		return nil
	}
	eff := power / input * 100
	return &eff
}

// BuildReading assembles a Reading from one complete set of reads. Energy
// counters are raw watt-hours.
func BuildReading(cycleId string, ts time.Time, dsp map[aurora.DspParameter]float64, energy map[aurora.EnergyPeriod]int32) domain.Reading {
	r := domain.Reading{
		CycleId:        cycleId,
		Timestamp:      ts,
		PowerOutput:    dsp[aurora.DspPowerOutput],
		Voltage1:       dsp[aurora.DspInputVoltage1],
		Current1:       dsp[aurora.DspInputCurrent1],
		Voltage2:       dsp[aurora.DspInputVoltage2],
		Current2:       dsp[aurora.DspInputCurrent2],
		Temperature1:   dsp[aurora.DspTemperature1],
		Temperature2:   dsp[aurora.DspTemperature2],
		GridVoltage:    dsp[aurora.DspGridVoltage],
		PeakPowerToday: dsp[aurora.DspPeakPowerToday],
		EnergyToday:    aurora.WattHoursToKWh(energy[aurora.EnergyToday]),
		EnergyWeek:     aurora.WattHoursToKWh(energy[aurora.EnergyWeek]),
		EnergyMonth:    aurora.WattHoursToKWh(energy[aurora.EnergyMonth]),
		EnergyYear:     aurora.WattHoursToKWh(energy[aurora.EnergyYear]),
		EnergyTotal:    aurora.WattHoursToKWh(energy[aurora.EnergyTotal]),
	}
	r.EfficiencyPercent = Efficiency(r.PowerOutput, r.Voltage1, r.Current1, r.Voltage2, r.Current2)
	return r
}
