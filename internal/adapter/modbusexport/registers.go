package modbusexport

import (
	"math"

	"github.com/berfenger/aurora2mqtt/internal/core/domain"
)

const (
	RegAvailable      = 0
	RegPowerOutput    = 1
	RegVoltage1       = 2
	RegCurrent1       = 3
	RegVoltage2       = 4
	RegCurrent2       = 5
	RegTemperature1   = 6
	RegTemperature2   = 7
	RegGridVoltage    = 8
	RegPeakPowerToday = 9
	RegEfficiency     = 10
	RegEnergyToday    = 11
	RegEnergyWeek     = 13
	RegEnergyMonth    = 15
	RegEnergyYear     = 17
	RegEnergyTotal    = 19
	RegCaptureTime    = 21

	RegisterCount = 23

	EfficiencyUnavailable = 0xFFFF
)

// Registers lays a Reading out on the exported register map. Without a
// reading every register is zero.
func Registers(reading domain.Reading, ok bool) [RegisterCount]uint16 {
	var regs [RegisterCount]uint16
	if !ok {
		return regs
	}

	regs[RegAvailable] = 1
	regs[RegPowerOutput] = toUint16(reading.PowerOutput)
	regs[RegVoltage1] = toUint16(reading.Voltage1 * 10)
	regs[RegCurrent1] = toUint16(reading.Current1 * 100)
	regs[RegVoltage2] = toUint16(reading.Voltage2 * 10)
	regs[RegCurrent2] = toUint16(reading.Current2 * 100)
	regs[RegTemperature1] = toInt16Bits(reading.Temperature1 * 10)
	regs[RegTemperature2] = toInt16Bits(reading.Temperature2 * 10)
	regs[RegGridVoltage] = toUint16(reading.GridVoltage * 10)
	regs[RegPeakPowerToday] = toUint16(reading.PeakPowerToday)

	regs[RegEfficiency] = EfficiencyUnavailable
	if reading.HasEfficiency() {
		regs[RegEfficiency] = min(toUint16(*reading.EfficiencyPercent*10), EfficiencyUnavailable-1)
	}

	putUint32(regs[:], RegEnergyToday, kWhToWh(reading.EnergyToday))
	putUint32(regs[:], RegEnergyWeek, kWhToWh(reading.EnergyWeek))
	putUint32(regs[:], RegEnergyMonth, kWhToWh(reading.EnergyMonth))
	putUint32(regs[:], RegEnergyYear, kWhToWh(reading.EnergyYear))
	putUint32(regs[:], RegEnergyTotal, kWhToWh(reading.EnergyTotal))

	var captured uint32
	if unix := reading.Timestamp.Unix(); unix > 0 && unix <= math.MaxUint32 {
		captured = uint32(unix)
	}
	putUint32(regs[:], RegCaptureTime, captured)

	return regs
}

// high word first
func putUint32(regs []uint16, addr int, value uint32) {
	regs[addr] = uint16(value >> 16)
	regs[addr+1] = uint16(value)
}

func toUint16(v float64) uint16 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

func toInt16Bits(v float64) uint16 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v):
		return 0
	case v <= math.MinInt16:
		v = math.MinInt16
	case v >= math.MaxInt16:
		v = math.MaxInt16
	}
	return uint16(int16(v))
}

func kWhToWh(kwh float64) uint32 {
	wh := math.Round(kwh * 1000)
	switch {
	case math.IsNaN(wh), wh <= 0:
		return 0
	case wh >= math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(wh)
}
