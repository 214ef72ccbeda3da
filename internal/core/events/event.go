package events

import (
	. "github.com/berfenger/aurora2mqtt/internal/core/domain"
)

func floatEvent(id string, value float64) FloatSensorUpdateEvent {
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value:    value,
		Decimals: SensorDecimals(id),
	}
}

// ReadingToUpdateEvents maps a Reading to one sensor update per field.
// Efficiency is left out when the reading has none.
func ReadingToUpdateEvents(r Reading) []any {
	var events []any

	// Output
	events = append(events, floatEvent(SENSOR_ID_POWER_OUTPUT, r.PowerOutput))
	events = append(events, floatEvent(SENSOR_ID_PEAK_POWER_TODAY, r.PeakPowerToday))
	events = append(events, floatEvent(SENSOR_ID_GRID_VOLTAGE, r.GridVoltage))

	// DC inputs
	events = append(events, floatEvent(SENSOR_ID_INPUT_VOLTAGE_1, r.Voltage1))
	events = append(events, floatEvent(SENSOR_ID_INPUT_CURRENT_1, r.Current1))
	events = append(events, floatEvent(SENSOR_ID_INPUT_VOLTAGE_2, r.Voltage2))
	events = append(events, floatEvent(SENSOR_ID_INPUT_CURRENT_2, r.Current2))

	// Temperatures
	events = append(events, floatEvent(SENSOR_ID_TEMPERATURE_1, r.Temperature1))
	events = append(events, floatEvent(SENSOR_ID_TEMPERATURE_2, r.Temperature2))

	// Energy counters
	events = append(events, floatEvent(SENSOR_ID_ENERGY_TODAY, r.EnergyToday))
	events = append(events, floatEvent(SENSOR_ID_ENERGY_WEEK, r.EnergyWeek))
	events = append(events, floatEvent(SENSOR_ID_ENERGY_MONTH, r.EnergyMonth))
	events = append(events, floatEvent(SENSOR_ID_ENERGY_YEAR, r.EnergyYear))
	events = append(events, floatEvent(SENSOR_ID_ENERGY_TOTAL, r.EnergyTotal))

	if r.HasEfficiency() {
		events = append(events, floatEvent(SENSOR_ID_EFFICIENCY, *r.EfficiencyPercent))
	}

	return events
}

func PollerStateUpdateEvent(state string) any {
	return TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_POLLER_STATE,
		},
		Value: state,
	}
}
