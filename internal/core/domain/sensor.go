package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE       = "bridge"
	SENSOR_ID_POWER_OUTPUT       = "power_output"
	SENSOR_ID_INPUT_VOLTAGE_1    = "input_voltage_1"
	SENSOR_ID_INPUT_CURRENT_1    = "input_current_1"
	SENSOR_ID_INPUT_VOLTAGE_2    = "input_voltage_2"
	SENSOR_ID_INPUT_CURRENT_2    = "input_current_2"
	SENSOR_ID_TEMPERATURE_1      = "temperature_1"
	SENSOR_ID_TEMPERATURE_2      = "temperature_2"
	SENSOR_ID_GRID_VOLTAGE       = "grid_voltage"
	SENSOR_ID_PEAK_POWER_TODAY   = "peak_power_today"
	SENSOR_ID_ENERGY_TODAY       = "energy_today"
	SENSOR_ID_ENERGY_WEEK        = "energy_week"
	SENSOR_ID_ENERGY_MONTH       = "energy_month"
	SENSOR_ID_ENERGY_YEAR        = "energy_year"
	SENSOR_ID_ENERGY_TOTAL       = "energy_total"
	SENSOR_ID_EFFICIENCY         = "efficiency"
	SENSOR_ID_POLLER_STATE       = "poller_state"
	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL            = "total"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_CURRENT         = "current"
	DEVICE_CLASS_ENERGY          = "energy"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_POWER_FACTOR    = "power_factor"
	DEVICE_CLASS_TEMPERATURE     = "temperature"
	DEVICE_CLASS_VOLTAGE         = "voltage"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("aurora_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Aurora2MQTT",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Aurora bridge %s", md5HashShort(baseTopic)),
	}
}

// InverterDevice identifies an inverter by its network endpoint and bus
// address; the protocol subset in use exposes no serial number.
func InverterDevice(host string, port uint, address uint8) Device {
	key := fmt.Sprintf("%s:%d/%d", host, port, address)
	return Device{
		Id:           fmt.Sprintf("aurora_inverter_%s", md5HashShort(key)),
		Manufacturer: "Power-One",
		Model:        "Aurora PV inverter",
		Name:         fmt.Sprintf("Aurora inverter %d", address),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

type sensorDef struct {
	id          string
	name        string
	unit        string
	stateClass  string
	deviceClass string
	decimals    uint
}

var inverterSensorDefs = []sensorDef{
	{SENSOR_ID_POWER_OUTPUT, "Output power", "W", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_POWER, 1},
	{SENSOR_ID_INPUT_VOLTAGE_1, "Input 1 voltage", "V", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_VOLTAGE, 1},
	{SENSOR_ID_INPUT_CURRENT_1, "Input 1 current", "A", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_CURRENT, 2},
	{SENSOR_ID_INPUT_VOLTAGE_2, "Input 2 voltage", "V", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_VOLTAGE, 1},
	{SENSOR_ID_INPUT_CURRENT_2, "Input 2 current", "A", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_CURRENT, 2},
	{SENSOR_ID_TEMPERATURE_1, "Inverter temperature", "°C", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_TEMPERATURE, 1},
	{SENSOR_ID_TEMPERATURE_2, "Booster temperature", "°C", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_TEMPERATURE, 1},
	{SENSOR_ID_GRID_VOLTAGE, "Grid voltage", "V", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_VOLTAGE, 1},
	{SENSOR_ID_PEAK_POWER_TODAY, "Peak power today", "W", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_POWER, 1},
	{SENSOR_ID_ENERGY_TODAY, "Energy today", "kWh", STATE_CLASS_TOTAL, DEVICE_CLASS_ENERGY, 3},
	{SENSOR_ID_ENERGY_WEEK, "Energy this week", "kWh", STATE_CLASS_TOTAL, DEVICE_CLASS_ENERGY, 3},
	{SENSOR_ID_ENERGY_MONTH, "Energy this month", "kWh", STATE_CLASS_TOTAL, DEVICE_CLASS_ENERGY, 3},
	{SENSOR_ID_ENERGY_YEAR, "Energy this year", "kWh", STATE_CLASS_TOTAL, DEVICE_CLASS_ENERGY, 3},
	{SENSOR_ID_ENERGY_TOTAL, "Lifetime energy", "kWh", STATE_CLASS_TOTAL_INCREASING, DEVICE_CLASS_ENERGY, 3},
	{SENSOR_ID_EFFICIENCY, "Conversion efficiency", "%", STATE_CLASS_MEASUREMENT, DEVICE_CLASS_POWER_FACTOR, 1},
}

// SensorDecimals is the number of decimals a sensor value is published with.
func SensorDecimals(id string) uint {
	for _, d := range inverterSensorDefs {
		if d.id == id {
			return d.decimals
		}
	}
	return 2
}

func InverterSensors(inverterDevice Device) []GenericSensor {

	var sensors []GenericSensor

	for _, d := range inverterSensorDefs {
		sensors = append(sensors, GenericSensor{
			Device:            inverterDevice,
			Id:                d.id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              d.name,
			StateClass:        d.stateClass,
			DeviceClass:       d.deviceClass,
			UnitOfMeasurement: d.unit,
			UniqueId:          uniqueId(inverterDevice.Id, d.id),
			Decimals:          d.decimals,
		})
	}

	// Poller state
	sensors = append(sensors, GenericSensor{
		Device:           inverterDevice,
		Id:               SENSOR_ID_POLLER_STATE,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Poller state",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(inverterDevice.Id, SENSOR_ID_POLLER_STATE),
	})

	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connection state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
