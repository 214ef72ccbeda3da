package util

import (
	"github.com/berfenger/aurora2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Inverter: config.InverterConfig{
			Host:          "127.0.0.1",
			Port:          8899,
			Address:       2,
			TimeoutMillis: 40,
		},
		Monitor: config.MonitorConfig{
			PollIntervalMillis: 50,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "aurora",
			HADiscoveryTopic: "homeassistant",
		},
		Storage: config.StorageConfig{
			DBPath:        ":memory:",
			RetentionDays: 90,
			RetentionCron: "0 30 3 * * *",
		},
		ModbusExport: config.ModbusExportConfig{
			URL:        "tcp://127.0.0.1:5020",
			MaxClients: 2,
		},
		Port: 8080,
	}
}
