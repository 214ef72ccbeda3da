package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel     zapcore.Level
	Inverter     InverterConfig     `mapstructure:"inverter"`
	Monitor      MonitorConfig      `mapstructure:"monitor"`
	MQTT         MQTTConfig         `mapstructure:"mqtt"`
	Storage      StorageConfig      `mapstructure:"storage"`
	ModbusExport ModbusExportConfig `mapstructure:"modbus_export"`
	Port         uint               `mapstructure:"port"`
	HttpLog      bool               `mapstructure:"http_log"`
}

type InverterConfig struct {
	Host          string
	Port          uint
	Address       uint   `mapstructure:"address"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

func (c InverterConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	KeepConnection     bool   `mapstructure:"keep_connection"`
}

func (c MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type StorageConfig struct {
	Enable        bool
	DBPath        string `mapstructure:"db_path"`
	RetentionDays int    `mapstructure:"retention_days"`
	RetentionCron string `mapstructure:"retention_cron"`
}

type ModbusExportConfig struct {
	Enable     bool
	URL        string `mapstructure:"url"`
	MaxClients uint   `mapstructure:"max_clients"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Validate checks bounds and normalizes MQTT topics in place.
func (cfg *Config) Validate() error {
	if cfg.Inverter.Host == "" {
		return errors.New("config param inverter.host is required")
	}
	if cfg.Inverter.Port == 0 || cfg.Inverter.Port > 65535 {
		return fmt.Errorf("config param inverter.port should be in 1..65535, got %d", cfg.Inverter.Port)
	}
	if cfg.Inverter.Address > 255 {
		return fmt.Errorf("config param inverter.address should be in 0..255, got %d", cfg.Inverter.Address)
	}
	if cfg.Inverter.TimeoutMillis == 0 {
		return errors.New("config param inverter.timeout_millis should be > 0")
	}
	if cfg.Monitor.PollIntervalMillis == 0 {
		return errors.New("config param monitor.poll_interval_millis should be > 0")
	}
	if cfg.Monitor.PollIntervalMillis < cfg.Inverter.TimeoutMillis {
		return errors.New("config param monitor.poll_interval_millis should be >= inverter.timeout_millis")
	}

	if cfg.MQTT.Enable {
		// check and fix base topic
		baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			return errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.BaseTopic = baseTopic

		// check and fix homeassistant discovery topic
		hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
		if err != nil {
			return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.HADiscoveryTopic = hadBaseTopic
	}

	if cfg.Storage.Enable {
		if cfg.Storage.DBPath == "" {
			return errors.New("config param storage.db_path is required when storage is enabled")
		}
		if cfg.Storage.RetentionDays < 0 {
			return errors.New("config param storage.retention_days should be >= 0")
		}
	}

	if cfg.ModbusExport.Enable && cfg.ModbusExport.URL == "" {
		return errors.New("config param modbus_export.url is required when modbus export is enabled")
	}

	return nil
}

// Redacted returns a copy safe to log.
func (cfg Config) Redacted() Config {
	if cfg.MQTT.Username != "" {
		cfg.MQTT.Username = "*redacted*"
	}
	if cfg.MQTT.Password != "" {
		cfg.MQTT.Password = "*redacted*"
	}
	return cfg
}
