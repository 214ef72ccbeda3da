package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "aurora"

// env variables accepted without the AURORA_ prefix
var envAliases = map[string]string{
	"INVERTER_HOST": "inverter.host",
	"INVERTER_PORT": "inverter.port",
	"DB_PATH":       "storage.db_path",
	"PORT":          "port",
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("inverter.host", "")
	v.SetDefault("inverter.port", 8899)
	v.SetDefault("inverter.address", 2)
	v.SetDefault("inverter.timeout_millis", 400)
	v.SetDefault("monitor.poll_interval_millis", 5000)
	v.SetDefault("monitor.keep_connection", false)
	v.SetDefault("mqtt.enable", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.base_topic", "aurora")
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	v.SetDefault("storage.enable", false)
	v.SetDefault("storage.db_path", "aurora.db")
	v.SetDefault("storage.retention_days", 90)
	v.SetDefault("storage.retention_cron", "0 30 3 * * *")
	v.SetDefault("modbus_export.enable", false)
	v.SetDefault("modbus_export.url", "tcp://0.0.0.0:5020")
	v.SetDefault("modbus_export.max_clients", 5)
	v.SetDefault("port", 8080)
	v.SetDefault("http_log", false)
}

// Load reads defaults, the optional CONFIG_FILE and the environment into a
// validated Config.
func Load(v *viper.Viper) (*Config, error) {

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for env, key := range envAliases {
		if value := os.Getenv(env); value != "" {
			v.Set(key, value)
		}
	}

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			v.SetConfigFile(cfgFile)

			err = v.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = ParseLogLevel(v.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "error":
		return zap.ErrorLevel
	case "warn":
		return zap.WarnLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}
