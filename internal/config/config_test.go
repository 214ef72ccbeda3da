package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"CONFIG_FILE", "INVERTER_HOST", "INVERTER_PORT", "DB_PATH", "PORT",
		"AURORA_INVERTER_HOST", "AURORA_INVERTER_PORT", "AURORA_LOG_LEVEL", "AURORA_MQTT_ENABLE"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {

	require := require.New(t)
	clearEnv(t)
	t.Setenv("AURORA_INVERTER_HOST", "192.168.1.50")

	cfg, err := Load(viper.New())
	require.NoError(err)

	require.Equal("192.168.1.50", cfg.Inverter.Host)
	require.Equal(uint(8899), cfg.Inverter.Port)
	require.Equal(uint(2), cfg.Inverter.Address)
	require.Equal(uint32(400), cfg.Inverter.TimeoutMillis)
	require.Equal(uint32(5000), cfg.Monitor.PollIntervalMillis)
	require.False(cfg.Monitor.KeepConnection)
	require.False(cfg.MQTT.Enable)
	require.False(cfg.Storage.Enable)
	require.Equal(90, cfg.Storage.RetentionDays)
	require.Equal(uint(8080), cfg.Port)
	require.Equal(zap.WarnLevel, cfg.LogLevel)
}

func TestLoadRequiresHost(t *testing.T) {

	clearEnv(t)

	_, err := Load(viper.New())
	assert.Error(t, err)
}

func TestLoadAliases(t *testing.T) {

	require := require.New(t)
	clearEnv(t)
	t.Setenv("INVERTER_HOST", "inverter.lan")
	t.Setenv("INVERTER_PORT", "502")
	t.Setenv("DB_PATH", "/data/readings.db")
	t.Setenv("PORT", "9090")
	t.Setenv("AURORA_LOG_LEVEL", "debug")

	cfg, err := Load(viper.New())
	require.NoError(err)

	require.Equal("inverter.lan", cfg.Inverter.Host)
	require.Equal(uint(502), cfg.Inverter.Port)
	require.Equal("/data/readings.db", cfg.Storage.DBPath)
	require.Equal(uint(9090), cfg.Port)
	require.Equal(zap.DebugLevel, cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {

	require := require.New(t)
	clearEnv(t)

	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(os.WriteFile(file, []byte(`
inverter:
  host: 10.0.0.7
  address: 3
monitor:
  poll_interval_millis: 10000
  keep_connection: true
mqtt:
  enable: true
  base_topic: Solar_Roof
  username: user
  password: secret
storage:
  enable: true
  retention_days: 30
`), 0o600))
	t.Setenv("CONFIG_FILE", file)

	cfg, err := Load(viper.New())
	require.NoError(err)

	require.Equal("10.0.0.7", cfg.Inverter.Host)
	require.Equal(uint(3), cfg.Inverter.Address)
	require.True(cfg.Monitor.KeepConnection)
	require.Equal(uint32(10000), cfg.Monitor.PollIntervalMillis)
	require.Equal("solar_roof", cfg.MQTT.BaseTopic, "base topic is lowercased")
	require.Equal("homeassistant", cfg.MQTT.HADiscoveryTopic)
	require.Equal(30, cfg.Storage.RetentionDays)
	require.Equal("aurora.db", cfg.Storage.DBPath)

	redacted := cfg.Redacted()
	require.Equal("*redacted*", redacted.MQTT.Password)
	require.Equal("secret", cfg.MQTT.Password, "original is untouched")
}

func TestValidate(t *testing.T) {

	assert := assert.New(t)

	valid := func() Config {
		return Config{
			Inverter: InverterConfig{Host: "inverter", Port: 8899, Address: 2, TimeoutMillis: 400},
			Monitor:  MonitorConfig{PollIntervalMillis: 5000},
		}
	}

	cfg := valid()
	assert.NoError(cfg.Validate())

	cfg = valid()
	cfg.Inverter.Port = 70000
	assert.Error(cfg.Validate())

	cfg = valid()
	cfg.Inverter.Address = 256
	assert.Error(cfg.Validate())

	cfg = valid()
	cfg.Inverter.TimeoutMillis = 0
	assert.Error(cfg.Validate())

	cfg = valid()
	cfg.Monitor.PollIntervalMillis = 0
	assert.Error(cfg.Validate())

	cfg = valid()
	cfg.Monitor.PollIntervalMillis = 200
	assert.Error(cfg.Validate(), "interval shorter than timeout")

	cfg = valid()
	cfg.MQTT = MQTTConfig{Enable: true, BaseTopic: "aurora/roof", HADiscoveryTopic: "homeassistant"}
	assert.Error(cfg.Validate())

	cfg = valid()
	cfg.Storage = StorageConfig{Enable: true, DBPath: "x.db", RetentionDays: -1}
	assert.Error(cfg.Validate())

	cfg = valid()
	cfg.ModbusExport = ModbusExportConfig{Enable: true}
	assert.Error(cfg.Validate())
}

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("Aurora_2")
	assert.NoError(err)
	assert.Equal("aurora_2", topic)

	_, err = CheckMQTTTopic("")
	assert.Error(err)
	_, err = CheckMQTTTopic("a b")
	assert.Error(err)
}
