package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	logger, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "etc", FileName)

	cfg, err := Load(path, logger)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.FileExists(t, path)

	// The written file loads back to the same values.
	again, err := Load(path, logger)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad(t *testing.T) {
	logger, hook := test.NewNullLogger()
	path := writeConfig(t, `
name = "Meter"
serial_device = "/dev/ttyAMA0"
dsmr22 = true
timeout = 30
interpreter_api_host = "raspberrypi.local:9039"
listen_port = 8080

[influx]
host = "influx.local"
database = "p1"
username = "user"
password = "secret"

[logging]
level = "debug"
format = "json"
`)

	cfg, err := Load(path, logger)
	require.NoError(t, err)
	assert.Equal(t, "Meter", cfg.Name)
	assert.Equal(t, "/dev/ttyAMA0", cfg.SerialDevice)
	assert.True(t, cfg.DSMR22)
	assert.Equal(t, 30, cfg.Timeout)
	assert.Equal(t, "raspberrypi.local:9039", cfg.InterpreterAPIHost)
	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr())
	assert.Equal(t, InfluxConfig{Host: "influx.local", Database: "p1", Username: "user", Password: "secret"}, cfg.Influx)
	assert.True(t, cfg.InfluxEnabled())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, hook.AllEntries())
}

func TestLoadWarnsOnUnknownKeys(t *testing.T) {
	logger, hook := test.NewNullLogger()
	path := writeConfig(t, `
name = "P1"
platform = "P1"
[influx]
hots = "typo"
`)

	cfg, err := Load(path, logger)
	require.NoError(t, err)
	assert.False(t, cfg.InfluxEnabled())

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, "p1_bridge.toml: warning: platform: ignoring unknown key", entries[0].Message)
	assert.Equal(t, "p1_bridge.toml: warning: influx.hots: ignoring unknown key", entries[1].Message)
}

func TestLoadTimeoutBounds(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"5", 5},
		{"120", 120},
		{"4", DefaultTimeout},
		{"121", DefaultTimeout},
		{"7.5", DefaultTimeout},
		{"10.0", 10},
		{`"15"`, 15},
		{`"abc"`, DefaultTimeout},
		{"true", DefaultTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			cfg, err := Load(writeConfig(t, "timeout = "+tt.value+"\n"), logger)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Timeout)
		})
	}
}

func TestLoadRejectsInvalidToml(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := Load(writeConfig(t, "name = \n"), logger)
	assert.Error(t, err)
}

func TestEffectiveWatchdogTimeout(t *testing.T) {
	tests := []struct {
		name    string
		dsmr22  bool
		timeout int
		want    time.Duration
	}{
		{"default", false, 5, 5 * time.Second},
		{"configured", false, 30, 30 * time.Second},
		{"legacy floor", true, 5, 50 * time.Second},
		{"legacy just below floor", true, 49, 50 * time.Second},
		{"legacy above floor", true, 90, 90 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DSMR22: tt.dsmr22, Timeout: tt.timeout}
			assert.Equal(t, tt.want, cfg.EffectiveWatchdogTimeout())
		})
	}
}

func TestLoggingApply(t *testing.T) {
	logger := NewLogger()

	require.NoError(t, LoggingConfig{Level: "debug", Format: "json"}.Apply(logger))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	assert.Error(t, LoggingConfig{Level: "loud"}.Apply(logger))
	assert.Error(t, LoggingConfig{Format: "xml"}.Apply(logger))
}
