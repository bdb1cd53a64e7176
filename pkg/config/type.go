package config

import (
	"net"
	"strconv"
	"time"
)

const (
	FileName = "p1_bridge.toml"

	DefaultTimeout    = 5
	MinTimeout        = 5
	MaxTimeout        = 120
	LegacyMinTimeout  = 50
	DefaultListenPort = 9039
)

type Config struct {
	Name         string `toml:"name"`
	SerialDevice string `toml:"serial_device"`
	// DSMR22 selects the legacy DSMR 2.2 telegram format.
	DSMR22 bool `toml:"dsmr22"`
	// Timeout is the watchdog timeout in seconds, within [MinTimeout, MaxTimeout].
	Timeout int `toml:"-"`
	// InterpreterAPIHost, when set, reads readings from another instance
	// instead of the serial port.
	InterpreterAPIHost string `toml:"interpreter_api_host"`
	ListenAddress      string `toml:"listen_address"`
	ListenPort         int    `toml:"listen_port"`

	Influx  InfluxConfig  `toml:"influx"`
	Logging LoggingConfig `toml:"logging"`
}

type InfluxConfig struct {
	Host     string `toml:"host"`
	Database string `toml:"database"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// fileConfig is the on-disk shape. Timeout is decoded loosely so that a bad
// value falls back to the default instead of failing the load.
type fileConfig struct {
	Config
	Timeout any `toml:"timeout"`
}

// EffectiveWatchdogTimeout is the time the first reading may take after the
// source connects. DSMR 2.2 meters need at least LegacyMinTimeout seconds.
func (c *Config) EffectiveWatchdogTimeout() time.Duration {
	seconds := c.Timeout
	if c.DSMR22 && seconds < LegacyMinTimeout {
		seconds = LegacyMinTimeout
	}
	return time.Duration(seconds) * time.Second
}

// InfluxEnabled reports whether the exporter has somewhere to write.
func (c *Config) InfluxEnabled() bool {
	return c.Influx.Host != "" && c.Influx.Database != ""
}

func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.ListenAddress, strconv.Itoa(c.ListenPort))
}
