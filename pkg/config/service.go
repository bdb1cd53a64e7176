package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/p1_bridge/pkg/pathing"
	"github.com/sirupsen/logrus"
)

func Default() *Config {
	return &Config{
		Name:          "P1",
		SerialDevice:  "/dev/ttyUSB0",
		Timeout:       DefaultTimeout,
		ListenAddress: "0.0.0.0",
		ListenPort:    DefaultListenPort,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath is the configuration file inside the configuration directory.
func DefaultPath() string {
	return pathing.GetConfigPath(FileName)
}

// Load reads the configuration at path. A missing file is created with the
// defaults. Unknown keys are reported on logger and ignored.
func Load(path string, logger *logrus.Logger) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := write(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		logger.WithField("path", path).Info("Created default config")
		return cfg, nil
	}

	raw := fileConfig{Config: *Default()}
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	for _, key := range meta.Undecoded() {
		logger.Warnf("%s: warning: %s: ignoring unknown key", filepath.Base(path), key)
	}

	cfg := raw.Config
	cfg.Timeout = DefaultTimeout
	if meta.IsDefined("timeout") {
		cfg.Timeout = toIntBetween(raw.Timeout, MinTimeout, MaxTimeout, DefaultTimeout)
	}
	if cfg.ListenPort <= 0 || cfg.ListenPort > math.MaxUint16 {
		cfg.ListenPort = DefaultListenPort
	}
	return &cfg, nil
}

func write(path string, cfg *Config) error {
	if err := pathing.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(fileConfig{Config: *cfg, Timeout: cfg.Timeout})
}

// toIntBetween returns value as an int when it is a whole number within
// [lo, hi], and def otherwise.
func toIntBetween(value any, lo, hi, def int) int {
	var f float64
	switch v := value.(type) {
	case int64:
		f = float64(v)
	case float64:
		f = v
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		f = n
	default:
		return def
	}
	if f != math.Floor(f) || f < float64(lo) || f > float64(hi) {
		return def
	}
	return int(f)
}
