package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a logger writing to stderr with the default settings.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// Apply sets the level and format of logger.
func (l LoggingConfig) Apply(logger *logrus.Logger) error {
	if l.Level != "" {
		level, err := logrus.ParseLevel(l.Level)
		if err != nil {
			return fmt.Errorf("logging: %w", err)
		}
		logger.SetLevel(level)
	}

	switch strings.ToLower(l.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("logging: unknown format %q", l.Format)
	}
	return nil
}
