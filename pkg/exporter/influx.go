package exporter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	client "github.com/influxdata/influxdb/client/v2"

	"github.com/NotCoffee418/p1_bridge/pkg/schema"
)

const (
	defaultInfluxPort = "8086"
	writeTimeout      = 10 * time.Second
)

var (
	ErrSinkDisabled = errors.New("influx sink not configured")
)

type InfluxConfig struct {
	Host     string
	Database string
	Username string
	Password string
}

// InfluxSink writes batches to an InfluxDB 1.x database over HTTP.
type InfluxSink struct {
	client   client.Client
	database string
}

// NewInfluxSink returns ErrSinkDisabled when host or database is missing.
// Credentials are only used when both username and password are set.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, ErrSinkDisabled
	}

	httpConfig := client.HTTPConfig{
		Addr:    influxAddr(cfg.Host),
		Timeout: writeTimeout,
	}
	if cfg.Username != "" && cfg.Password != "" {
		httpConfig.Username = cfg.Username
		httpConfig.Password = cfg.Password
	}

	c, err := client.NewHTTPClient(httpConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create influx client: %w", err)
	}

	return &InfluxSink{client: c, database: cfg.Database}, nil
}

// influxAddr turns a bare host into the default HTTP endpoint.
func influxAddr(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, defaultInfluxPort)
	}
	u := url.URL{Scheme: "http", Host: host}
	return u.String()
}

func (s *InfluxSink) WritePoints(ctx context.Context, points []schema.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  s.database,
		Precision: "s",
	})
	if err != nil {
		return err
	}

	for _, p := range points {
		pt, err := toInfluxPoint(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Measurement, err)
		}
		bp.AddPoint(pt)
	}

	return s.client.Write(bp)
}

func toInfluxPoint(p schema.Point) (*client.Point, error) {
	fields := make(map[string]interface{}, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	if p.HasTime() {
		return client.NewPoint(p.Measurement, p.TagMap(), fields, p.Time)
	}
	return client.NewPoint(p.Measurement, p.TagMap(), fields)
}

func (s *InfluxSink) Close() error {
	return s.client.Close()
}
