package exporter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotCoffee418/p1_bridge/pkg/schema"
)

type influxRequest struct {
	path  string
	query map[string]string
	body  string
	user  string
}

func newInfluxServer(t *testing.T, status int) (*httptest.Server, func() []influxRequest) {
	var mu sync.Mutex
	var requests []influxRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, _, _ := r.BasicAuth()
		mu.Lock()
		requests = append(requests, influxRequest{
			path: r.URL.Path,
			query: map[string]string{
				"db":        r.URL.Query().Get("db"),
				"precision": r.URL.Query().Get("precision"),
			},
			body: string(body),
			user: user,
		})
		mu.Unlock()

		if status >= 300 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"database not found: \"p1\""}`))
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []influxRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]influxRequest(nil), requests...)
	}
}

func TestNewInfluxSinkRequiresHostAndDatabase(t *testing.T) {
	_, err := NewInfluxSink(InfluxConfig{Host: "localhost"})
	assert.ErrorIs(t, err, ErrSinkDisabled)

	_, err = NewInfluxSink(InfluxConfig{Database: "p1"})
	assert.ErrorIs(t, err, ErrSinkDisabled)
}

func TestInfluxAddr(t *testing.T) {
	assert.Equal(t, "http://localhost:8086", influxAddr("localhost"))
	assert.Equal(t, "http://influx:9999", influxAddr("influx:9999"))
	assert.Equal(t, "https://influx.example.com", influxAddr("https://influx.example.com"))
}

func TestInfluxSinkWritesOneRequestPerBatch(t *testing.T) {
	srv, requests := newInfluxServer(t, http.StatusNoContent)

	sink, err := NewInfluxSink(InfluxConfig{Host: srv.URL, Database: "p1", Username: "meter", Password: "secret"})
	require.NoError(t, err)
	defer sink.Close()

	ts := time.Unix(1709290800, 0)
	points := []schema.Point{
		schema.ConsumedElectricity("low", schema.ElectricityFields{TotalPower: 1.2, TotalNormal: 100, TotalLow: 50}, ts),
		schema.ElectricityPhase("l1", schema.PhaseFields{Power: 0.5, Current: 2, Voltage: 230}),
		schema.ConsumedGas(12.5, ts),
	}
	require.NoError(t, sink.WritePoints(context.Background(), points))

	reqs := requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, "/write", req.path)
	assert.Equal(t, "p1", req.query["db"])
	assert.Equal(t, "s", req.query["precision"])
	assert.Equal(t, "meter", req.user)

	lines := strings.Split(strings.TrimSpace(req.body), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "consumed_electricity,tariff=low "))
	assert.True(t, strings.HasSuffix(lines[0], " 1709290800"))
	assert.Contains(t, lines[0], "total=150")
	assert.True(t, strings.HasPrefix(lines[1], "electricity_phase,phase=l1 "))
	// phase points leave the timestamp to the server
	assert.Len(t, strings.Fields(lines[1]), 2)
	assert.True(t, strings.HasPrefix(lines[2], "consumed_gas total=12.5 "))
}

func TestInfluxSinkIgnoresPartialCredentials(t *testing.T) {
	srv, requests := newInfluxServer(t, http.StatusNoContent)

	sink, err := NewInfluxSink(InfluxConfig{Host: srv.URL, Database: "p1", Username: "meter"})
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.WritePoints(context.Background(), []schema.Point{schema.ConsumedGas(1, time.Time{})}))
	require.Len(t, requests(), 1)
	assert.Empty(t, requests()[0].user)
}

func TestInfluxSinkReportsRejectedBatch(t *testing.T) {
	srv, requests := newInfluxServer(t, http.StatusNotFound)

	sink, err := NewInfluxSink(InfluxConfig{Host: srv.URL, Database: "p1"})
	require.NoError(t, err)
	defer sink.Close()

	err = sink.WritePoints(context.Background(), []schema.Point{schema.ConsumedGas(1, time.Time{})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")
	assert.Len(t, requests(), 1)
}

func TestInfluxSinkHonoursCancelledContext(t *testing.T) {
	srv, requests := newInfluxServer(t, http.StatusNoContent)

	sink, err := NewInfluxSink(InfluxConfig{Host: srv.URL, Database: "p1"})
	require.NoError(t, err)
	defer sink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.WritePoints(ctx, []schema.Point{schema.ConsumedGas(1, time.Time{})}), context.Canceled)
	assert.Empty(t, requests())
}
