// Package broadcast serves the latest reading over HTTP and pushes every
// reading to websocket clients on /ws.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/NotCoffee418/p1_bridge/pkg/accessory"
	"github.com/NotCoffee418/p1_bridge/pkg/interpreter"
	"github.com/NotCoffee418/p1_bridge/pkg/metrics"
	"github.com/NotCoffee418/p1_bridge/pkg/stream"
	"github.com/NotCoffee418/p1_bridge/pkg/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 5 * time.Second

// SnapshotSource lists the discovered accessories.
type SnapshotSource interface {
	Snapshots() []accessory.Snapshot
}

type client struct {
	id   string
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

type Server struct {
	name        string
	accessories SnapshotSource
	metrics     *metrics.Metrics
	logger      *logrus.Entry
	upgrader    websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*client]bool

	latestMu sync.RWMutex
	latest   *types.Reading
}

func NewServer(name string, accessories SnapshotSource, m *metrics.Metrics, logger *logrus.Logger) *Server {
	return &Server{
		name:        name,
		accessories: accessories,
		metrics:     m,
		logger:      logger.WithField("component", "broadcast"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStatus)
	mux.HandleFunc("/latest", s.handleLatest)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/accessories", s.handleAccessories)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Run stores and broadcasts every reading until ctx is done or events closes.
func (s *Server) Run(ctx context.Context, events <-chan stream.Event) {
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case ev, ok := <-events:
			if !ok {
				s.closeAll()
				return
			}
			if ev.Kind != stream.EventReading || ev.Reading == nil {
				continue
			}
			s.metrics.ReadingsReceived.WithLabelValues("broadcast").Inc()
			s.latestMu.Lock()
			s.latest = ev.Reading
			s.latestMu.Unlock()
			s.broadcast(ev.Reading)
		}
	}
}

func (s *Server) Latest() *types.Reading {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest
}

func (s *Server) broadcast(r *types.Reading) {
	data, err := interpreter.ReadingToJSON(r)
	if err != nil {
		s.logger.WithError(err).Error("Failed to encode reading")
		return
	}

	s.clientsMu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			s.logger.WithError(err).WithField("client", c.id).Debug("Dropping websocket client")
			s.removeClient(c)
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": s.name + " P1 bridge",
		"status":  "running",
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	reading := s.Latest()
	if reading == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "No readings available yet",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleAccessories(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.accessories.Snapshots())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade error")
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}
	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()
	s.logger.WithField("client", c.id).WithField("remote", r.RemoteAddr).Info("WebSocket client connected")

	// Send current reading immediately if available
	if reading := s.Latest(); reading != nil {
		if data, err := interpreter.ReadingToJSON(reading); err == nil {
			if err := c.write(data); err != nil {
				s.logger.WithError(err).WithField("client", c.id).Debug("Failed to send latest reading")
			}
		}
	}

	// Reads only detect the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.removeClient(c)
			return
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.clientsMu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.clientsMu.Unlock()
	c.conn.Close()
	if ok {
		s.logger.WithField("client", c.id).Info("WebSocket client disconnected")
	}
}

func (s *Server) closeAll() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		c.conn.Close()
		delete(s.clients, c)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Debug("Failed to write response")
	}
}
