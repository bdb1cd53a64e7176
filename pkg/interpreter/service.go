package interpreter

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/NotCoffee418/p1_bridge/pkg/stream"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// NewListener creates a listener for host ("host:port").
func NewListener(host string, logger *logrus.Logger) *Listener {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	return &Listener{
		url:            u.String(),
		logger:         logger.WithField("component", "interpreter").WithField("url", u.String()),
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		maxRetries:     maxRetries,
		baseRetryDelay: baseRetryDelay,
		maxRetryDelay:  maxRetryDelay,
		readTimeout:    readTimeout,
		pingInterval:   pingInterval,
	}
}

func (l *Listener) URL() string {
	return l.url
}

// Run keeps a websocket connection open and publishes every reading it
// receives. It reconnects with exponential backoff and gives up after
// maxRetries failed attempts in a row.
func (l *Listener) Run(ctx context.Context, pub stream.Publisher) {
	retryCount := 0
	everConnected := false

	for {
		if retryCount > 0 {
			retryDelay := l.baseRetryDelay << (retryCount - 1)
			if retryDelay > l.maxRetryDelay || retryDelay <= 0 {
				retryDelay = l.maxRetryDelay
			}
			l.logger.Infof("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, l.maxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return
			}
		}

		l.logger.Info("Connecting")
		c, _, err := l.dialer.DialContext(ctx, l.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.WithError(err).Warn("Connection failed")
			if !everConnected && retryCount == 0 {
				pub.Publish(ctx, stream.ConnectFailedEvent(err))
			} else {
				pub.Publish(ctx, stream.ErrorEvent(err))
			}
			retryCount++
			if retryCount >= l.maxRetries {
				err = errors.Join(ErrGaveUp, err)
				l.logger.WithError(err).Errorf("Max retries (%d) reached", l.maxRetries)
				pub.Publish(ctx, stream.ErrorEvent(err))
				return
			}
			continue
		}

		l.logger.Info("Connected! Accepting meter readings.")
		everConnected = true
		retryCount = 0
		pub.Publish(ctx, stream.ConnectedEvent(l.url))

		broken := l.handleConnection(ctx, c, pub)
		c.Close()
		if !broken {
			return
		}

		l.logger.Warn("Connection lost, will retry...")
		pub.Publish(ctx, stream.ErrorEvent(errors.New("websocket connection lost")))
		retryCount = 1
	}
}

// handleConnection reads until the connection breaks (true) or ctx is done
// (false).
func (l *Listener) handleConnection(ctx context.Context, c *websocket.Conn, pub stream.Publisher) bool {
	done := make(chan struct{})

	c.SetReadDeadline(time.Now().Add(l.readTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(l.readTimeout))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					l.logger.WithError(err).Warn("WebSocket error")
				} else {
					l.logger.WithError(err).Info("Connection closed")
				}
				return
			}
			c.SetReadDeadline(time.Now().Add(l.readTimeout))

			if messageType != websocket.TextMessage {
				l.logger.Debugf("Received unexpected message type: %d", messageType)
				continue
			}
			reading, err := ReadingFromJSON(message)
			if err != nil {
				l.logger.WithError(err).Debug("Failed to parse meter reading")
				pub.Publish(ctx, stream.RawLineEvent(string(message)))
				continue
			}
			pub.Publish(ctx, stream.ReadingEvent(reading))
		}
	}()

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				l.logger.WithError(err).Warn("Failed to send ping")
			}
		case <-ctx.Done():
			l.logger.Info("Closing connection")
			err := c.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			if err != nil {
				l.logger.WithError(err).Debug("Error sending close message")
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return false
		}
	}
}
