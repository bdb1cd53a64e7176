package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/NotCoffee418/p1_bridge/pkg/metrics"
)

const DefaultBufferSize = 32

// Broker fans every published event out to all subscribers. Each subscriber
// gets its own buffered channel and consumes it on its own goroutine.
// Publish never waits: an event for a subscriber whose buffer is full is
// dropped for that subscriber only, so a stalled consumer cannot hold back
// the source or the other subscribers.
type Broker struct {
	mu         sync.RWMutex
	subs       []*subscription
	bufferSize int
	closed     bool
	logger     *logrus.Entry
	metrics    *metrics.Metrics
}

type subscription struct {
	name    string
	ch      chan Event
	warn    rate.Sometimes
	dropped atomic.Int64
}

// NewBroker creates a broker. m may be nil.
func NewBroker(bufferSize int, logger *logrus.Logger, m *metrics.Metrics) *Broker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broker{
		bufferSize: bufferSize,
		logger:     logger.WithField("component", "stream"),
		metrics:    m,
	}
}

// Subscribe registers a named subscriber. Subscribers must be registered
// before the source starts publishing to see every event.
func (b *Broker) Subscribe(name string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, &subscription{
		name: name,
		ch:   ch,
		warn: rate.Sometimes{First: 1, Interval: time.Minute},
	})
	return ch
}

// Publish delivers ev to every subscriber with room in its buffer, in
// subscription order.
func (b *Broker) Publish(ctx context.Context, ev Event) {
	if ctx.Err() != nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			b.drop(s, ev)
		}
	}
}

func (b *Broker) drop(s *subscription, ev Event) {
	if b.metrics != nil {
		b.metrics.EventsDropped.WithLabelValues(s.name).Inc()
	}
	dropped := s.dropped.Add(1)
	s.warn.Do(func() {
		b.logger.WithFields(logrus.Fields{
			"subscriber": s.name,
			"kind":       ev.Kind.String(),
			"dropped":    dropped,
		}).Warn("subscriber buffer full, dropping event")
	})
}

// Close closes every subscriber channel. Publishing after Close is a no-op.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
}
