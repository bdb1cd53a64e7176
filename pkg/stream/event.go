// Package stream carries source events to independent subscribers.
package stream

import (
	"context"

	"github.com/NotCoffee418/p1_bridge/pkg/types"
)

type EventKind uint8

const (
	// EventReading carries a parsed Reading.
	EventReading EventKind = iota
	// EventConnected reports the endpoint a source is listening on.
	EventConnected
	// EventConnectFailed is a fatal transport error while connecting.
	EventConnectFailed
	// EventError is a transport or parse error; the stream may resume.
	EventError
	// EventRawLine is a diagnostic line the parser did not understand.
	EventRawLine
)

func (k EventKind) String() string {
	switch k {
	case EventReading:
		return "reading"
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connect_failed"
	case EventError:
		return "error"
	case EventRawLine:
		return "raw_line"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind     EventKind
	Reading  *types.Reading
	Err      error
	Endpoint string
	Line     string
}

func ReadingEvent(r *types.Reading) Event { return Event{Kind: EventReading, Reading: r} }
func ConnectedEvent(endpoint string) Event { return Event{Kind: EventConnected, Endpoint: endpoint} }
func ConnectFailedEvent(err error) Event  { return Event{Kind: EventConnectFailed, Err: err} }
func ErrorEvent(err error) Event          { return Event{Kind: EventError, Err: err} }
func RawLineEvent(line string) Event      { return Event{Kind: EventRawLine, Line: line} }

// Publisher is what a source emits into.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Source produces events until ctx is done or the transport gives up.
type Source interface {
	Run(ctx context.Context, pub Publisher)
}
