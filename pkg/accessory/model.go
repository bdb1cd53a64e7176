package accessory

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultHistorySize = 144 // one day of ten minute ticks

// Entry is one periodic observation.
type Entry struct {
	Time   time.Time          `json:"time"`
	Values map[string]float64 `json:"values"`
}

// Snapshot is the latest state of an accessory as served over HTTP.
type Snapshot struct {
	Name        string             `json:"name"`
	Kind        string             `json:"kind"`
	Values      map[string]float64 `json:"values"`
	PowerW      *uint32            `json:"powerW,omitempty"`
	Tariff      string             `json:"tariff,omitempty"`
	LastUpdated time.Time          `json:"lastupdated"`
	Ticks       int                `json:"ticks"`
}

// Accessory is the default handle of a discovered sub-sensor. Update and Tick
// come from the orchestrator goroutine, Snapshot from HTTP handlers.
type Accessory struct {
	mu     sync.RWMutex
	name   string
	kind   string
	logger *logrus.Entry
	now    func() time.Time

	expected []string
	values   map[string]float64
	tariff   string
	updated  time.Time

	history []Entry
	next    int
	ticks   int
}
