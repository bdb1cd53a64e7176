package accessory

import (
	"sync"

	"github.com/NotCoffee418/p1_bridge/pkg/orchestrator"
	"github.com/NotCoffee418/p1_bridge/pkg/types"
	"github.com/sirupsen/logrus"
)

// Registry collects the accessories built during discovery.
type Registry struct {
	mu          sync.RWMutex
	accessories []*Accessory
	historySize int
	logger      *logrus.Logger
}

func NewRegistry(historySize int, logger *logrus.Logger) *Registry {
	return &Registry{historySize: historySize, logger: logger}
}

// Factory builds accessories for the orchestrator and registers them.
func (r *Registry) Factory() orchestrator.HandleFactory {
	return func(kind orchestrator.Kind, name string, initial types.Slice) orchestrator.LifecycleHandle {
		a := New(kind.String(), name, initial, r.historySize, r.logger)
		r.mu.Lock()
		r.accessories = append(r.accessories, a)
		r.mu.Unlock()
		return a
	}
}

func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.accessories))
	for _, a := range r.accessories {
		out = append(out, a.Snapshot())
	}
	return out
}
