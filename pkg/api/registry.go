package api

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cardest/cardest/pkg/estimator"
	"github.com/cardest/cardest/pkg/executer"
)

// engineEntry pairs an engine with the lock that serializes access to it.
// The engine itself is single-threaded; every handler touching it holds mu.
type engineEntry struct {
	mu       sync.Mutex
	id       string
	name     string
	workload string
	engine   *estimator.Engine
	executer *executer.SQL
}

// Registry maps engine names to live instances.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]*engineEntry
}

func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*engineEntry)}
}

func (r *Registry) add(name, workload string, eng *estimator.Engine, ex *executer.SQL) (*engineEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[name]; exists {
		return nil, fmt.Errorf("engine %q already exists", name)
	}
	entry := &engineEntry{
		id:       uuid.NewString(),
		name:     name,
		workload: workload,
		engine:   eng,
		executer: ex,
	}
	r.engines[name] = entry
	return entry, nil
}

func (r *Registry) get(name string) (*engineEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[name]
	return e, ok
}

func (r *Registry) list() []*engineEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*engineEntry, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, e)
	}
	return out
}
