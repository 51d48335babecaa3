package domain

import (
	"sync"

	"github.com/erquren/xdomain/errors"
)

// Runtime is the process-wide table of live domains. Hosts Add a domain when
// its execution context comes up and Remove it before teardown; everything
// holding a domain id resolves it here.
type Runtime struct {
	mu      sync.RWMutex
	domains map[ID]*Domain
	nextID  ID
	closed  bool
}

// NewRuntime creates an empty runtime table.
func NewRuntime() *Runtime {
	return &Runtime{
		domains: make(map[ID]*Domain),
		nextID:  1,
	}
}

// Add registers a new domain built from cfg and assigns it the next id.
func (r *Runtime) Add(cfg Config) (*Domain, error) {
	if cfg.Queue == nil {
		return nil, errors.InvalidInput("domain config requires a call queue")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.InvalidInput("runtime is closed")
	}

	d := &Domain{
		id:      r.nextID,
		name:    cfg.Name,
		queue:   cfg.Queue,
		globals: cfg.Globals,
	}
	r.nextID++
	r.domains[d.id] = d
	return d, nil
}

// Get resolves a live domain by id.
func (r *Runtime) Get(id ID) (*Domain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.domains[id]
	return d, ok
}

// Remove drops a domain from the table. Capsules still owned by the domain
// can no longer be released afterward; their release reports a leak.
func (r *Runtime) Remove(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.domains[id]
	delete(r.domains, id)
	return ok
}

// Len returns the number of live domains.
func (r *Runtime) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.domains)
}

// Each calls fn for every live domain until fn returns false.
func (r *Runtime) Each(fn func(*Domain) bool) {
	r.mu.RLock()
	snapshot := make([]*Domain, 0, len(r.domains))
	for _, d := range r.domains {
		snapshot = append(snapshot, d)
	}
	r.mu.RUnlock()

	for _, d := range snapshot {
		if !fn(d) {
			return
		}
	}
}

// Close marks the runtime closed and drops all domains.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.domains = make(map[ID]*Domain)
}
