package luahost

import (
	"sync"

	lua "github.com/Shopify/go-lua"
	"go.uber.org/multierr"

	xdomain "github.com/erquren/xdomain"
	"github.com/erquren/xdomain/capsule"
	"github.com/erquren/xdomain/domain"
	"github.com/erquren/xdomain/errors"
)

// Host owns the domain runtime, the capsule system, and every Lua-backed
// domain spawned through it.
type Host struct {
	rt  *domain.Runtime
	sys *capsule.System

	mu      sync.Mutex
	domains []*Domain
	closed  bool
}

// New creates an empty host.
func New() *Host {
	rt := domain.NewRuntime()
	return &Host{
		rt:  rt,
		sys: capsule.NewSystem(rt),
	}
}

// Runtime returns the host's domain table.
func (h *Host) Runtime() *domain.Runtime {
	return h.rt
}

// System returns the host's capsule system.
func (h *Host) System() *capsule.System {
	return h.sys
}

// Spawn creates a domain backed by a fresh Lua interpreter with the
// standard libraries opened, registers it with the runtime, and runs its
// core init hook.
func (h *Host) Spawn(name string) (*Domain, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.InvalidInput("host is closed")
	}

	state := lua.NewState()
	lua.OpenLibraries(state)

	d := &Domain{
		host:  h,
		state: state,
		queue: &callQueue{},
	}
	core, err := h.rt.Add(domain.Config{
		Queue: d.queue,
		Name:  name,
		Globals: func() (xdomain.Mapping, error) {
			return &globalsMapping{state: state}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	if err := h.sys.InitDomain(core); err != nil {
		h.rt.Remove(core.ID())
		return nil, err
	}
	d.core = core

	h.domains = append(h.domains, d)
	return d, nil
}

// Close tears down every spawned domain and marks the host closed. Errors
// are aggregated; teardown continues past them.
func (h *Host) Close() error {
	h.mu.Lock()
	domains := h.domains
	h.domains = nil
	h.closed = true
	h.mu.Unlock()

	var err error
	for _, d := range domains {
		err = multierr.Append(err, d.Close())
	}
	return err
}
