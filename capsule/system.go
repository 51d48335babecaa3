package capsule

import (
	"context"
	"sync"

	"github.com/erquren/xdomain/domain"
	"github.com/erquren/xdomain/errors"
)

// System owns the process-wide registry and every per-domain registry. It is
// created once per process, injected into the operations that need registry
// access, and consulted through the domain lifecycle hooks below.
type System struct {
	rt     *domain.Runtime
	global *Registry

	mu     sync.Mutex
	states map[domain.ID]*domainState
}

// domainState is the per-domain core state allocated by InitDomain and torn
// down by FiniDomain.
type domainState struct {
	registry     *Registry
	notShareable *errors.Error
}

// NewSystem creates the capsule system and seeds the builtin conversions
// into the process-wide registry.
func NewSystem(rt *domain.Runtime) *System {
	s := &System{
		rt:     rt,
		global: newRegistry(true),
		states: make(map[domain.ID]*domainState),
	}
	registerBuiltins(s.global)
	return s
}

// Runtime returns the live-domain table the system resolves owners against.
func (s *System) Runtime() *domain.Runtime {
	return s.rt
}

// InitDomain allocates d's core state: its dynamic-type registry and its
// not-shareable error template. Hosts must call it before the domain's
// first boundary operation.
func (s *System) InitDomain(d *domain.Domain) error {
	if d == nil {
		return errors.InvalidInput("nil domain")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.states[d.ID()]; exists {
		return errors.Registration("domain already initialized", nil)
	}
	s.states[d.ID()] = &domainState{
		registry: newRegistry(false),
		notShareable: &errors.Error{
			Code:   errors.CodeNotShareable,
			Kind:   errors.KindNotFound,
			Domain: int64(d.ID()),
		},
	}
	return nil
}

// FiniDomain tears down d's core state. It must run before the host removes
// the domain from the runtime, while the registry and error template are
// still valid.
func (s *System) FiniDomain(d *domain.Domain) error {
	if d == nil {
		return errors.InvalidInput("nil domain")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[d.ID()]
	if !ok {
		return errors.NotInitialized("domain core state")
	}
	state.registry.clear()
	state.notShareable = nil
	delete(s.states, d.ID())
	return nil
}

func (s *System) state(id domain.ID) (*domainState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	return st, ok
}

// registryForType selects the registry holding t: the process-wide one for
// static types, the domain's own for dynamic ones.
func (s *System) registryForType(d *domain.Domain, t domain.Type) (*Registry, error) {
	if t.Static() {
		return s.global, nil
	}
	if d == nil {
		return nil, errors.InvalidInput("dynamic type requires an executing domain")
	}
	st, ok := s.state(d.ID())
	if !ok {
		return nil, errors.NotInitialized("domain core state")
	}
	return st.registry, nil
}

// notShareable builds the NotShareable failure for a lookup miss, using the
// domain's own error template when available.
func (s *System) notShareable(d *domain.Domain, t domain.Type) *errors.Error {
	var domainID int64
	if d != nil {
		domainID = int64(d.ID())
		if st, ok := s.state(d.ID()); ok && st.notShareable != nil {
			tmpl := *st.notShareable
			tmpl.Type = t.TypeName()
			tmpl.Detail = "type does not support cross-domain sharing"
			return &tmpl
		}
	}
	return errors.NotShareableType(t.TypeName(), domainID)
}

// Register maps t to fn in the appropriate registry. Dynamic types require
// an executing domain in ctx.
func (s *System) Register(ctx context.Context, t domain.Type, fn ConvertFunc) error {
	cur, _ := domain.Current(ctx)
	reg, err := s.registryForType(cur, t)
	if err != nil {
		return err
	}
	return reg.Register(t, fn)
}

// Unregister removes one registration of t, reporting whether t was
// registered at all.
func (s *System) Unregister(ctx context.Context, t domain.Type) (bool, error) {
	cur, _ := domain.Current(ctx)
	reg, err := s.registryForType(cur, t)
	if err != nil {
		return false, err
	}
	return reg.Unregister(t), nil
}

// Lookup resolves t's conversion routine. A miss is not an error.
func (s *System) Lookup(ctx context.Context, t domain.Type) (ConvertFunc, bool) {
	cur, _ := domain.Current(ctx)
	reg, err := s.registryForType(cur, t)
	if err != nil {
		return nil, false
	}
	return reg.Lookup(t)
}

// TypeNames lists the shareable type names visible to d: the process-wide
// registrations plus d's own dynamic ones.
func (s *System) TypeNames(d *domain.Domain) []string {
	names := s.global.TypeNames()
	if d != nil {
		if st, ok := s.state(d.ID()); ok {
			names = append(names, st.registry.TypeNames()...)
		}
	}
	return names
}
