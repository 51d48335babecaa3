package domain

import (
	"sync"
	"sync/atomic"

	xdomain "github.com/erquren/xdomain"
	"github.com/erquren/xdomain/errors"
)

// ID identifies a live domain. ID 0 is reserved and always invalid.
type ID int64

// Type identifies a value's exact type within its owning domain. Types are
// matched by interface identity, never by subtype or structural equivalence,
// so implementations must be comparable.
type Type interface {
	// TypeName returns the type's rendered name, used in diagnostics and
	// not-shareable errors.
	TypeName() string

	// Static reports whether the type is process-wide (builtin or compiled
	// in) rather than dynamically defined inside one domain.
	Static() bool
}

// WeakType is a weak handle to a dynamically defined type. Resolve reports
// whether the type is still alive; a dead handle lets a registry evict the
// entry lazily during its next scan.
type WeakType interface {
	Resolve() (Type, bool)
}

// Weakable is implemented by dynamic types that can hand out weak handles.
// A registry never keeps a dynamic type alive through registration when the
// type supports this.
type Weakable interface {
	Weak() WeakType
}

// Typed is implemented by host values that know their exact type. Values
// that do not implement it are classified by their Go type.
type Typed interface {
	ExactType() Type
}

// Config carries the host capabilities a new domain is built from.
type Config struct {
	// Queue is the domain's inbound call queue. Required.
	Queue xdomain.Queue

	// Globals returns the domain's top-level namespace. Required for
	// sessions; capsule-only hosts may omit it.
	Globals func() (xdomain.Mapping, error)

	// Name is an optional label used in diagnostics.
	Name string
}

// Domain is the core's handle on one isolated execution context.
type Domain struct {
	queue   xdomain.Queue
	globals func() (xdomain.Mapping, error)
	name    string
	id      ID

	runningMain atomic.Bool

	mu      sync.Mutex
	failure error
}

// ID returns the domain's id.
func (d *Domain) ID() ID {
	return d.id
}

// Name returns the host-assigned label, which may be empty.
func (d *Domain) Name() string {
	return d.name
}

// Post submits fn to the domain's inbound call queue for execution at the
// domain's next safe point. It never waits for fn to run.
func (d *Domain) Post(fn func()) error {
	if d.queue == nil {
		return errors.NotInitialized("domain call queue")
	}
	return d.queue.Post(fn)
}

// Globals returns the domain's top-level namespace.
func (d *Domain) Globals() (xdomain.Mapping, error) {
	if d.globals == nil {
		return nil, errors.NotInitialized("domain globals provider")
	}
	return d.globals()
}

// TryClaimMain attempts to mark this domain's top-level namespace as
// exclusively in use. It reports false when another claimant holds it;
// callers treat that as AlreadyRunning, never as a reason to wait.
func (d *Domain) TryClaimMain() bool {
	return d.runningMain.CompareAndSwap(false, true)
}

// ReleaseMain drops the exclusivity claim.
func (d *Domain) ReleaseMain() {
	d.runningMain.Store(false)
}

// MainClaimed reports whether the main namespace is currently claimed.
func (d *Domain) MainClaimed() bool {
	return d.runningMain.Load()
}

// SetFailure records err as the domain's active failure. A nil err clears it.
func (d *Domain) SetFailure(err error) {
	d.mu.Lock()
	d.failure = err
	d.mu.Unlock()
}

// Failure returns the active failure without clearing it.
func (d *Domain) Failure() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failure
}

// TakeFailure returns the active failure and clears the slot.
func (d *Domain) TakeFailure() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.failure
	d.failure = nil
	return err
}
