package capsule

import (
	"context"

	"go.uber.org/zap"

	"github.com/erquren/xdomain/domain"
	"github.com/erquren/xdomain/errors"
)

// NewValueFunc builds a new value in the consuming domain from a capsule's
// payload. It may run in any domain, any number of times, and must not
// mutate or free the payload.
type NewValueFunc func(payload any) (any, error)

// ConvertFunc fills c with a self-contained representation of v. It runs in
// the producing domain and must leave the capsule independent of v.
type ConvertFunc func(ctx context.Context, v any, c *Capsule) error

// Capsule carries one value's data across a domain boundary.
type Capsule struct {
	payload  any
	free     func(any)
	source   any
	newValue NewValueFunc
	owner    domain.ID
}

// Init populates the capsule. source, when non-nil, is retained until
// release so the original value outlives every consumer. The owning domain
// id is stamped by Produce, not here.
func (c *Capsule) Init(payload, source any, newValue NewValueFunc) {
	c.payload = payload
	c.source = source
	c.newValue = newValue
}

// SetFree installs the cleanup run against the payload at release time. No
// free func means there is nothing to free.
func (c *Capsule) SetFree(fn func(any)) {
	c.free = fn
}

// Owner returns the id of the domain the capsule's data belongs to.
func (c *Capsule) Owner() domain.ID {
	return c.owner
}

// Payload returns the stored payload. Consumers must treat it as read-only.
func (c *Capsule) Payload() any {
	return c.payload
}

func (c *Capsule) check() error {
	if c.owner == 0 {
		return errors.InvalidInput("capsule missing owning domain")
	}
	if c.newValue == nil {
		return errors.InvalidInput("capsule missing constructor func")
	}
	return nil
}

// clear drops the payload and the retained source. It must run in the
// owning domain.
func (c *Capsule) clear() {
	if c.payload != nil && c.free != nil {
		c.free(c.payload)
	}
	c.payload = nil
	c.free = nil
	c.source = nil
}

// Produce converts v into a capsule owned by the executing domain. The
// value's exact type is resolved in the per-domain registry when dynamic and
// the process-wide registry otherwise; a missing entry surfaces as
// NotShareable, while a conversion routine's own failure propagates as is.
func Produce(ctx context.Context, sys *System, v any) (*Capsule, error) {
	cur, ok := domain.Current(ctx)
	if !ok {
		return nil, errors.InvalidInput("no executing domain in context")
	}

	t := TypeOf(v)
	reg, err := sys.registryForType(cur, t)
	if err != nil {
		return nil, err
	}
	fn, found := reg.Lookup(t)
	if !found {
		return nil, sys.notShareable(cur, t)
	}

	c := new(Capsule)
	if err := fn(ctx, v, c); err != nil {
		return nil, err
	}

	c.owner = cur.ID()
	if err := c.check(); err != nil {
		releaseErr := Release(ctx, sys, c)
		if releaseErr != nil {
			Logger().Warn("failed to release invalid capsule",
				zap.Int64("domain", int64(c.owner)),
				zap.Error(releaseErr))
		}
		return nil, err
	}
	return c, nil
}

// Materialize builds a new value from the capsule in the consuming domain.
func Materialize(c *Capsule) (any, error) {
	if c == nil || c.newValue == nil {
		return nil, errors.NotInitialized("capsule")
	}
	return c.newValue(c.payload)
}

// Release frees the capsule's payload and drops its retained source, in the
// owning domain. When the executing context is already the owner the cleanup
// runs synchronously; otherwise it is posted to the owner's call queue and
// the capsule stays alive until the callback runs. Release never blocks and
// a queued release cannot be cancelled.
func Release(ctx context.Context, sys *System, c *Capsule) error {
	if c == nil {
		return nil
	}
	if (c.payload == nil || c.free == nil) && c.source == nil {
		// Nothing to free and nothing retained.
		c.payload = nil
		c.free = nil
		return nil
	}

	owner, ok := sys.Runtime().Get(c.owner)
	if !ok {
		// The owning domain was already destroyed; the data has leaked.
		Logger().Warn("capsule release after owner teardown; data leaked",
			zap.Int64("domain", int64(c.owner)))
		c.forget()
		return errors.Leaked(int64(c.owner), "owning domain no longer exists")
	}

	if cur, ok := domain.Current(ctx); ok && cur.ID() == c.owner {
		c.clear()
		return nil
	}

	// The posted closure keeps the capsule reachable until it runs.
	if err := owner.Post(c.clear); err != nil {
		Logger().Warn("capsule release could not be queued; data leaked",
			zap.Int64("domain", int64(c.owner)),
			zap.Error(err))
		c.forget()
		return errors.Leaked(int64(c.owner), "owning domain's queue rejected the release")
	}
	return nil
}

// forget abandons the payload without running the free func; used when the
// owning domain can no longer perform the cleanup.
func (c *Capsule) forget() {
	c.payload = nil
	c.free = nil
	c.source = nil
}
