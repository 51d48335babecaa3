package namespace

import (
	"context"

	"go.uber.org/multierr"

	"github.com/erquren/xdomain"
	"github.com/erquren/xdomain/capsule"
	"github.com/erquren/xdomain/errors"
)

// DataState describes how much of a namespace carries data. Only the
// extremes are definite; Partial means "some items may be set".
type DataState int

const (
	DataNone DataState = iota
	DataPartial
	DataComplete
)

// Item is one named slot. Its capsule pointer is the unit of lifetime: a
// deferred cross-domain release holds the item, never the namespace.
type Item struct {
	name string
	data *capsule.Capsule
}

// Name returns the item's binding name.
func (it *Item) Name() string { return it.name }

// HasData reports whether the item holds a capsule.
func (it *Item) HasData() bool { return it.data != nil }

// Namespace is an ordered, fixed-length set of named slots.
type Namespace struct {
	items []*Item
}

// New builds a namespace from an ordered list of names. Empty input and
// empty or duplicate names are rejected. The names are copied; the
// namespace never aliases its source.
func New(names []string) (*Namespace, error) {
	if len(names) == 0 {
		return nil, errors.InvalidInput("namespace requires at least one name")
	}
	seen := make(map[string]struct{}, len(names))
	items := make([]*Item, 0, len(names))
	for _, name := range names {
		if name == "" {
			return nil, errors.InvalidInput("namespace names must be non-empty")
		}
		if _, dup := seen[name]; dup {
			return nil, errors.InvalidInput("duplicate namespace name: " + name)
		}
		seen[name] = struct{}{}
		items = append(items, &Item{name: name})
	}
	return &Namespace{items: items}, nil
}

// NewFromMapping builds a namespace whose names are the mapping's keys; the
// mapping's values are ignored here and read later by Fill.
func NewFromMapping(m xdomain.Mapping) (*Namespace, error) {
	if m == nil {
		return nil, errors.InvalidInput("nil mapping")
	}
	return New(m.Names())
}

// Len returns the number of items.
func (ns *Namespace) Len() int { return len(ns.items) }

// Names returns the item names in order.
func (ns *Namespace) Names() []string {
	names := make([]string, len(ns.items))
	for i, it := range ns.items {
		names[i] = it.name
	}
	return names
}

// Data reports the namespace's fill state by inspecting the first and last
// items. Anything between the extremes is Partial.
func (ns *Namespace) Data() DataState {
	if len(ns.items) == 0 {
		return DataNone
	}
	first := ns.items[0].HasData()
	last := ns.items[len(ns.items)-1].HasData()
	switch {
	case first && last:
		return DataComplete
	case !first && !last:
		return DataNone
	default:
		return DataPartial
	}
}

// Fill produces a capsule for every item whose name is present in src,
// executing in the current domain. A name absent from src leaves its item
// empty; Apply substitutes the caller's default for it later. On the first
// failure every capsule set by this call is released and the error is
// returned: no partially-filled namespace escapes a failed Fill.
//
// Items are fill-once: an item that already holds a capsule fails the call,
// it is never overwritten.
func (ns *Namespace) Fill(ctx context.Context, sys *capsule.System, src xdomain.Mapping) error {
	if src == nil {
		return errors.InvalidInput("nil source mapping")
	}

	filled := make([]*Item, 0, len(ns.items))
	for _, it := range ns.items {
		v, ok := src.Get(it.name)
		if !ok {
			continue
		}
		if it.data != nil {
			ns.rollback(ctx, sys, filled)
			return errors.InvalidInput("namespace item already filled: " + it.name)
		}
		c, err := capsule.Produce(ctx, sys, v)
		if err != nil {
			ns.rollback(ctx, sys, filled)
			return err
		}
		it.data = c
		filled = append(filled, it)
	}
	return nil
}

// rollback releases the capsules set during a failed Fill. Release errors
// here are secondary; they are logged by the capsule layer and dropped.
func (ns *Namespace) rollback(ctx context.Context, sys *capsule.System, filled []*Item) {
	for _, it := range filled {
		_ = capsule.Release(ctx, sys, it.data)
		it.data = nil
	}
}

// Apply binds every item into target: the materialized capsule when the
// item holds one, def otherwise. It stops on the first materialization or
// binding failure; earlier bindings stay applied. Only Fill rolls back.
func (ns *Namespace) Apply(target xdomain.Mapping, def any) error {
	if target == nil {
		return errors.InvalidInput("nil target mapping")
	}

	for _, it := range ns.items {
		v := def
		if it.data != nil {
			mv, err := capsule.Materialize(it.data)
			if err != nil {
				return errors.Conversion(it.name, err)
			}
			v = mv
		}
		if err := target.Set(it.name, v); err != nil {
			return err
		}
	}
	return nil
}

// Free releases every item capsule. Cross-domain releases are posted to the
// owning domain's queue; the namespace may be dropped immediately afterward
// because each pending release pins only its own item. Errors are
// aggregated, not short-circuited.
func (ns *Namespace) Free(ctx context.Context, sys *capsule.System) error {
	var err error
	for _, it := range ns.items {
		if it.data == nil {
			continue
		}
		err = multierr.Append(err, capsule.Release(ctx, sys, it.data))
		it.data = nil
	}
	ns.items = nil
	return err
}
