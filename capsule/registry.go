package capsule

import (
	"reflect"
	"sync"

	"github.com/erquren/xdomain/domain"
	"github.com/erquren/xdomain/errors"
)

// Registry maps a type to its conversion routine by exact identity. The
// process-wide registry locks around every operation; per-domain registries
// are created unlocked and rely on the owning domain's single-writer
// discipline instead.
type Registry struct {
	mu      sync.Mutex
	entries []regEntry
	locked  bool
}

type regEntry struct {
	// typ is nil for weakly-tracked entries; identity then goes through
	// the weak handle so registration never keeps a dynamic type alive.
	typ  domain.Type
	weak domain.WeakType
	fn   ConvertFunc
	refs int
}

func newRegistry(locked bool) *Registry {
	return &Registry{locked: locked}
}

func (r *Registry) lock() {
	if r.locked {
		r.mu.Lock()
	}
}

func (r *Registry) unlock() {
	if r.locked {
		r.mu.Unlock()
	}
}

// find scans for an exact identity match. Entries whose weak handle no
// longer resolves are evicted in place before the scan continues.
func (r *Registry) find(t domain.Type) int {
	i := 0
	for i < len(r.entries) {
		e := &r.entries[i]
		if e.weak != nil {
			resolved, alive := e.weak.Resolve()
			if !alive {
				r.entries = append(r.entries[:i], r.entries[i+1:]...)
				continue
			}
			if resolved == t {
				return i
			}
		} else if e.typ == t {
			return i
		}
		i++
	}
	return -1
}

// Register maps t to fn. Registering an already-registered type increments
// its refcount; the conversion func must match, and a mismatch is a
// programming error, not a reported one. Dynamic types must implement
// Weakable and are tracked through the weak handle only, so registration
// never keeps a dynamically defined type alive.
func (r *Registry) Register(t domain.Type, fn ConvertFunc) error {
	if t == nil {
		return errors.Registration("only types may be registered", nil)
	}
	if fn == nil {
		return errors.Registration("missing conversion func", nil)
	}
	if !t.Static() {
		if _, ok := t.(domain.Weakable); !ok {
			return errors.Registration("dynamic type "+t.TypeName()+" must provide a weak handle", nil)
		}
	}

	r.lock()
	defer r.unlock()

	if i := r.find(t); i >= 0 {
		e := &r.entries[i]
		if reflect.ValueOf(e.fn).Pointer() != reflect.ValueOf(fn).Pointer() {
			panic("capsule: conflicting conversion registered for type " + t.TypeName())
		}
		e.refs++
		return nil
	}

	e := regEntry{fn: fn, refs: 1}
	if !t.Static() {
		e.weak = t.(domain.Weakable).Weak()
	} else {
		e.typ = t
	}
	r.entries = append(r.entries, e)
	return nil
}

// Unregister decrements t's refcount and removes the entry at zero. It
// reports whether t was registered at all.
func (r *Registry) Unregister(t domain.Type) bool {
	r.lock()
	defer r.unlock()

	i := r.find(t)
	if i < 0 {
		return false
	}
	r.entries[i].refs--
	if r.entries[i].refs == 0 {
		r.entries = append(r.entries[:i], r.entries[i+1:]...)
	}
	return true
}

// Lookup returns the conversion routine for t's exact type. A miss is not
// itself an error; callers decide whether it means NotShareable.
func (r *Registry) Lookup(t domain.Type) (ConvertFunc, bool) {
	r.lock()
	defer r.unlock()

	i := r.find(t)
	if i < 0 {
		return nil, false
	}
	return r.entries[i].fn, true
}

// Len returns the number of live entries, evicting dead ones first.
func (r *Registry) Len() int {
	r.lock()
	defer r.unlock()
	r.find(nil)
	return len(r.entries)
}

// TypeNames returns the rendered names of every live entry.
func (r *Registry) TypeNames() []string {
	r.lock()
	defer r.unlock()

	r.find(nil)
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if e.weak != nil {
			if t, alive := e.weak.Resolve(); alive {
				names = append(names, t.TypeName())
			}
			continue
		}
		names = append(names, e.typ.TypeName())
	}
	return names
}

func (r *Registry) clear() {
	r.lock()
	defer r.unlock()
	r.entries = nil
}
