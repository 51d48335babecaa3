package xdomain

import "sort"

// Mapping is a named set of bindings owned by a single domain, such as the
// domain's top-level namespace. Implementations are not safe for concurrent
// use; access is serialized by the owning domain's exclusivity discipline.
type Mapping interface {
	// Get returns the value bound under name, if any.
	Get(name string) (any, bool)

	// Set binds value under name, replacing any existing binding.
	Set(name string, value any) error

	// Names returns the currently bound names.
	Names() []string
}

// Queue delivers posted callbacks for execution inside a specific domain's
// own execution context. Callbacks run at the domain's next safe point; Post
// never blocks waiting for execution.
type Queue interface {
	Post(fn func()) error
}

// Bindings is a plain map Mapping, convenient for supplying values to a
// session or collecting them in tests.
type Bindings map[string]any

// Get returns the value bound under name.
func (b Bindings) Get(name string) (any, bool) {
	v, ok := b[name]
	return v, ok
}

// Set binds value under name.
func (b Bindings) Set(name string, value any) error {
	b[name] = value
	return nil
}

// Names returns the bound names in sorted order.
func (b Bindings) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
