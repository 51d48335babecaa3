// Package capsule moves a value's data across a domain boundary.
//
// A Capsule is an opaque, domain-tagged container holding a self-contained
// copy of one value's data. Producing a capsule resolves the value's exact
// type in a registry of conversion routines; materializing it runs the stored
// constructor to build a fresh value in whatever domain is consuming it. A
// capsule never depends on the original value after creation, so the two
// domains share no mutable state.
//
// # Registries
//
// Two registries exist: a process-wide one for static (builtin or compiled
// in) types, guarded by its own mutex, and one per domain for dynamically
// defined types, relying on the domain's single-writer discipline. Both map
// a type to its conversion routine by exact identity; a subtype never
// satisfies its supertype's registration. Entries for dynamic types hold a
// weak handle rather than a strong reference, and dead entries are evicted
// lazily during the next scan.
//
// The System owns both kinds of registries and is created once per process:
//
//	rt := domain.NewRuntime()
//	sys := capsule.NewSystem(rt)   // seeds the builtin conversions
//	...
//	sys.InitDomain(d)              // before the domain's first use
//	defer sys.FiniDomain(d)        // before the domain is torn down
//
// # Lifecycle
//
// A capsule is produced once, materialized any number of times in any
// domain, and released exactly once. Release must run in the owning domain:
// when the releasing context is already there it runs synchronously,
// otherwise a cleanup callback is posted to the owner's call queue and the
// capsule stays alive until that callback runs. If the owning domain no
// longer exists the data has leaked; the leak is logged and reported, never
// retried.
//
// # Builtin kinds
//
// The absence value (nil), bool, signed 64-bit integers, float64, byte
// buffers, and text are seeded at System creation. Integers outside the
// signed 64-bit range are refused with an overflow error directing the
// caller to the bytes path. Byte buffers are copied both on produce and on
// materialize so no consumer can reach the shared payload.
package capsule
