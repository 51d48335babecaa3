// Package domain provides domain identity and the process-wide table of live
// domains.
//
// A Domain is the core's view of one isolated execution context: its id, its
// inbound call queue, the provider of its top-level namespace, the exclusive
// "main namespace" claim used by sessions, and the slot holding its active
// failure. Creating and tearing down the execution context itself (the
// interpreter state, the guest runtime, the scheduler) is the host's job; the
// host hands those capabilities to the core through the Config interfaces.
//
// The Runtime is the lifecycle boundary: hosts Add a domain when it comes up
// and Remove it before teardown. Anything holding a domain id (a capsule's
// owner tag, an envelope's origin) resolves it through the Runtime, and a
// failed resolution means the domain is gone and its data has leaked.
//
// The executing domain travels in a context.Context. Activate binds a domain
// as current; Current reads it back. A session switching into a target domain
// derives a new context rather than mutating thread state.
package domain
