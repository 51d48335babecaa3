// Package session implements scoped entry into a target domain. Enter
// claims exclusive ownership of the target's top-level namespace, applies
// the caller's bindings into it, and hands back a context bound to the
// target; Exit captures any failure left active in the target into an
// envelope, releases the claim, and restores the caller's context.
//
// Ownership is claim-or-fail: entering a domain whose main namespace is
// already claimed reports AlreadyRunning immediately, it never waits.
//
// Sessions do not synchronize with domain teardown. An AlreadyRunning
// entry racing the target's removal from the runtime is undefined: the
// session may exit against a handle no longer in the table, and any
// capsule release attempted afterward is reported as a leak.
//
// A captured envelope is a rendered snapshot, independent of the failed
// domain, and is consumed exactly once by ApplyCaptured, which turns it
// into an error the caller's domain can handle. Capture itself never
// panics: a failure whose rendering panics degrades to a generic envelope
// and the rendering problem is only logged.
package session
