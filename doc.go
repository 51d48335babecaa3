// Package xdomain provides safe value exchange between isolated execution
// domains living in one process.
//
// A domain is an execution context with its own object graph, top-level
// bindings, and failure state. Domains never share mutable objects; instead a
// value crosses the boundary inside a capsule, a self-contained, domain-tagged
// copy of the value's data that any domain can materialize into a fresh local
// value.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	xdomain/             Root package with the Mapping and Queue host interfaces
//	├── domain/          Domain identity, the live-domain runtime table, and
//	│                    context.Context binding for the executing domain
//	├── capsule/         Capsules, the type-to-conversion registries, and the
//	│                    builtin scalar conversions
//	├── namespace/       Bulk transfer of named bindings as ordered capsule lists
//	├── session/         Scoped entry into a target domain plus the exception
//	│                    envelope used to replay failures elsewhere
//	├── errors/          Structured error types and the outcome-code taxonomy
//	└── luahost/         A complete host adapter backed by Lua interpreter states
//
// # Quick Start
//
// Exchange bindings between two Lua domains:
//
//	host := luahost.New()
//	defer host.Close()
//
//	a, _ := host.Spawn("a")
//	b, _ := host.Spawn("b")
//
//	ctx := domain.Activate(context.Background(), a.Core())
//	s, bctx, err := session.Enter(ctx, host.System(), b.Core(),
//	    xdomain.Bindings{"x": int64(5), "y": "hi"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	b.Eval(`msg = "x is " .. x`)
//	ctx = s.Exit(bctx)
//	if s.HasCaptured() {
//	    err := s.ApplyCaptured(nil)
//	    // err replays b's failure inside a's context
//	}
//
// # Concurrency Model
//
// Each domain is single-writer: a session's claim on the domain's top-level
// namespace is the exclusivity mechanism, and a second claimant gets an
// AlreadyRunning failure rather than blocking. Capsule release in a foreign
// domain is asynchronous message passing through the owning domain's Queue;
// the posted callback keeps the capsule alive until it runs.
package xdomain
