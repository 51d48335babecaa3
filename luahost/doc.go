// Package luahost hosts domains backed by embedded Lua interpreters. Each
// spawned domain owns one lua.State; the state's globals table is exposed
// as the domain's top-level namespace, with Lua scalars converted to the
// canonical shareable kinds at the boundary.
//
// Posted callbacks (cross-domain capsule releases, mostly) are drained at
// the domain's safe points: before and after each Eval, and at Close. A
// failed Eval records a ScriptError in the domain's failure slot, where a
// surrounding session captures it on exit.
package luahost
