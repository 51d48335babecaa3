// Package namespace implements bulk transfer of named bindings between
// domains. A Namespace is built from a fixed set of names, filled from a
// source mapping in the producing domain, carried across the boundary, and
// applied into a target mapping in the consuming domain.
//
// Fill is transactional: the first conversion failure releases every capsule
// set by that call, so a partially-filled namespace never escapes. Apply is
// not: it stops on the first failure and leaves earlier bindings in place.
//
// Every item holds its capsule behind its own allocation. A cross-domain
// Free posts each item's release to the owning domain's queue, and the
// posted closure keeps that item reachable until it runs, so freeing the
// namespace itself can never invalidate a release still in flight.
package namespace
