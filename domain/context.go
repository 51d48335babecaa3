package domain

import "context"

type ctxKey struct{}

// Activate returns a context with d bound as the executing domain. Code
// running under the returned context is considered to be inside d, which
// decides whether a capsule release happens synchronously or is posted to
// the owner's queue.
func Activate(ctx context.Context, d *Domain) context.Context {
	return context.WithValue(ctx, ctxKey{}, d)
}

// Current returns the executing domain bound to ctx, if any.
func Current(ctx context.Context) (*Domain, bool) {
	d, ok := ctx.Value(ctxKey{}).(*Domain)
	return d, ok
}
