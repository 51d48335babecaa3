package luahost

import (
	"sync"

	lua "github.com/Shopify/go-lua"

	"github.com/erquren/xdomain/domain"
	"github.com/erquren/xdomain/errors"
)

// ScriptError is the failure recorded in a domain's failure slot when a
// chunk fails to load or run.
type ScriptError struct {
	Chunk string
	Err   error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return "lua: " + e.Err.Error()
}

// Unwrap returns the interpreter's own error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}

// FailureType names the failure in exception envelopes.
func (e *ScriptError) FailureType() string {
	return "ScriptError"
}

// callQueue is a domain's inbound call queue. Callbacks accumulate until
// the domain reaches a safe point and drains them on its own thread.
type callQueue struct {
	mu     sync.Mutex
	fns    []func()
	closed bool
}

// Post implements xdomain.Queue.
func (q *callQueue) Post(fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.InvalidInput("call queue is closed")
	}
	q.fns = append(q.fns, fn)
	return nil
}

func (q *callQueue) drain() {
	q.mu.Lock()
	fns := q.fns
	q.fns = nil
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (q *callQueue) close() {
	q.mu.Lock()
	q.closed = true
	fns := q.fns
	q.fns = nil
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Domain is one Lua-backed domain: a core domain handle plus the
// interpreter state behind it.
type Domain struct {
	host  *Host
	core  *domain.Domain
	state *lua.State
	queue *callQueue

	mu     sync.Mutex
	closed bool
}

// Core returns the underlying core domain, the handle sessions and capsule
// operations work against.
func (d *Domain) Core() *domain.Domain {
	return d.core
}

// Name returns the host-assigned label.
func (d *Domain) Name() string {
	return d.core.Name()
}

// Eval runs chunk inside the domain's interpreter. Pending callbacks are
// drained before and after the run. A load or runtime failure is recorded
// in the domain's failure slot as a ScriptError and also returned.
func (d *Domain) Eval(chunk string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.InvalidInput("domain is closed")
	}

	d.queue.drain()
	err := lua.DoString(d.state, chunk)
	d.queue.drain()
	if err != nil {
		serr := &ScriptError{Chunk: chunk, Err: err}
		d.core.SetFailure(serr)
		return serr
	}
	return nil
}

// Close runs the domain's fini hook, removes it from the runtime, and shuts
// the call queue. Pending callbacks get one final drain; anything posted
// afterward is refused, which the capsule layer reports as a leak.
func (d *Domain) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	err := d.host.sys.FiniDomain(d.core)
	d.host.rt.Remove(d.core.ID())
	d.queue.close()
	return err
}
