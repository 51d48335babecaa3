package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/erquren/xdomain"
	"github.com/erquren/xdomain/capsule"
	"github.com/erquren/xdomain/domain"
	"github.com/erquren/xdomain/errors"
	"github.com/erquren/xdomain/namespace"
)

// State is a session's position in its lifecycle.
type State int

const (
	NotEntered State = iota
	Entered
	Exited
)

// Session is one scoped entry into a target domain. Sessions are not safe
// for concurrent use; the entering goroutine owns the whole lifecycle.
type Session struct {
	sys    *capsule.System
	target *domain.Domain

	callerCtx      context.Context
	ownsNewContext bool
	claimedMain    bool

	main xdomain.Mapping
	ns   *namespace.Namespace

	state    State
	override errors.Code
	captured *Envelope
	consumed bool
}

// Enter opens a session into target. When bindings are supplied they are
// converted into a namespace while still in the caller's context; a value
// that cannot be shared fails the call outright and the session is never
// entered. Enter then binds the target domain into a fresh context (unless
// ctx is already executing in it), claims exclusive ownership of the
// target's main namespace, and applies the bindings into it.
//
// On success the returned context is bound to the target and the session is
// Entered. A claim or namespace failure exits the session immediately: the
// error is returned, the envelope is retained, and the returned context is
// the caller's own.
func Enter(ctx context.Context, sys *capsule.System, target *domain.Domain, bindings xdomain.Mapping) (*Session, context.Context, error) {
	if sys == nil || target == nil {
		return nil, ctx, errors.InvalidInput("session requires a system and a target domain")
	}

	s := &Session{
		sys:       sys,
		target:    target,
		callerCtx: ctx,
		state:     NotEntered,
	}

	// Convert the bindings in the caller's context so their capsules are
	// owned by the caller's domain. A fill failure is returned as-is; it
	// happened before the boundary.
	if bindings != nil && len(bindings.Names()) > 0 {
		ns, err := namespace.NewFromMapping(bindings)
		if err != nil {
			return nil, ctx, err
		}
		if err := ns.Fill(ctx, sys, bindings); err != nil {
			return nil, ctx, err
		}
		s.ns = ns
	}

	tctx := ctx
	if cur, ok := domain.Current(ctx); !ok || cur.ID() != target.ID() {
		tctx = domain.Activate(ctx, target)
		s.ownsNewContext = true
	}
	s.state = Entered

	if !target.TryClaimMain() {
		// Someone else is running the target's main namespace. Reported,
		// never waited on, and captured without failure detail.
		s.override = errors.CodeAlreadyRunning
		s.Exit(tctx)
		return s, ctx, errors.AlreadyRunning(int64(target.ID()))
	}
	s.claimedMain = true

	main, err := target.Globals()
	if err != nil {
		return s, ctx, s.abort(tctx, errors.CodeMainNamespace, err)
	}
	s.main = main

	if s.ns != nil {
		if err := s.ns.Apply(main, nil); err != nil {
			return s, ctx, s.abort(tctx, errors.CodeApplyNamespace, err)
		}
	}

	return s, tctx, nil
}

// abort records err as the target's active failure, marks the outcome code
// override, and exits so the failure is captured under that code.
func (s *Session) abort(tctx context.Context, code errors.Code, err error) error {
	s.target.SetFailure(err)
	s.override = code
	s.Exit(tctx)
	return errors.FromCode(code, int64(s.target.ID()))
}

// Exit leaves the target domain: it captures any failure left active there
// (under the pending override code when one was set during entry, otherwise
// as an uncaught exception), releases the main-namespace claim, frees the
// applied namespace, and returns the caller's context. Exiting twice is a
// no-op returning the caller's context.
func (s *Session) Exit(ctx context.Context) context.Context {
	if s.state != Entered {
		if s.state == NotEntered {
			Logger().Warn("exit on a session that was never entered")
		}
		return s.callerCtx
	}

	// The failure slot is only ours to consume while we hold the main
	// claim; a session that never acquired it must leave the running
	// session's state untouched.
	var failure error
	if s.claimedMain {
		failure = s.target.TakeFailure()
	}
	switch {
	case s.override == errors.CodeAlreadyRunning:
		s.captured = capture(s.override, s.target.ID(), nil)
	case s.override != errors.CodeNoError:
		s.captured = capture(s.override, s.target.ID(), failure)
	case failure != nil:
		s.captured = capture(errors.CodeUncaught, s.target.ID(), failure)
	}
	s.override = errors.CodeNoError

	if s.claimedMain {
		s.target.ReleaseMain()
		s.claimedMain = false
	}
	s.main = nil

	// Free in the caller's context: the capsules were produced there, so
	// releases run synchronously for the common case.
	if s.ns != nil {
		if err := s.ns.Free(s.callerCtx, s.sys); err != nil {
			Logger().Warn("failed to free session namespace",
				zap.Int64("domain", int64(s.target.ID())),
				zap.Error(err))
		}
		s.ns = nil
	}

	s.state = Exited
	return s.callerCtx
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	return s.state
}

// HasCaptured reports whether the session holds an unconsumed envelope.
func (s *Session) HasCaptured() bool {
	return s.captured != nil
}

// ApplyCaptured consumes the captured envelope, turning it into an error
// for the caller's domain. The envelope can be consumed exactly once; a nil
// wrapper returns the default rendering. A session that exited cleanly
// yields nil.
func (s *Session) ApplyCaptured(wrap Wrapper) error {
	if s.state != Exited {
		return errors.InvalidInput("session has not exited")
	}
	if s.captured == nil {
		if s.consumed {
			return errors.Consumed("captured failure")
		}
		return nil
	}

	env := s.captured
	s.captured = nil
	s.consumed = true

	base := env.apply()
	if wrap != nil {
		return wrap(env, base)
	}
	return base
}
