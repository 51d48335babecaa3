package session

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/erquren/xdomain"
	"github.com/erquren/xdomain/capsule"
	"github.com/erquren/xdomain/domain"
	"github.com/erquren/xdomain/errors"
)

type testQueue struct {
	fns []func()
}

func (q *testQueue) Post(fn func()) error {
	q.fns = append(q.fns, fn)
	return nil
}

type testHost struct {
	rt  *domain.Runtime
	sys *capsule.System
}

func newTestHost(t *testing.T) *testHost {
	t.Helper()
	rt := domain.NewRuntime()
	return &testHost{rt: rt, sys: capsule.NewSystem(rt)}
}

func (h *testHost) spawn(t *testing.T, name string, globals xdomain.Mapping) *domain.Domain {
	t.Helper()
	cfg := domain.Config{Queue: &testQueue{}, Name: name}
	if globals != nil {
		cfg.Globals = func() (xdomain.Mapping, error) { return globals, nil }
	}
	d, err := h.rt.Add(cfg)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := h.sys.InitDomain(d); err != nil {
		t.Fatalf("InitDomain: %v", err)
	}
	return d
}

// scriptFailure mimics a host-level evaluation failure.
type scriptFailure struct {
	msg string
}

func (f *scriptFailure) Error() string       { return f.msg }
func (f *scriptFailure) FailureType() string { return "ScriptError" }

func TestSession_CleanRoundtrip(t *testing.T) {
	h := newTestHost(t)
	a := h.spawn(t, "a", xdomain.Bindings{})
	bGlobals := xdomain.Bindings{}
	b := h.spawn(t, "b", bGlobals)

	actx := domain.Activate(context.Background(), a)

	s, bctx, err := Enter(actx, h.sys, b, xdomain.Bindings{"x": int64(5), "y": "hi"})
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if s.State() != Entered {
		t.Fatalf("state = %v, want Entered", s.State())
	}
	if cur, ok := domain.Current(bctx); !ok || cur.ID() != b.ID() {
		t.Fatal("returned context not bound to the target domain")
	}
	if !b.MainClaimed() {
		t.Fatal("main namespace not claimed while entered")
	}

	if v, _ := bGlobals.Get("x"); v != int64(5) {
		t.Fatalf("x = %v, want 5", v)
	}
	if v, _ := bGlobals.Get("y"); v != "hi" {
		t.Fatalf("y = %v, want hi", v)
	}

	ctx := s.Exit(bctx)
	if cur, ok := domain.Current(ctx); !ok || cur.ID() != a.ID() {
		t.Fatal("exit did not restore the caller's context")
	}
	if b.MainClaimed() {
		t.Fatal("claim not released on exit")
	}
	if s.HasCaptured() {
		t.Fatal("clean session captured a failure")
	}
	if err := s.ApplyCaptured(nil); err != nil {
		t.Fatalf("ApplyCaptured on clean session: %v", err)
	}
}

func TestSession_CapturesUncaughtFailure(t *testing.T) {
	h := newTestHost(t)
	a := h.spawn(t, "a", xdomain.Bindings{})
	b := h.spawn(t, "b", xdomain.Bindings{})
	actx := domain.Activate(context.Background(), a)

	s, bctx, err := Enter(actx, h.sys, b, nil)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}

	// Code running in b fails and records the failure before returning.
	b.SetFailure(&scriptFailure{msg: "boom"})

	s.Exit(bctx)
	if !s.HasCaptured() {
		t.Fatal("active failure not captured on exit")
	}
	if b.Failure() != nil {
		t.Fatal("capture must clear the domain's failure slot")
	}

	err = s.ApplyCaptured(nil)
	var proxy *ProxyError
	if !stderrors.As(err, &proxy) {
		t.Fatalf("expected ProxyError, got %T: %v", err, err)
	}
	if proxy.TypeName != "ScriptError" {
		t.Fatalf("TypeName = %q", proxy.TypeName)
	}
	if !strings.Contains(proxy.Message, "boom") {
		t.Fatalf("Message = %q", proxy.Message)
	}
	if proxy.Origin != b.ID() {
		t.Fatalf("Origin = %d, want %d", proxy.Origin, b.ID())
	}

	// The envelope is single-use.
	if s.HasCaptured() {
		t.Fatal("envelope still held after consumption")
	}
	err = s.ApplyCaptured(nil)
	if !stderrors.Is(err, &errors.Error{Code: errors.CodeOther, Kind: errors.KindConsumed}) {
		t.Fatalf("second ApplyCaptured: %v", err)
	}
}

func TestSession_ApplyCapturedWrapper(t *testing.T) {
	h := newTestHost(t)
	a := h.spawn(t, "a", xdomain.Bindings{})
	b := h.spawn(t, "b", xdomain.Bindings{})
	actx := domain.Activate(context.Background(), a)

	s, bctx, err := Enter(actx, h.sys, b, nil)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	b.SetFailure(&scriptFailure{msg: "boom"})
	s.Exit(bctx)

	wrapped := s.ApplyCaptured(func(env *Envelope, base error) error {
		return errors.Registration("remote failure: "+env.TypeName, base)
	})
	if !strings.Contains(wrapped.Error(), "ScriptError") {
		t.Fatalf("wrapper output missing type name: %v", wrapped)
	}
	var proxy *ProxyError
	if !stderrors.As(wrapped, &proxy) {
		t.Fatal("wrapper lost the underlying proxy")
	}
}

func TestSession_AlreadyRunning(t *testing.T) {
	h := newTestHost(t)
	a := h.spawn(t, "a", xdomain.Bindings{})
	b := h.spawn(t, "b", xdomain.Bindings{})
	actx := domain.Activate(context.Background(), a)

	// Another claimant holds b's main namespace.
	if !b.TryClaimMain() {
		t.Fatal("precondition: claim failed")
	}

	s, ctx, err := Enter(actx, h.sys, b, nil)
	if err == nil {
		t.Fatal("expected AlreadyRunning")
	}
	if !errors.HasCode(err, errors.CodeAlreadyRunning) {
		t.Fatalf("code = %v", err)
	}
	if cur, ok := domain.Current(ctx); !ok || cur.ID() != a.ID() {
		t.Fatal("failed enter must return the caller's context")
	}
	if s.State() != Exited {
		t.Fatalf("state = %v, want Exited", s.State())
	}

	// The other claimant's hold is untouched.
	if !b.MainClaimed() {
		t.Fatal("foreign claim released by the failed enter")
	}

	// AlreadyRunning is captured without failure detail.
	applied := s.ApplyCaptured(nil)
	var e *errors.Error
	if !stderrors.As(applied, &e) {
		t.Fatalf("unexpected error type %T", applied)
	}
	if e.Code != errors.CodeAlreadyRunning {
		t.Fatalf("code = %v", e.Code)
	}
	if e.Cause != nil {
		t.Fatal("AlreadyRunning must not carry failure detail")
	}
}

func TestSession_AlreadyRunningLeavesTargetStateAlone(t *testing.T) {
	h := newTestHost(t)
	a := h.spawn(t, "a", xdomain.Bindings{})
	b := h.spawn(t, "b", xdomain.Bindings{})
	actx := domain.Activate(context.Background(), a)

	// A running session holds the claim and has a failure active in b.
	if !b.TryClaimMain() {
		t.Fatal("precondition: claim failed")
	}
	active := &scriptFailure{msg: "still busy"}
	b.SetFailure(active)

	_, _, err := Enter(actx, h.sys, b, nil)
	if !errors.HasCode(err, errors.CodeAlreadyRunning) {
		t.Fatalf("code = %v", err)
	}

	// The failed enter must not have consumed the running session's
	// failure or its claim.
	if b.Failure() != active {
		t.Fatalf("Failure = %v, want the running session's failure intact", b.Failure())
	}
	if !b.MainClaimed() {
		t.Fatal("foreign claim released by the failed enter")
	}
}

func TestSession_FillFailureNeverEnters(t *testing.T) {
	h := newTestHost(t)
	a := h.spawn(t, "a", xdomain.Bindings{})
	b := h.spawn(t, "b", xdomain.Bindings{})
	actx := domain.Activate(context.Background(), a)

	type opaque struct{ n int }
	s, ctx, err := Enter(actx, h.sys, b, xdomain.Bindings{"bad": opaque{n: 1}})
	if err == nil {
		t.Fatal("expected fill failure")
	}
	if !errors.HasCode(err, errors.CodeNotShareable) {
		t.Fatalf("code = %v", err)
	}
	if s != nil {
		t.Fatal("no session should exist after a fill failure")
	}
	if ctx != actx {
		t.Fatal("context changed by a failed fill")
	}
	if b.MainClaimed() {
		t.Fatal("target claimed despite never entering")
	}
}

func TestSession_MainNamespaceFailure(t *testing.T) {
	h := newTestHost(t)
	a := h.spawn(t, "a", xdomain.Bindings{})
	b := h.spawn(t, "b", nil) // no globals provider
	actx := domain.Activate(context.Background(), a)

	s, _, err := Enter(actx, h.sys, b, nil)
	if err == nil {
		t.Fatal("expected main namespace failure")
	}
	if !errors.HasCode(err, errors.CodeMainNamespace) {
		t.Fatalf("code = %v", err)
	}
	if s.State() != Exited {
		t.Fatal("session not exited after entry failure")
	}
	if b.MainClaimed() {
		t.Fatal("claim leaked by failed entry")
	}

	// The underlying failure rides along as the proxied cause.
	applied := s.ApplyCaptured(nil)
	var e *errors.Error
	if !stderrors.As(applied, &e) {
		t.Fatalf("unexpected error type %T", applied)
	}
	if e.Code != errors.CodeMainNamespace {
		t.Fatalf("code = %v", e.Code)
	}
	var proxy *ProxyError
	if !stderrors.As(e.Cause, &proxy) {
		t.Fatal("entry failure detail not proxied")
	}
	if !strings.Contains(proxy.Message, "not initialized") {
		t.Fatalf("proxied message = %q", proxy.Message)
	}
}

type rejectingMapping struct {
	xdomain.Bindings
}

func (m *rejectingMapping) Set(string, any) error {
	return errors.InvalidInput("read-only namespace")
}

func TestSession_ApplyNamespaceFailure(t *testing.T) {
	h := newTestHost(t)
	a := h.spawn(t, "a", xdomain.Bindings{})
	b := h.spawn(t, "b", &rejectingMapping{Bindings: xdomain.Bindings{}})
	actx := domain.Activate(context.Background(), a)

	s, _, err := Enter(actx, h.sys, b, xdomain.Bindings{"x": int64(1)})
	if err == nil {
		t.Fatal("expected apply failure")
	}
	if !errors.HasCode(err, errors.CodeApplyNamespace) {
		t.Fatalf("code = %v", err)
	}
	if s.State() != Exited {
		t.Fatal("session not exited after apply failure")
	}
	if b.MainClaimed() {
		t.Fatal("claim leaked by failed apply")
	}
}

type panickyFailure struct{}

func (f *panickyFailure) Error() string { panic("render failure") }

func TestSession_CaptureNeverPanics(t *testing.T) {
	h := newTestHost(t)
	a := h.spawn(t, "a", xdomain.Bindings{})
	b := h.spawn(t, "b", xdomain.Bindings{})
	actx := domain.Activate(context.Background(), a)

	s, bctx, err := Enter(actx, h.sys, b, nil)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	b.SetFailure(&panickyFailure{})

	s.Exit(bctx) // must not panic
	if !s.HasCaptured() {
		t.Fatal("degraded capture still records an envelope")
	}

	applied := s.ApplyCaptured(nil)
	var e *errors.Error
	if !stderrors.As(applied, &e) {
		t.Fatalf("unexpected error type %T", applied)
	}
	if e.Code != errors.CodeOther {
		t.Fatalf("code = %v, want CodeOther fallback", e.Code)
	}
}

func TestSession_ExitTwice(t *testing.T) {
	h := newTestHost(t)
	a := h.spawn(t, "a", xdomain.Bindings{})
	b := h.spawn(t, "b", xdomain.Bindings{})
	actx := domain.Activate(context.Background(), a)

	s, bctx, err := Enter(actx, h.sys, b, nil)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	first := s.Exit(bctx)
	second := s.Exit(bctx)
	if first != second {
		t.Fatal("repeated exit must keep returning the caller's context")
	}
}
