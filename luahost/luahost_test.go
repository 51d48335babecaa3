package luahost

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	xdomain "github.com/erquren/xdomain"
	"github.com/erquren/xdomain/domain"
	"github.com/erquren/xdomain/errors"
	"github.com/erquren/xdomain/session"
)

func TestEvalAndGlobals(t *testing.T) {
	h := New()
	defer h.Close()

	d, err := h.Spawn("worker")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if err := d.Eval(`x = 21 * 2`); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	g, err := d.Core().Globals()
	if err != nil {
		t.Fatalf("Globals: %v", err)
	}
	if v, ok := g.Get("x"); !ok || v != int64(42) {
		t.Fatalf("x = %v (%T), want int64 42", v, v)
	}

	if err := g.Set("msg", "hi"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := d.Eval(`msg2 = msg .. "!"`); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v, _ := g.Get("msg2"); v != "hi!" {
		t.Fatalf("msg2 = %v", v)
	}

	if err := d.Eval(`f = 1.5`); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v, _ := g.Get("f"); v != 1.5 {
		t.Fatalf("f = %v (%T), want float64 1.5", v, v)
	}

	// Integers beyond float64's exact range stay floats.
	if err := d.Eval(`big = 2^60`); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v, _ := g.Get("big"); v != float64(1<<60) {
		t.Fatalf("big = %v (%T), want float64", v, v)
	}

	if _, ok := g.Get("nosuch"); ok {
		t.Fatal("unset global reported present")
	}
}

func TestGlobals_Names(t *testing.T) {
	h := New()
	defer h.Close()

	d, err := h.Spawn("worker")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := d.Eval(`alpha = 1; beta = "two"`); err != nil {
		t.Fatalf("Eval: %v", err)
	}

	g, _ := d.Core().Globals()
	names := g.Names()
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	// The standard libraries define scalar globals too (_VERSION); only
	// check ours are present and non-scalars are not.
	if !have["alpha"] || !have["beta"] {
		t.Fatalf("Names = %v, missing alpha/beta", names)
	}
	if have["print"] {
		t.Fatal("function global leaked into Names")
	}
}

func TestEval_FailureRecordedAsScriptError(t *testing.T) {
	h := New()
	defer h.Close()

	d, err := h.Spawn("worker")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	err = d.Eval(`error("boom")`)
	if err == nil {
		t.Fatal("expected eval failure")
	}
	var serr *ScriptError
	if !stderrors.As(err, &serr) {
		t.Fatalf("expected ScriptError, got %T", err)
	}
	if serr.FailureType() != "ScriptError" {
		t.Fatalf("FailureType = %q", serr.FailureType())
	}
	if d.Core().Failure() == nil {
		t.Fatal("failure not recorded in the domain's failure slot")
	}
}

func TestSessionAcrossLuaDomains(t *testing.T) {
	h := New()
	defer h.Close()

	a, err := h.Spawn("a")
	if err != nil {
		t.Fatalf("Spawn a: %v", err)
	}
	b, err := h.Spawn("b")
	if err != nil {
		t.Fatalf("Spawn b: %v", err)
	}

	actx := domain.Activate(context.Background(), a.Core())

	s, bctx, err := session.Enter(actx, h.System(), b.Core(), xdomain.Bindings{
		"x": int64(5),
		"y": "hi",
	})
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}

	// The shared bindings are visible to code running in b.
	if err := b.Eval(`z = x * 2; msg = y .. " there"`); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	g, _ := b.Core().Globals()
	if v, _ := g.Get("z"); v != int64(10) {
		t.Fatalf("z = %v", v)
	}
	if v, _ := g.Get("msg"); v != "hi there" {
		t.Fatalf("msg = %v", v)
	}

	// A failing chunk leaves its failure active; exit captures it and
	// ApplyCaptured re-raises it in a's context as a proxy.
	if err := b.Eval(`error("boom")`); err == nil {
		t.Fatal("expected eval failure")
	}
	ctx := s.Exit(bctx)
	if cur, ok := domain.Current(ctx); !ok || cur.ID() != a.Core().ID() {
		t.Fatal("exit did not restore a's context")
	}
	if !s.HasCaptured() {
		t.Fatal("script failure not captured")
	}

	applied := s.ApplyCaptured(nil)
	var proxy *session.ProxyError
	if !stderrors.As(applied, &proxy) {
		t.Fatalf("expected ProxyError, got %T: %v", applied, applied)
	}
	if proxy.TypeName != "ScriptError" {
		t.Fatalf("TypeName = %q", proxy.TypeName)
	}
	if !strings.Contains(proxy.Message, "boom") {
		t.Fatalf("Message = %q", proxy.Message)
	}
	if proxy.Origin != b.Core().ID() {
		t.Fatalf("Origin = %d", proxy.Origin)
	}
}

func TestSession_ContendedLuaDomain(t *testing.T) {
	h := New()
	defer h.Close()

	a, _ := h.Spawn("a")
	b, _ := h.Spawn("b")
	actx := domain.Activate(context.Background(), a.Core())

	first, bctx, err := session.Enter(actx, h.System(), b.Core(), nil)
	if err != nil {
		t.Fatalf("first Enter: %v", err)
	}

	_, _, err = session.Enter(actx, h.System(), b.Core(), nil)
	if !errors.HasCode(err, errors.CodeAlreadyRunning) {
		t.Fatalf("second Enter: %v", err)
	}

	first.Exit(bctx)
	if b.Core().MainClaimed() {
		t.Fatal("claim not released")
	}
}

func TestDomainClose(t *testing.T) {
	h := New()

	d, err := h.Spawn("worker")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if err := d.Eval(`x = 1`); err == nil {
		t.Fatal("eval on a closed domain succeeded")
	}
	if err := d.queue.Post(func() {}); err == nil {
		t.Fatal("post to a closed queue succeeded")
	}
	if _, ok := h.Runtime().Get(d.Core().ID()); ok {
		t.Fatal("closed domain still in the runtime")
	}

	if err := h.Close(); err != nil {
		t.Fatalf("host Close: %v", err)
	}
	if _, err := h.Spawn("late"); err == nil {
		t.Fatal("spawn on a closed host succeeded")
	}
}
