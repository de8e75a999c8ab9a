package tether_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/danpasecinic/tether"
)

type conn struct {
	id int32
}

func countingConn(calls *atomic.Int32) tether.Provider[*conn] {
	return func(ctx context.Context, r tether.Resolver) (*conn, error) {
		return &conn{id: calls.Add(1)}, nil
	}
}

func TestScope_Singleton(t *testing.T) {
	t.Parallel()

	c := tether.New()

	var calls atomic.Int32
	_ = tether.Provide(c, countingConn(&calls))

	first := tether.MustInvoke[*conn](c)
	second := tether.MustInvoke[*conn](c)

	if first != second {
		t.Error("singleton should return same instance")
	}
	if calls.Load() != 1 {
		t.Errorf("expected provider to be called once, got %d", calls.Load())
	}
}

func TestScope_Transient(t *testing.T) {
	t.Parallel()

	c := tether.New()

	var calls atomic.Int32
	_ = tether.Provide(c, countingConn(&calls), tether.WithScope(tether.Transient))

	first := tether.MustInvoke[*conn](c)
	second := tether.MustInvoke[*conn](c)
	third := tether.MustInvoke[*conn](c)

	if first == second || second == third {
		t.Error("transient should return new instances")
	}
	if calls.Load() != 3 {
		t.Errorf("expected provider to be called 3 times, got %d", calls.Load())
	}
}

func TestScope_Request(t *testing.T) {
	t.Parallel()

	c := tether.New()

	var calls atomic.Int32
	_ = tether.Provide(c, countingConn(&calls), tether.WithScope(tether.Request))

	ctx1 := tether.WithRequestScope(context.Background())
	ctx2 := tether.WithRequestScope(context.Background())

	first1 := tether.MustInvokeCtx[*conn](ctx1, c)
	second1 := tether.MustInvokeCtx[*conn](ctx1, c)
	first2 := tether.MustInvokeCtx[*conn](ctx2, c)
	second2 := tether.MustInvokeCtx[*conn](ctx2, c)

	if first1 != second1 || first2 != second2 {
		t.Error("same request scope should return same instance")
	}
	if first1 == first2 {
		t.Error("different request scopes should return different instances")
	}
	if calls.Load() != 2 {
		t.Errorf("expected provider to be called 2 times, got %d", calls.Load())
	}
}

func TestScope_Request_NoScope(t *testing.T) {
	t.Parallel()

	c := tether.New()

	var calls atomic.Int32
	_ = tether.Provide(c, countingConn(&calls), tether.WithScope(tether.Request))

	_, err := tether.InvokeCtx[*conn](context.Background(), c)
	if err == nil {
		t.Fatal("expected error when request scope not in context")
	}

	var e *tether.Error
	if !errors.As(err, &e) || e.Code != tether.ErrCodeResolutionFailed {
		t.Fatalf("expected resolution failure, got %v", err)
	}
}

func TestScope_RequestOwnsDerived(t *testing.T) {
	t.Parallel()

	c := tether.New()
	l := &ledger{}

	var calls atomic.Int32
	_ = tether.Provide(c, countingConn(&calls), tether.WithScope(tether.Request))
	_ = tether.Provide(c, l.provider)
	_ = tether.DefineDependency[*conn, *tx](c)

	ctx := tether.WithRequestScope(context.Background())
	first := tether.MustInvokeCtx[*conn](ctx, c)
	_ = tether.MustInvokeCtx[*conn](ctx, c)

	owned := l.ownedBy(first)
	if len(owned) != 1 {
		t.Fatalf("expected one tx per request instance, got %d", len(owned))
	}

	if err := c.DisposeScope(first); err != nil {
		t.Fatalf("DisposeScope failed: %v", err)
	}
	if owned[0].disposed.Load() != 1 {
		t.Error("expected tx disposed at the end of the request")
	}
}

func TestScope_Pooled(t *testing.T) {
	t.Parallel()

	c := tether.New()

	var calls atomic.Int32
	_ = tether.Provide(c, countingConn(&calls), tether.WithPoolSize(2))

	first := tether.MustInvoke[*conn](c)
	second := tether.MustInvoke[*conn](c)

	if calls.Load() != 2 {
		t.Errorf("expected 2 new instances, got %d", calls.Load())
	}

	c.Release(tether.Key[*conn](), first)
	tether.ReleaseInstance(c, second)

	third := tether.MustInvoke[*conn](c)
	fourth := tether.MustInvoke[*conn](c)

	if calls.Load() != 2 {
		t.Errorf("expected no new instances after release, got %d total calls", calls.Load())
	}
	if third != first && third != second {
		t.Error("pooled should reuse released instance")
	}
	if fourth != first && fourth != second {
		t.Error("pooled should reuse released instance")
	}
}

func TestScope_Pooled_Overflow(t *testing.T) {
	t.Parallel()

	c := tether.New()

	var calls atomic.Int32
	_ = tether.Provide(c, countingConn(&calls), tether.WithPoolSize(1))

	first := tether.MustInvoke[*conn](c)
	second := tether.MustInvoke[*conn](c)

	if !tether.ReleaseInstance(c, first) {
		t.Error("first release should succeed")
	}
	if tether.ReleaseInstance(c, second) {
		t.Error("second release should fail (pool full)")
	}
}

func TestScope_String(t *testing.T) {
	t.Parallel()

	cases := map[tether.Scope]string{
		tether.Singleton:     "singleton",
		tether.Transient:     "transient",
		tether.Request:       "request",
		tether.Pooled:        "pooled",
		tether.CreatorScoped: "creator",
		tether.Named:         "named",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("expected %q, got %q", want, s.String())
		}
	}
}
