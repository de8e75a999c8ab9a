package container

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/danpasecinic/tether/internal/activation"
	"github.com/danpasecinic/tether/internal/scope"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newDerived registers a transient session that owns a tx per instance.
func newDerived(t *testing.T, cfg *Config) (*Container, *atomic.Int32) {
	t.Helper()

	c := New(cfg)
	var builds atomic.Int32

	if err := c.Register("session", func(ctx context.Context, r Resolver) (any, error) {
		return &session{id: "s"}, nil
	}, nil); err != nil {
		t.Fatal(err)
	}
	c.Configure("session", func(e *ServiceEntry) { e.Scope = scope.Transient })

	if err := c.Register("tx", txProvider(&builds), nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Declare(typeOf[*session](), typeOf[*tx](), "tx"); err != nil {
		t.Fatal(err)
	}
	return c, &builds
}

func resolveSession(t *testing.T, c *Container) *session {
	t.Helper()

	v, err := c.Resolve(context.Background(), "session")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	return v.(*session)
}

func TestDerived_BuiltPerParent(t *testing.T) {
	t.Parallel()

	c, builds := newDerived(t, nil)

	a := resolveSession(t, c)
	b := resolveSession(t, c)

	if builds.Load() != 2 {
		t.Fatalf("expected one tx per session, got %d", builds.Load())
	}

	depA, ok := c.ScopeEntry(a, "tx")
	if !ok {
		t.Fatal("tx missing from session scope")
	}
	if depA.(*tx).owner != a {
		t.Error("tx should see its session as creator")
	}

	depB, _ := c.ScopeEntry(b, "tx")
	if depA == depB {
		t.Error("sessions must not share a tx")
	}
}

func TestDerived_PrunedWithParent(t *testing.T) {
	t.Parallel()

	c, _ := newDerived(t, nil)
	// tx must not point back at its session or the session never becomes
	// unreachable.
	_ = c.Replace(
		"tx", func(ctx context.Context, r Resolver) (any, error) {
			return &tx{}, nil
		}, nil,
	)

	var dep *tx
	func() {
		s := resolveSession(t, c)
		v, _ := c.ScopeEntry(s, "tx")
		dep = v.(*tx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for dep.disposed.Load() == 0 && time.Now().Before(deadline) {
		runtime.GC()
		_, _ = c.Prune()
		time.Sleep(5 * time.Millisecond)
	}

	if dep.disposed.Load() != 1 {
		t.Fatalf("expected tx disposed once, got %d", dep.disposed.Load())
	}
	if n, _ := c.Prune(); n != 0 {
		t.Errorf("second prune should be a no-op, pruned %d", n)
	}
}

func TestDerived_DisposeAndDisposeScope(t *testing.T) {
	t.Parallel()

	c, _ := newDerived(t, nil)

	s := resolveSession(t, c)
	v, _ := c.ScopeEntry(s, "tx")
	dep := v.(*tx)

	if err := c.DisposeScope(s); err != nil {
		t.Fatal(err)
	}
	if err := c.Dispose(s); err != nil {
		t.Fatal(err)
	}
	if dep.disposed.Load() != 1 {
		t.Errorf("expected single disposal, got %d", dep.disposed.Load())
	}
}

func TestDerived_CreatorScopedBinding(t *testing.T) {
	t.Parallel()

	c, builds := newDerived(t, nil)
	c.Configure("tx", func(e *ServiceEntry) { e.Scope = scope.Creator })

	if _, err := c.Resolve(context.Background(), "tx"); !errors.Is(err, activation.ErrMissingCreatorContext) {
		t.Fatalf("expected ErrMissingCreatorContext, got %v", err)
	}

	var direct any
	_ = c.Register(
		"audit", func(ctx context.Context, r Resolver) (any, error) {
			v, err := r.Resolve(ctx, "tx")
			direct = v
			return &settings{dsn: "audit"}, err
		}, nil,
	)
	c.Configure("audit", func(e *ServiceEntry) { e.Scope = scope.Transient })
	if err := c.Declare(typeOf[*session](), typeOf[*settings](), "audit"); err != nil {
		t.Fatal(err)
	}

	s := resolveSession(t, c)
	declared, _ := c.ScopeEntry(s, "tx")

	if direct != declared {
		t.Error("a creator-scoped lookup should share the declared tx")
	}
	if builds.Load() != 1 {
		t.Errorf("expected one tx build, got %d", builds.Load())
	}
}

func TestDerived_ActivationFailureFailsParent(t *testing.T) {
	t.Parallel()

	c, _ := newDerived(t, nil)
	boom := errors.New("pool exhausted")
	_ = c.Replace(
		"tx", func(ctx context.Context, r Resolver) (any, error) {
			return nil, boom
		}, nil,
	)

	_, err := c.Resolve(context.Background(), "session")
	if !errors.Is(err, activation.ErrUnsatisfiableDependency) || !errors.Is(err, boom) {
		t.Fatalf("expected unsatisfiable dependency, got %v", err)
	}
	if c.ScopeStats().Scopes != 0 {
		t.Error("failed activation must not leave a scope behind")
	}
}

func TestDerived_NestedChain(t *testing.T) {
	t.Parallel()

	c, _ := newDerived(t, nil)

	var audits atomic.Int32
	_ = c.Register(
		"audit", func(ctx context.Context, r Resolver) (any, error) {
			audits.Add(1)
			return &settings{dsn: "audit"}, nil
		}, nil,
	)
	c.Configure("audit", func(e *ServiceEntry) { e.Scope = scope.Transient })
	if err := c.Declare(typeOf[*tx](), typeOf[*settings](), "audit"); err != nil {
		t.Fatal(err)
	}

	s := resolveSession(t, c)
	v, _ := c.ScopeEntry(s, "tx")
	if _, ok := c.ScopeEntry(v, "audit"); !ok {
		t.Fatal("tx should own an audit")
	}

	if err := c.DisposeScope(s); err != nil {
		t.Fatal(err)
	}
	if c.ScopeStats().Scopes != 0 {
		t.Error("disposing the session should cascade through the tx scope")
	}
}

func TestDerived_StopDisposesScopes(t *testing.T) {
	t.Parallel()

	c, _ := newDerived(t, &Config{AutoPrune: time.Millisecond, PruneOnCollect: true})
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	s := resolveSession(t, c)
	v, _ := c.ScopeEntry(s, "tx")

	if err := c.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if v.(*tx).disposed.Load() != 1 {
		t.Error("Stop should dispose live scopes")
	}
	if c.State() != StateStopped {
		t.Errorf("expected stopped, got %s", c.State())
	}
	runtime.KeepAlive(s)
}

func TestDerived_LifecycleHooks(t *testing.T) {
	t.Parallel()

	c := New(&Config{Parallel: true})

	var order []string
	record := func(name string) Hook {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	_ = c.RegisterValue("settings", &settings{})
	_ = c.Register("session", valueProvider(&session{}), []string{"settings"})
	c.registry.AddOnStart("settings", record("start settings"))
	c.registry.AddOnStart("session", record("start session"))
	c.registry.AddOnStop("settings", record("stop settings"))
	c.registry.AddOnStop("session", record("stop session"))

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	want := []string{"start settings", "start session", "stop session", "stop settings"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestDerived_StopCollectsErrors(t *testing.T) {
	t.Parallel()

	c := New(nil)
	first := errors.New("first")
	second := errors.New("second")

	_ = c.RegisterValue("settings", &settings{})
	c.registry.AddOnStop("settings", func(context.Context) error { return first })
	c.registry.AddOnStop("settings", func(context.Context) error { return second })

	ctx := context.Background()
	_ = c.Start(ctx)

	err := c.Stop(ctx)
	if !errors.Is(err, ErrShutdownFailed) || !errors.Is(err, first) || !errors.Is(err, second) {
		t.Errorf("expected both hook errors, got %v", err)
	}
}
