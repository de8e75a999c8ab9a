// Package tethertest wraps a tether container with helpers that fail the
// test instead of returning errors.
package tethertest

import (
	"context"
	"runtime"
	"time"

	"github.com/danpasecinic/tether"
)

type TB interface {
	Helper()
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Cleanup(f func())
}

type TestContainer struct {
	*tether.Container
	tb TB
}

// New returns a container that is stopped when the test ends.
func New(tb TB, opts ...tether.Option) *TestContainer {
	tb.Helper()

	c := tether.New(opts...)
	tc := &TestContainer{
		Container: c,
		tb:        tb,
	}

	tb.Cleanup(
		func() {
			if err := c.Stop(context.Background()); err != nil {
				tb.Fatalf("failed to stop container: %v", err)
			}
		},
	)

	return tc
}

func (tc *TestContainer) RequireStart(ctx context.Context) {
	tc.tb.Helper()

	if err := tc.Start(ctx); err != nil {
		tc.tb.Fatalf("failed to start container: %v", err)
	}
}

func (tc *TestContainer) RequireStop(ctx context.Context) {
	tc.tb.Helper()

	if err := tc.Stop(ctx); err != nil {
		tc.tb.Fatalf("failed to stop container: %v", err)
	}
}

func (tc *TestContainer) RequireValidate() {
	tc.tb.Helper()

	if err := tc.Validate(); err != nil {
		tc.tb.Fatalf("container validation failed: %v", err)
	}
}

func (tc *TestContainer) RequireDisposeScope(creator any) {
	tc.tb.Helper()

	if err := tc.DisposeScope(creator); err != nil {
		tc.tb.Fatalf("failed to dispose scope of %T: %v", creator, err)
	}
}

// PruneTimeout bounds RequirePruned.
var PruneTimeout = 5 * time.Second

// RequirePruned collects garbage and prunes until done reports true. The
// caller must drop every reference to the creators it expects to be pruned.
func (tc *TestContainer) RequirePruned(done func() bool) {
	tc.tb.Helper()

	deadline := time.Now().Add(PruneTimeout)
	for {
		runtime.GC()
		if _, err := tc.Prune(); err != nil {
			tc.tb.Fatalf("prune failed: %v", err)
		}
		if done() {
			return
		}
		if time.Now().After(deadline) {
			tc.tb.Fatalf("condition not met after pruning for %s", PruneTimeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// AssertLiveScopes checks how many creators currently own a scope.
func (tc *TestContainer) AssertLiveScopes(expected int) {
	tc.tb.Helper()

	if got := tc.ScopeStats().Scopes; got != expected {
		tc.tb.Fatalf("expected %d live scopes, got %d", expected, got)
	}
}

func Replace[T any](tc *TestContainer, value T) {
	tc.tb.Helper()

	if err := tether.ReplaceValue(tc.Container, value); err != nil {
		tc.tb.Fatalf("failed to replace %s: %v", tether.Key[T](), err)
	}
}

func ReplaceNamed[T any](tc *TestContainer, name string, value T) {
	tc.tb.Helper()

	if err := tether.ReplaceNamedValue(tc.Container, name, value); err != nil {
		tc.tb.Fatalf("failed to replace %s: %v", tether.KeyNamed[T](name), err)
	}
}

func ReplaceProvider[T any](tc *TestContainer, provider tether.Provider[T], opts ...tether.ProviderOption) {
	tc.tb.Helper()

	if err := tether.Replace(tc.Container, provider, opts...); err != nil {
		tc.tb.Fatalf("failed to replace provider %s: %v", tether.Key[T](), err)
	}
}

func ReplaceNamedProvider[T any](tc *TestContainer, name string, provider tether.Provider[T]) {
	tc.tb.Helper()

	if err := tether.ReplaceNamed(tc.Container, name, provider); err != nil {
		tc.tb.Fatalf("failed to replace provider %s: %v", tether.KeyNamed[T](name), err)
	}
}

func AssertHas[T any](tc *TestContainer) {
	tc.tb.Helper()

	if !tether.Has[T](tc.Container) {
		tc.tb.Fatalf("expected container to have %s", tether.Key[T]())
	}
}

func AssertHasNamed[T any](tc *TestContainer, name string) {
	tc.tb.Helper()

	if !tether.HasNamed[T](tc.Container, name) {
		tc.tb.Fatalf("expected container to have %s", tether.KeyNamed[T](name))
	}
}

func AssertNotHas[T any](tc *TestContainer) {
	tc.tb.Helper()

	if tether.Has[T](tc.Container) {
		tc.tb.Fatalf("expected container to not have %s", tether.Key[T]())
	}
}

func MustInvoke[T any](tc *TestContainer) T {
	tc.tb.Helper()

	v, err := tether.Invoke[T](tc.Container)
	if err != nil {
		tc.tb.Fatalf("failed to invoke %s: %v", tether.Key[T](), err)
	}
	return v
}

func MustInvokeNamed[T any](tc *TestContainer, name string) T {
	tc.tb.Helper()

	v, err := tether.InvokeNamed[T](tc.Container, name)
	if err != nil {
		tc.tb.Fatalf("failed to invoke %s: %v", tether.KeyNamed[T](name), err)
	}
	return v
}

func MustProvide[T any](tc *TestContainer, provider tether.Provider[T], opts ...tether.ProviderOption) {
	tc.tb.Helper()

	if err := tether.Provide(tc.Container, provider, opts...); err != nil {
		tc.tb.Fatalf("failed to provide %s: %v", tether.Key[T](), err)
	}
}

func MustProvideValue[T any](tc *TestContainer, value T, opts ...tether.ProviderOption) {
	tc.tb.Helper()

	if err := tether.ProvideValue(tc.Container, value, opts...); err != nil {
		tc.tb.Fatalf("failed to provide value %s: %v", tether.Key[T](), err)
	}
}

func MustProvideNamed[T any](tc *TestContainer, name string, provider tether.Provider[T], opts ...tether.ProviderOption) {
	tc.tb.Helper()

	if err := tether.ProvideNamed(tc.Container, name, provider, opts...); err != nil {
		tc.tb.Fatalf("failed to provide %s: %v", tether.KeyNamed[T](name), err)
	}
}

func MustDefineDependency[P, D any](tc *TestContainer) {
	tc.tb.Helper()

	if err := tether.DefineDependency[P, D](tc.Container); err != nil {
		tc.tb.Fatalf("failed to declare %s for %s: %v", tether.Key[D](), tether.Key[P](), err)
	}
}

// MustScopeEntry returns the D owned by creator.
func MustScopeEntry[D any](tc *TestContainer, creator any) D {
	tc.tb.Helper()

	v, ok := tether.ScopeEntry[D](tc.Container, creator)
	if !ok {
		tc.tb.Fatalf("%T owns no %s", creator, tether.Key[D]())
	}
	return v
}

func MustProvideNamedValue[T any](tc *TestContainer, name string, value T, opts ...tether.ProviderOption) {
	tc.tb.Helper()

	if err := tether.ProvideNamedValue(tc.Container, name, value, opts...); err != nil {
		tc.tb.Fatalf("failed to provide value %s: %v", tether.KeyNamed[T](name), err)
	}
}
