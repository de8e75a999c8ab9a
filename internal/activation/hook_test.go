package activation

import (
	"context"
	"errors"
	"reflect"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpasecinic/tether/internal/declaration"
	"github.com/danpasecinic/tether/internal/scope"
	"github.com/danpasecinic/tether/internal/scopecache"
	"github.com/danpasecinic/tether/internal/weakref"
)

type session struct{ id string }

type job struct{ id string }

type tx struct {
	seq     int
	creator any
	closed  bool
}

func (t *tx) Dispose() error {
	t.closed = true
	return nil
}

type placement struct {
	scope scope.Scope
	name  string
}

type fakeBuilder struct {
	mu         sync.Mutex
	builds     map[string]int
	fail       map[string]error
	placements map[string]placement
	// activate lets a build run the hook on what it produced, the way the
	// container does.
	activate func(ctx context.Context, key string, instance any) error
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{
		builds:     make(map[string]int),
		fail:       make(map[string]error),
		placements: make(map[string]placement),
	}
}

func (b *fakeBuilder) Build(ctx context.Context, key string) (any, error) {
	b.mu.Lock()
	b.builds[key]++
	seq := b.builds[key]
	err := b.fail[key]
	b.mu.Unlock()

	if err != nil {
		return nil, err
	}

	var creator any
	if h, ok := CreatorFrom(ctx); ok {
		creator, _ = h.Resolve()
	}

	instance := &tx{seq: seq, creator: creator}
	if b.activate != nil {
		if err := b.activate(ctx, key, instance); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

func (b *fakeBuilder) Placement(key string) (scope.Scope, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.placements[key]
	if !ok {
		return scope.Transient, ""
	}
	return p.scope, p.name
}

func (b *fakeBuilder) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds[key]
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func newHook(t *testing.T, b *fakeBuilder) (*Hook, *declaration.Registry, *scopecache.Cache) {
	t.Helper()

	reg := declaration.NewRegistry()
	cache := scopecache.New(nil)
	return NewHook(Config{Registry: reg, Cache: cache, Builder: b}), reg, cache
}

func TestHook_NoDeclarations(t *testing.T) {
	t.Parallel()

	b := newFakeBuilder()
	h, _, cache := newHook(t, b)

	require.NoError(t, h.OnActivated(context.Background(), Activation{Key: "session", Instance: &session{}}))
	assert.Equal(t, 0, cache.Stats().Scopes)
}

func TestHook_BuildsDeclaredDependencies(t *testing.T) {
	t.Parallel()

	b := newFakeBuilder()
	h, reg, cache := newHook(t, b)
	_, err := reg.Declare(typeOf[*session](), typeOf[*tx](), "tx")
	require.NoError(t, err)

	parent := &session{id: "a"}
	a := Activation{Key: "session", Instance: parent}

	require.NoError(t, h.OnActivated(context.Background(), a))
	require.NoError(t, h.OnActivated(context.Background(), a))

	assert.Equal(t, 1, b.count("tx"))

	dep, ok := cache.Lookup(parent, "tx")
	require.True(t, ok)
	assert.Same(t, parent, dep.(*tx).creator)
}

func TestHook_DuplicateDeclarations(t *testing.T) {
	t.Parallel()

	b := newFakeBuilder()
	h, reg, cache := newHook(t, b)
	_, _ = reg.Declare(typeOf[*session](), typeOf[*tx](), "tx")
	_, _ = reg.Declare(typeOf[*session](), typeOf[*tx](), "tx")

	parent := &session{id: "a"}
	require.NoError(t, h.OnActivated(context.Background(), Activation{Key: "session", Instance: parent}))

	first, ok := cache.Lookup(parent, "tx")
	require.True(t, ok)
	second, ok := cache.Lookup(parent, "tx@1")
	require.True(t, ok)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, b.count("tx"))
}

func TestHook_IndependentParents(t *testing.T) {
	t.Parallel()

	b := newFakeBuilder()
	h, reg, cache := newHook(t, b)
	_, _ = reg.Declare(typeOf[*session](), typeOf[*tx](), "tx")

	p1 := &session{id: "1"}
	p2 := &session{id: "2"}
	require.NoError(t, h.OnActivated(context.Background(), Activation{Key: "session", Instance: p1}))
	require.NoError(t, h.OnActivated(context.Background(), Activation{Key: "session", Instance: p2}))

	d1, _ := cache.Lookup(p1, "tx")
	d2, _ := cache.Lookup(p2, "tx")
	assert.NotSame(t, d1, d2)

	require.NoError(t, cache.DisposeScope(p1))
	assert.True(t, d1.(*tx).closed)
	assert.False(t, d2.(*tx).closed)
}

func TestHook_FailureDisposesPartialScope(t *testing.T) {
	t.Parallel()

	b := newFakeBuilder()
	h, reg, cache := newHook(t, b)
	_, _ = reg.Declare(typeOf[*session](), typeOf[*tx](), "tx")
	_, _ = reg.Declare(typeOf[*session](), typeOf[*job](), "job")
	boom := errors.New("no connection")
	b.fail["job"] = boom

	parent := &session{id: "a"}
	err := h.OnActivated(context.Background(), Activation{Key: "session", Instance: parent})

	require.ErrorIs(t, err, ErrUnsatisfiableDependency)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "job")

	_, ok := cache.Lookup(parent, "tx")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), cache.Stats().Disposed)
}

func TestHook_InstanceWithoutIdentity(t *testing.T) {
	t.Parallel()

	b := newFakeBuilder()
	h, reg, _ := newHook(t, b)
	_, _ = reg.Declare(typeOf[session](), typeOf[*tx](), "tx")

	err := h.OnActivated(context.Background(), Activation{Key: "session", Instance: session{id: "v"}})
	require.ErrorIs(t, err, weakref.ErrNoIdentity)
	assert.Equal(t, 0, b.count("tx"))
}

func TestHook_NamedPlacement(t *testing.T) {
	t.Parallel()

	b := newFakeBuilder()
	h, reg, cache := newHook(t, b)
	_, _ = reg.Declare(typeOf[*session](), typeOf[*job](), "job")
	_, _ = reg.Declare(typeOf[*job](), typeOf[*tx](), "tx")
	b.placements["tx"] = placement{scope: scope.Named, name: "request"}

	jobs := make(chan *job, 2)
	b.activate = func(ctx context.Context, key string, _ any) error {
		if key != "job" {
			return nil
		}
		j := &job{id: "child"}
		jobs <- j
		return h.OnActivated(ctx, Activation{Key: "job", Instance: j})
	}

	root := &session{id: "root"}
	require.NoError(
		t, h.OnActivated(
			context.Background(), Activation{Key: "session", Instance: root, Scopes: []string{"request"}},
		),
	)

	child := <-jobs
	_, inChild := cache.Lookup(child, "tx")
	assert.False(t, inChild)

	dep, inRoot := cache.Lookup(root, "tx")
	require.True(t, inRoot)
	assert.Same(t, child, dep.(*tx).creator, "the declaring job is still the creator")
}

func TestHook_NamedPlacementWithoutOwner(t *testing.T) {
	t.Parallel()

	b := newFakeBuilder()
	h, reg, _ := newHook(t, b)
	_, _ = reg.Declare(typeOf[*session](), typeOf[*tx](), "tx")
	b.placements["tx"] = placement{scope: scope.Named, name: "request"}

	err := h.OnActivated(context.Background(), Activation{Key: "session", Instance: &session{}})
	require.ErrorIs(t, err, ErrScopeNotFound)
	require.ErrorIs(t, err, ErrUnsatisfiableDependency)
}

func TestHook_ResolveOutsideCreatorContext(t *testing.T) {
	t.Parallel()

	h, _, _ := newHook(t, newFakeBuilder())

	_, err := h.Resolve(context.Background(), "tx", scope.Creator, "")
	require.ErrorIs(t, err, ErrMissingCreatorContext)

	_, err = h.Resolve(context.Background(), "tx", scope.Named, "request")
	require.ErrorIs(t, err, ErrMissingCreatorContext)
}

func TestHook_ResolveSharesFirstSlot(t *testing.T) {
	t.Parallel()

	b := newFakeBuilder()
	h, reg, _ := newHook(t, b)
	_, _ = reg.Declare(typeOf[*session](), typeOf[*tx](), "tx")

	parent := &session{id: "a"}
	handle, err := NewHandle(parent)
	require.NoError(t, err)
	ctx := WithFrame(context.Background(), handle, "session", nil)

	direct, err := h.Resolve(ctx, "tx", scope.Creator, "")
	require.NoError(t, err)
	again, err := h.Resolve(ctx, "tx", scope.Creator, "")
	require.NoError(t, err)
	assert.Same(t, direct, again)

	require.NoError(t, h.OnActivated(context.Background(), Activation{Key: "session", Instance: parent}))
	assert.Equal(t, 1, b.count("tx"))

	_, err = h.Resolve(ctx, "tx", scope.Named, "missing")
	require.ErrorIs(t, err, ErrScopeNotFound)
}

func TestHook_ResolveAfterCreatorCollected(t *testing.T) {
	t.Parallel()

	h, _, _ := newHook(t, newFakeBuilder())

	ctx := func() context.Context {
		handle, err := NewHandle(&session{id: "gone"})
		require.NoError(t, err)
		return WithFrame(context.Background(), handle, "session", nil)
	}()

	require.Eventually(
		t, func() bool {
			runtime.GC()
			h, _ := CreatorFrom(ctx)
			return !h.Alive()
		}, 3*time.Second, 10*time.Millisecond,
	)

	_, err := h.Resolve(ctx, "tx", scope.Creator, "")
	require.ErrorIs(t, err, ErrCreatorUnavailable)
}

func TestHook_NamedOwnerCollected(t *testing.T) {
	t.Parallel()

	b := newFakeBuilder()
	h, reg, _ := newHook(t, b)
	_, _ = reg.Declare(typeOf[*session](), typeOf[*tx](), "tx")
	b.placements["tx"] = placement{scope: scope.Named, name: "request"}

	ctx := func() context.Context {
		handle, err := NewHandle(&job{id: "gone"})
		require.NoError(t, err)
		return WithFrame(context.Background(), handle, "job", []string{"request"})
	}()

	require.Eventually(
		t, func() bool {
			runtime.GC()
			owner, _ := NamedOwner(ctx, "request")
			return !owner.Alive()
		}, 3*time.Second, 10*time.Millisecond,
	)

	err := h.OnActivated(ctx, Activation{Key: "session", Instance: &session{id: "a"}})
	require.ErrorIs(t, err, ErrCreatorUnavailable)
	require.ErrorIs(t, err, ErrUnsatisfiableDependency)
	assert.Contains(t, err.Error(), `"request"`)
	assert.Equal(t, 0, b.count("tx"))
}

func TestHook_Observer(t *testing.T) {
	t.Parallel()

	var (
		gotKey string
		gotN   int
	)
	b := newFakeBuilder()
	reg := declaration.NewRegistry()
	h := NewHook(
		Config{
			Registry: reg,
			Cache:    scopecache.New(nil),
			Builder:  b,
			Observers: []Observer{
				func(key string, n int, _ time.Duration, err error) {
					gotKey, gotN = key, n
					assert.NoError(t, err)
				},
			},
		},
	)
	_, _ = reg.Declare(typeOf[*session](), typeOf[*tx](), "tx")

	require.NoError(t, h.OnActivated(context.Background(), Activation{Key: "session", Instance: &session{}}))
	assert.Equal(t, "session", gotKey)
	assert.Equal(t, 1, gotN)
}
