package tether

import (
	"context"
	"fmt"
	reflectPkg "reflect"

	"github.com/danpasecinic/tether/internal/activation"
	"github.com/danpasecinic/tether/internal/container"
	"github.com/danpasecinic/tether/internal/reflect"
)

// CreatorHandle is a weak reference to the instance whose activation built a
// dependency.
type CreatorHandle = activation.CreatorHandle

// Proxy is the state behind a weak forwarding proxy. Implementations of T
// embed or wrap it and forward each call through Target, so holding a proxy
// never keeps the creator alive.
type Proxy[T any] struct {
	handle *CreatorHandle
}

func (p Proxy[T]) Handle() *CreatorHandle {
	return p.handle
}

// Alive reports whether the creator can still be reached.
func (p Proxy[T]) Alive() bool {
	return p.handle.Alive()
}

// Target returns the creator, or a CreatorUnavailable error once it has been
// collected.
func (p Proxy[T]) Target() (T, error) {
	var zero T

	v, ok := p.handle.Resolve()
	if !ok {
		return zero, newError(
			ErrCodeCreatorUnavailable,
			fmt.Sprintf("creator %s is no longer reachable", p.handle),
			activation.ErrCreatorUnavailable,
		)
	}

	typed, ok := v.(T)
	if !ok {
		return zero, errTypeMismatch("", fmt.Sprintf("%T", v), "proxy target", reflect.TypeName[T]())
	}
	return typed, nil
}

// MustTarget is Target for forwarding methods without an error result. It
// panics with the CreatorUnavailable error.
func (p Proxy[T]) MustTarget() T {
	t, err := p.Target()
	if err != nil {
		panic(err)
	}
	return t
}

type proxyFactory func(h *CreatorHandle) any

// RegisterProxy installs the factory used whenever a creator is injected as
// T. T must be an interface.
func RegisterProxy[T any](c *Container, factory func(Proxy[T]) T) error {
	t := reflect.TypeOf[T]()
	if t.Kind() != reflectPkg.Interface {
		return newError(
			ErrCodeTypeMismatch,
			fmt.Sprintf("proxy type %s is not an interface", t),
			nil,
		)
	}

	c.proxiesMu.Lock()
	defer c.proxiesMu.Unlock()

	c.proxies[t] = func(h *CreatorHandle) any {
		return factory(Proxy[T]{handle: h})
	}
	return nil
}

func (c *Container) proxyFor(t reflectPkg.Type) (proxyFactory, bool) {
	c.proxiesMu.RLock()
	defer c.proxiesMu.RUnlock()

	f, ok := c.proxies[t]
	return f, ok
}

// Creator returns a weak forwarding proxy for the creator of the dependency
// being built. It must be called with the context a provider received.
func Creator[T any](ctx context.Context, c *Container) (T, error) {
	var zero T

	v, err := c.creatorValue(ctx, reflect.TypeOf[T](), "creator", false)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// CreatorInstance returns the creator itself. A dependency that keeps the
// result keeps its creator alive, and with it the scope.
func CreatorInstance[T any](ctx context.Context) (T, error) {
	var zero T

	v, err := creatorValue(ctx, reflect.TypeOf[T](), "creator")
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// CreatorOf returns the handle of the creator of the dependency being built.
func CreatorOf(ctx context.Context) (*CreatorHandle, bool) {
	return activation.CreatorFrom(ctx)
}

func (c *Container) creatorValue(ctx context.Context, t reflectPkg.Type, target string, direct bool) (any, error) {
	creator, err := creatorValue(ctx, t, target)
	if err != nil || direct {
		return creator, err
	}

	factory, ok := c.proxyFor(t)
	if !ok {
		return nil, newError(
			ErrCodeProxyNotRegistered,
			fmt.Sprintf("no proxy registered for %s; use RegisterProxy or a direct creator", t),
			nil,
		).WithService(currentService(ctx))
	}

	handle, _ := activation.CreatorFrom(ctx)
	return factory(handle), nil
}

// creatorValue resolves the current creator and checks it against t.
func creatorValue(ctx context.Context, t reflectPkg.Type, target string) (any, error) {
	service := currentService(ctx)

	handle, ok := activation.CreatorFrom(ctx)
	if !ok {
		return nil, newError(
			ErrCodeMissingCreatorContext,
			fmt.Sprintf("%s is not being built for a creator", target),
			activation.ErrMissingCreatorContext,
		).WithService(service)
	}

	creator, ok := handle.Resolve()
	if !ok {
		return nil, newError(
			ErrCodeCreatorUnavailable,
			fmt.Sprintf("creator %s is no longer reachable", handle),
			activation.ErrCreatorUnavailable,
		).WithService(service)
	}

	actual := reflectPkg.TypeOf(creator)
	if !actual.AssignableTo(t) {
		return nil, errTypeMismatch(service, actual.String(), target, t.String())
	}
	return creator, nil
}

func currentService(ctx context.Context) string {
	path := container.ResolutionPath(ctx)
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}
