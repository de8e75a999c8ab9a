package tether

import (
	"context"
	"fmt"

	"github.com/danpasecinic/tether/internal/reflect"
)

type Resolver interface {
	Resolve(ctx context.Context, key string) (any, error)
	Has(key string) bool
}

type resolverAdapter struct {
	container *Container
}

func (r *resolverAdapter) Resolve(ctx context.Context, key string) (any, error) {
	return r.container.internal.Resolve(ctx, key)
}

func (r *resolverAdapter) Has(key string) bool {
	return r.container.internal.Has(key)
}

func typeKey[T any](name string) string {
	return reflect.TypeKeyNamed[T](name)
}

// Key returns the container key of T, for WithDependencies and Resolver.
func Key[T any]() string {
	return typeKey[T]("")
}

func KeyNamed[T any](name string) string {
	return typeKey[T](name)
}

func serviceName[T any](name string) string {
	return reflect.NamedKey(reflect.TypeName[T](), name)
}

func resolveAs[T any](ctx context.Context, c *Container, name string) (T, error) {
	var zero T

	instance, err := c.internal.Resolve(ctx, typeKey[T](name))
	if err != nil {
		return zero, errResolutionFailed(serviceName[T](name), err)
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, errResolutionFailed(
			serviceName[T](name),
			fmt.Errorf("provider returned %T", instance),
		)
	}

	return typed, nil
}

func Invoke[T any](c *Container) (T, error) {
	return InvokeCtx[T](context.Background(), c)
}

// InvokeCtx resolves T. Pass the context a provider received to keep the
// creator and the resolution chain of the surrounding construction.
func InvokeCtx[T any](ctx context.Context, c *Container) (T, error) {
	return resolveAs[T](ctx, c, "")
}

func InvokeNamed[T any](c *Container, name string) (T, error) {
	return InvokeNamedCtx[T](context.Background(), c, name)
}

func InvokeNamedCtx[T any](ctx context.Context, c *Container, name string) (T, error) {
	return resolveAs[T](ctx, c, name)
}

func MustInvoke[T any](c *Container) T {
	v, err := Invoke[T](c)
	if err != nil {
		panic(err)
	}
	return v
}

func MustInvokeCtx[T any](ctx context.Context, c *Container) T {
	v, err := InvokeCtx[T](ctx, c)
	if err != nil {
		panic(err)
	}
	return v
}

func MustInvokeNamed[T any](c *Container, name string) T {
	v, err := InvokeNamed[T](c, name)
	if err != nil {
		panic(err)
	}
	return v
}

func TryInvoke[T any](c *Container) (T, bool) {
	v, err := Invoke[T](c)
	return v, err == nil
}

func TryInvokeNamed[T any](c *Container, name string) (T, bool) {
	v, err := InvokeNamed[T](c, name)
	return v, err == nil
}

func Has[T any](c *Container) bool {
	return c.internal.Has(typeKey[T](""))
}

func HasNamed[T any](c *Container, name string) bool {
	return c.internal.Has(typeKey[T](name))
}
