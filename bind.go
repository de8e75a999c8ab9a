package tether

import (
	"context"
	"fmt"

	"github.com/danpasecinic/tether/internal/container"
	"github.com/danpasecinic/tether/internal/reflect"
)

type Decorator[T any] func(ctx context.Context, r Resolver, base T) (T, error)

// Bind resolves I through the provider registered for T. A declaration on I
// matches the implementation through type assignability, so binding does not
// change which dependencies an instance owns.
func Bind[I, T any](c *Container, opts ...ProviderOption) error {
	cfg := newProviderConfig(opts)

	interfaceKey := cfg.key(reflect.TypeKey[I]())
	implKey := reflect.TypeKey[T]()

	if err := c.internal.RegisterAlias(interfaceKey, implKey); err != nil {
		return errRegistrationFailed(interfaceKey, err)
	}

	cfg.apply(c, interfaceKey)
	return nil
}

func BindNamed[I, T any](c *Container, name string, opts ...ProviderOption) error {
	opts = append(opts, WithName(name))
	return Bind[I, T](c, opts...)
}

func Decorate[T any](c *Container, decorator Decorator[T]) {
	c.internal.AddDecorator(typeKey[T](""), decoratorFunc(c, decorator))
}

func DecorateNamed[T any](c *Container, name string, decorator Decorator[T]) {
	c.internal.AddDecorator(typeKey[T](name), decoratorFunc(c, decorator))
}

func decoratorFunc[T any](c *Container, decorator Decorator[T]) container.DecoratorFunc {
	return func(ctx context.Context, r container.Resolver, instance any) (any, error) {
		typed, ok := instance.(T)
		if !ok {
			var zero T
			return zero, errDecoratorTypeMismatch(reflect.TypeName[T](), instance)
		}

		resolver := &resolverAdapter{container: c}
		return decorator(ctx, resolver, typed)
	}
}

func errDecoratorTypeMismatch(typeName string, instance any) *Error {
	return newError(
		ErrCodeDecoratorFailed,
		fmt.Sprintf("decorator for %s received %T", typeName, instance),
		nil,
	).WithService(typeName)
}
