package tether

import (
	"github.com/danpasecinic/tether/internal/reflect"
)

// Replace swaps the provider registered for T. Scopes already holding an
// instance built by the old provider keep it until they are disposed.
func Replace[T any](c *Container, provider Provider[T], opts ...ProviderOption) error {
	cfg := newProviderConfig(opts)
	key := cfg.key(reflect.TypeKey[T]())

	if err := c.internal.Replace(key, wrapProvider(c, provider), cfg.dependencies); err != nil {
		return errRegistrationFailed(key, err)
	}

	cfg.apply(c, key)
	return nil
}

func ReplaceValue[T any](c *Container, value T, opts ...ProviderOption) error {
	cfg := newProviderConfig(opts)
	key := cfg.key(reflect.TypeKey[T]())

	if err := c.internal.ReplaceValue(key, value); err != nil {
		return errRegistrationFailed(key, err)
	}

	cfg.apply(c, key)
	return nil
}

func ReplaceNamed[T any](c *Container, name string, provider Provider[T], opts ...ProviderOption) error {
	opts = append(opts, WithName(name))
	return Replace(c, provider, opts...)
}

func ReplaceNamedValue[T any](c *Container, name string, value T, opts ...ProviderOption) error {
	opts = append(opts, WithName(name))
	return ReplaceValue(c, value, opts...)
}

// ReplaceFunc is Replace for an auto-wired constructor, see ProvideFunc.
func ReplaceFunc[T any](c *Container, constructor any, opts ...ProviderOption) error {
	provider, opts, err := funcProvider[T](c, constructor, opts)
	if err != nil {
		return err
	}
	return Replace(c, provider, opts...)
}

func ReplaceStruct[T any](c *Container, opts ...ProviderOption) error {
	provider, opts, err := structProvider[T](c, opts)
	if err != nil {
		return err
	}
	return Replace(c, provider, opts...)
}

func MustReplace[T any](c *Container, provider Provider[T], opts ...ProviderOption) {
	if err := Replace(c, provider, opts...); err != nil {
		panic(err)
	}
}

func MustReplaceValue[T any](c *Container, value T, opts ...ProviderOption) {
	if err := ReplaceValue(c, value, opts...); err != nil {
		panic(err)
	}
}
