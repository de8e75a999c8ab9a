package tether

import (
	"context"
	"fmt"

	"github.com/danpasecinic/tether/internal/reflect"
)

type Module struct {
	name         string
	providers    []providerEntry
	decorators   []decoratorEntry
	bindings     []bindingEntry
	declarations []func(c *Container) error
	submodules   []*Module
}

type providerEntry struct {
	register func(c *Container) error
}

type decoratorEntry struct {
	register func(c *Container)
}

type bindingEntry struct {
	interfaceKey string
	implKey      string
	opts         []ProviderOption
}

func NewModule(name string) *Module {
	return &Module{
		name: name,
	}
}

func (m *Module) Name() string {
	return m.name
}

// Provide accepts func(context.Context, Resolver) (any, error). Use
// ModuleProvide for typed providers.
func (m *Module) Provide(provider any, opts ...ProviderOption) *Module {
	m.providers = append(
		m.providers, providerEntry{
			register: func(c *Container) error {
				return provideAny(c, provider, opts...)
			},
		},
	)
	return m
}

func (m *Module) ProvideValue(value any, opts ...ProviderOption) *Module {
	m.providers = append(
		m.providers, providerEntry{
			register: func(c *Container) error {
				return provideValueAny(c, value, opts...)
			},
		},
	)
	return m
}

func (m *Module) Include(submodule *Module) *Module {
	m.submodules = append(m.submodules, submodule)
	return m
}

// apply registers submodules first, then providers, bindings, declarations
// and decorators.
func (m *Module) apply(c *Container) error {
	for _, sub := range m.submodules {
		if err := sub.apply(c); err != nil {
			return err
		}
	}

	for _, p := range m.providers {
		if err := p.register(c); err != nil {
			return err
		}
	}

	for _, b := range m.bindings {
		if err := applyBinding(c, b); err != nil {
			return err
		}
	}

	for _, declare := range m.declarations {
		if err := declare(c); err != nil {
			return err
		}
	}

	for _, d := range m.decorators {
		d.register(c)
	}

	return nil
}

func applyBinding(c *Container, b bindingEntry) error {
	cfg := newProviderConfig(b.opts)
	key := cfg.key(b.interfaceKey)

	if err := c.internal.RegisterAlias(key, b.implKey); err != nil {
		return errRegistrationFailed(key, err)
	}

	cfg.apply(c, key)
	return nil
}

func provideAny(c *Container, provider any, opts ...ProviderOption) error {
	switch p := provider.(type) {
	case func(context.Context, Resolver) (any, error):
		return Provide(c, p, opts...)
	case Provider[any]:
		return Provide(c, p, opts...)
	default:
		return errModuleInvalidProvider(provider)
	}
}

func provideValueAny(c *Container, value any, opts ...ProviderOption) error {
	cfg := newProviderConfig(opts)
	key := cfg.key(reflect.TypeKeyFromValue(value))

	if err := c.internal.RegisterValue(key, value); err != nil {
		return errRegistrationFailed(key, err)
	}

	cfg.apply(c, key)
	return nil
}

func (c *Container) Apply(modules ...*Module) error {
	for _, m := range modules {
		if err := m.apply(c); err != nil {
			return errModuleApplyFailed(m.name, err)
		}
	}
	return nil
}

func errModuleApplyFailed(moduleName string, cause error) *Error {
	return newError(
		ErrCodeModuleApplyFailed,
		"failed to apply module "+moduleName,
		cause,
	)
}

func errModuleInvalidProvider(provider any) *Error {
	return newError(
		ErrCodeModuleInvalidProvider,
		fmt.Sprintf("invalid provider type %T in module", provider),
		nil,
	)
}

func ModuleProvide[T any](m *Module, provider Provider[T], opts ...ProviderOption) *Module {
	m.providers = append(
		m.providers, providerEntry{
			register: func(c *Container) error {
				return Provide(c, provider, opts...)
			},
		},
	)
	return m
}

func ModuleProvideValue[T any](m *Module, value T, opts ...ProviderOption) *Module {
	m.providers = append(
		m.providers, providerEntry{
			register: func(c *Container) error {
				return ProvideValue(c, value, opts...)
			},
		},
	)
	return m
}

func ModuleBind[I, T any](m *Module, opts ...ProviderOption) *Module {
	m.bindings = append(
		m.bindings, bindingEntry{
			interfaceKey: reflect.TypeKey[I](),
			implKey:      reflect.TypeKey[T](),
			opts:         opts,
		},
	)
	return m
}

// ModuleDefineDependency declares D as a dependency of every P once the
// module is applied.
func ModuleDefineDependency[P, D any](m *Module) *Module {
	m.declarations = append(
		m.declarations, func(c *Container) error {
			return DefineDependency[P, D](c)
		},
	)
	return m
}

func ModuleDecorate[T any](m *Module, decorator Decorator[T]) *Module {
	key := reflect.TypeKey[T]()

	m.decorators = append(
		m.decorators, decoratorEntry{
			register: func(c *Container) {
				c.internal.AddDecorator(key, decoratorFunc(c, decorator))
			},
		},
	)
	return m
}
