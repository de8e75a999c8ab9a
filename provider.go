package tether

import (
	"context"

	"github.com/danpasecinic/tether/internal/container"
	"github.com/danpasecinic/tether/internal/reflect"
	"github.com/danpasecinic/tether/internal/scope"
)

type Provider[T any] func(ctx context.Context, r Resolver) (T, error)

type ProviderOption func(*providerConfig)

type providerConfig struct {
	name          string
	dependencies  []string
	onStart       []container.Hook
	onStop        []container.Hook
	scope         scope.Scope
	scopeSet      bool
	scopeName     string
	definesScopes []string
	poolSize      int
	lazy          bool

	creatorArg    int
	directCreator bool
}

func newProviderConfig(opts []ProviderOption) *providerConfig {
	cfg := &providerConfig{creatorArg: -1}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (cfg *providerConfig) key(typeKey string) string {
	return reflect.NamedKey(typeKey, cfg.name)
}

// apply copies the options that live on the registry entry.
func (cfg *providerConfig) apply(c *Container, key string) {
	c.internal.Configure(
		key, func(e *container.ServiceEntry) {
			e.OnStart = append(e.OnStart, cfg.onStart...)
			e.OnStop = append(e.OnStop, cfg.onStop...)
			e.DefinesScopes = append(e.DefinesScopes, cfg.definesScopes...)
			if cfg.scopeSet {
				e.Scope = cfg.scope
				e.ScopeName = cfg.scopeName
			}
			if cfg.poolSize > 0 {
				e.PoolSize = cfg.poolSize
			}
			if cfg.lazy {
				e.Lazy = true
			}
		},
	)
}

func wrapProvider[T any](c *Container, provider Provider[T]) container.ProviderFunc {
	return func(ctx context.Context, r container.Resolver) (any, error) {
		resolver := &resolverAdapter{container: c}
		return provider(ctx, resolver)
	}
}

func Provide[T any](c *Container, provider Provider[T], opts ...ProviderOption) error {
	cfg := newProviderConfig(opts)
	key := cfg.key(reflect.TypeKey[T]())

	if err := c.internal.Register(key, wrapProvider(c, provider), cfg.dependencies); err != nil {
		return errRegistrationFailed(key, err)
	}

	cfg.apply(c, key)
	return nil
}

// ProvideValue registers an existing instance. Values are never activated, so
// declarations matching their type do not apply to them.
func ProvideValue[T any](c *Container, value T, opts ...ProviderOption) error {
	cfg := newProviderConfig(opts)
	key := cfg.key(reflect.TypeKey[T]())

	if err := c.internal.RegisterValue(key, value); err != nil {
		return errRegistrationFailed(key, err)
	}

	cfg.apply(c, key)
	return nil
}

func ProvideNamed[T any](c *Container, name string, provider Provider[T], opts ...ProviderOption) error {
	opts = append(opts, WithName(name))
	return Provide(c, provider, opts...)
}

func ProvideNamedValue[T any](c *Container, name string, value T, opts ...ProviderOption) error {
	opts = append(opts, WithName(name))
	return ProvideValue(c, value, opts...)
}

func MustProvide[T any](c *Container, provider Provider[T], opts ...ProviderOption) {
	if err := Provide(c, provider, opts...); err != nil {
		panic(err)
	}
}

func WithName(name string) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.name = name
	}
}

func WithDependencies(deps ...string) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.dependencies = deps
	}
}

func WithOnStart(hook Hook) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.onStart = append(cfg.onStart, container.Hook(hook))
	}
}

func WithOnStop(hook Hook) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.onStop = append(cfg.onStop, container.Hook(hook))
	}
}

func WithScope(s Scope) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.scope = s
		cfg.scopeSet = true
	}
}

func WithPoolSize(size int) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.scope = scope.Pooled
		cfg.scopeSet = true
		cfg.poolSize = size
	}
}

// WithLazy defers construction and OnStart hooks of a singleton until its
// first resolution.
func WithLazy() ProviderOption {
	return func(cfg *providerConfig) {
		cfg.lazy = true
	}
}

// WithCreatorScope places the instance in the scope of the creator being
// activated. Resolving it anywhere else fails with MissingCreatorContext.
func WithCreatorScope() ProviderOption {
	return WithScope(scope.Creator)
}

// WithDefinesScope makes every instance of the binding the owner of the named
// scope for the dependencies created beneath it.
func WithDefinesScope(name string) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.definesScopes = append(cfg.definesScopes, name)
	}
}

// InNamedScope places the instance in the nearest enclosing scope called
// name.
func InNamedScope(name string) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.scope = scope.Named
		cfg.scopeSet = true
		cfg.scopeName = name
	}
}
