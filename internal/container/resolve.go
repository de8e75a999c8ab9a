package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danpasecinic/tether/internal/activation"
	"github.com/danpasecinic/tether/internal/scope"
)

func (c *Container) Resolve(ctx context.Context, key string) (any, error) {
	start := time.Now()

	ctx, err := enterResolution(ctx, key)
	if err != nil {
		c.callResolveHooks(key, time.Since(start), err)
		return nil, err
	}

	entry, exists := c.registry.Get(key)
	if !exists {
		err := fmt.Errorf("%w: %s", ErrServiceNotFound, key)
		c.callResolveHooks(key, time.Since(start), err)
		return nil, err
	}

	result, err := c.resolveWithScope(ctx, key, &entry)
	c.callResolveHooks(key, time.Since(start), err)
	return result, err
}

func (c *Container) callResolveHooks(key string, duration time.Duration, err error) {
	for _, hook := range c.onResolve {
		hook(key, duration, err)
	}
}

func (c *Container) resolveWithScope(ctx context.Context, key string, entry *ServiceEntry) (any, error) {
	switch entry.Scope {
	case scope.Singleton:
		return c.resolveSingleton(ctx, key, entry)
	case scope.Transient:
		return c.build(ctx, key, entry)
	case scope.Request:
		return c.resolveRequest(ctx, key, entry)
	case scope.Pooled:
		return c.resolvePooled(ctx, key, entry)
	case scope.Creator, scope.Named:
		return c.activator.ResolveWith(
			ctx, key, entry.Scope, entry.ScopeName, func() (any, error) {
				return c.buildFresh(ctx, key)
			},
		)
	default:
		return c.resolveSingleton(ctx, key, entry)
	}
}

func (c *Container) resolveSingleton(ctx context.Context, key string, entry *ServiceEntry) (any, error) {
	if entry.Instantiated {
		return entry.Instance, nil
	}

	ctx = activation.Detach(ctx)
	instance, err, _ := c.singletons.Do(
		key, func() (any, error) {
			if instance, ok := c.registry.GetInstance(key); ok {
				return instance, nil
			}

			instance, err := c.build(ctx, key, entry)
			if err != nil {
				return nil, err
			}

			c.registry.SetInstance(key, instance)
			return instance, nil
		},
	)
	if err != nil {
		return nil, err
	}

	if entry.Lazy && !entry.StartRan && c.State() == StateRunning {
		if err := c.runLazyStart(ctx, key); err != nil {
			return nil, err
		}
	}

	return instance, nil
}

func (c *Container) runLazyStart(ctx context.Context, key string) error {
	var hooks []Hook
	claimed := c.registry.Configure(
		key, func(e *ServiceEntry) {
			if e.StartRan {
				return
			}
			e.StartRan = true
			hooks = e.OnStart
		},
	)
	if !claimed || len(hooks) == 0 {
		return nil
	}

	start := time.Now()
	var startErr error

	for _, hook := range hooks {
		c.logger.Debug("running lazy OnStart hook", "service", key)
		if err := hook(ctx); err != nil {
			startErr = fmt.Errorf("OnStart hook failed for %s: %w", key, err)
			break
		}
	}

	c.callStartHooks(key, time.Since(start), startErr)
	return startErr
}

// Build constructs a fresh instance of key whatever its scope, runs its
// decorators and activates it. Interface bindings build their implementation.
func (c *Container) Build(ctx context.Context, key string) (any, error) {
	ctx, err := enterResolution(ctx, key)
	if err != nil {
		return nil, err
	}
	return c.buildFresh(ctx, key)
}

// buildFresh is Build for a key already on the resolution chain of ctx.
func (c *Container) buildFresh(ctx context.Context, key string) (any, error) {
	entry, exists := c.registry.Get(key)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, key)
	}

	if entry.Alias != "" {
		instance, err := c.Build(ctx, entry.Alias)
		if err != nil {
			return nil, err
		}
		return c.applyDecorators(ctx, key, instance)
	}

	if entry.Provider == nil {
		return nil, fmt.Errorf("%w: %s is registered as a value", ErrNotBuildable, key)
	}

	return c.build(ctx, key, &entry)
}

// Placement reports where instances of key live.
func (c *Container) Placement(key string) (scope.Scope, string) {
	entry, exists := c.registry.Get(key)
	if !exists {
		return scope.Singleton, ""
	}
	return entry.Scope, entry.ScopeName
}

func (c *Container) build(ctx context.Context, key string, entry *ServiceEntry) (any, error) {
	for _, dep := range entry.Dependencies {
		if _, err := c.Resolve(ctx, dep); err != nil {
			return nil, fmt.Errorf("failed to resolve dependency %s for %s: %w", dep, key, err)
		}
	}

	instance, err := entry.Provider(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrProviderFailed, key, err)
	}

	instance, err = c.applyDecorators(ctx, key, instance)
	if err != nil {
		return nil, err
	}

	if entry.Alias != "" {
		return instance, nil
	}

	err = c.activator.OnActivated(
		ctx, activation.Activation{
			Key:      key,
			Instance: instance,
			Scopes:   entry.DefinesScopes,
		},
	)
	if err != nil {
		return nil, err
	}

	return instance, nil
}

type requestScopeKey struct{}

type RequestScope struct {
	mu        sync.RWMutex
	instances map[string]any
}

func NewRequestScope() *RequestScope {
	return &RequestScope{
		instances: make(map[string]any),
	}
}

func (rs *RequestScope) Get(key string) (any, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	instance, ok := rs.instances[key]
	return instance, ok
}

func (rs *RequestScope) Set(key string, instance any) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.instances[key] = instance
}

func WithRequestScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestScopeKey{}, NewRequestScope())
}

func getRequestScope(ctx context.Context) *RequestScope {
	if rs, ok := ctx.Value(requestScopeKey{}).(*RequestScope); ok {
		return rs
	}
	return nil
}

func (c *Container) resolveRequest(ctx context.Context, key string, entry *ServiceEntry) (any, error) {
	rs := getRequestScope(ctx)
	if rs == nil {
		return nil, fmt.Errorf("%w for %s; use WithRequestScope(ctx)", ErrRequestScopeMissing, key)
	}

	if instance, ok := rs.Get(key); ok {
		return instance, nil
	}

	instance, err := c.build(ctx, key, entry)
	if err != nil {
		return nil, err
	}

	rs.Set(key, instance)
	return instance, nil
}

func (c *Container) resolvePooled(ctx context.Context, key string, entry *ServiceEntry) (any, error) {
	if instance, ok := c.registry.AcquireFromPool(key); ok {
		return instance, nil
	}
	return c.build(ctx, key, entry)
}

// Release hands a pooled instance back. Instances that do not fit in the
// pool are dropped.
func (c *Container) Release(key string, instance any) bool {
	return c.registry.ReleaseToPool(key, instance)
}
