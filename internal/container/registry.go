package container

import (
	"context"
	"slices"
	"sync"

	"github.com/danpasecinic/tether/internal/scope"
)

type ProviderFunc func(ctx context.Context, r Resolver) (any, error)

type DecoratorFunc func(ctx context.Context, r Resolver, instance any) (any, error)

type Hook func(ctx context.Context) error

type Resolver interface {
	Resolve(ctx context.Context, key string) (any, error)
	Has(key string) bool
}

type ServiceEntry struct {
	Key          string
	Provider     ProviderFunc
	Instance     any
	Instantiated bool
	Dependencies []string

	// Alias is set for interface bindings; the entry resolves through the
	// implementation key.
	Alias string

	Scope         scope.Scope
	ScopeName     string
	DefinesScopes []string
	PoolSize      int
	Lazy          bool

	OnStart  []Hook
	OnStop   []Hook
	StartRan bool

	pool chan any
}

type Registry struct {
	mu       sync.RWMutex
	services map[string]*ServiceEntry
}

func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]*ServiceEntry),
	}
}

func (r *Registry) Register(key string, provider ProviderFunc, dependencies []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.services[key] = &ServiceEntry{
		Key:          key,
		Provider:     provider,
		Dependencies: dependencies,
	}
	return nil
}

func (r *Registry) RegisterValue(key string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.services[key] = &ServiceEntry{
		Key:          key,
		Instance:     value,
		Instantiated: true,
	}
	return nil
}

// Configure applies fn to the entry under the registry lock.
func (r *Registry) Configure(key string, fn func(e *ServiceEntry)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.services[key]
	if !exists {
		return false
	}
	fn(entry)
	if entry.Scope == scope.Pooled && entry.PoolSize > 0 && entry.pool == nil {
		entry.pool = make(chan any, entry.PoolSize)
	}
	return true
}

func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.services[key]
	return exists
}

// Get returns a snapshot of the entry. Mutations go through Configure and the
// dedicated setters.
func (r *Registry) Get(key string) (ServiceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.services[key]
	if !exists {
		return ServiceEntry{}, false
	}
	return *entry, true
}

func (r *Registry) GetInstance(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.services[key]
	if !exists || !entry.Instantiated {
		return nil, false
	}
	return entry.Instance, true
}

func (r *Registry) SetInstance(key string, instance any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.services[key]; exists {
		entry.Instance = instance
		entry.Instantiated = true
	}
}

func (r *Registry) SetStartRan(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.services[key]; exists {
		entry.StartRan = true
	}
}

func (r *Registry) AddOnStart(key string, hook Hook) {
	r.Configure(key, func(e *ServiceEntry) { e.OnStart = append(e.OnStart, hook) })
}

func (r *Registry) AddOnStop(key string, hook Hook) {
	r.Configure(key, func(e *ServiceEntry) { e.OnStop = append(e.OnStop, hook) })
}

func (r *Registry) IsLazy(key string) bool {
	entry, ok := r.Get(key)
	return ok && entry.Lazy
}

func (r *Registry) AcquireFromPool(key string) (any, bool) {
	r.mu.RLock()
	entry, exists := r.services[key]
	var pool chan any
	if exists {
		pool = entry.pool
	}
	r.mu.RUnlock()

	if pool == nil {
		return nil, false
	}

	select {
	case instance := <-pool:
		return instance, true
	default:
		return nil, false
	}
}

// ReleaseToPool returns false when the pool is full or key is not pooled.
func (r *Registry) ReleaseToPool(key string, instance any) bool {
	r.mu.RLock()
	entry, exists := r.services[key]
	var pool chan any
	if exists {
		pool = entry.pool
	}
	r.mu.RUnlock()

	if pool == nil {
		return false
	}

	select {
	case pool <- instance:
		return true
	default:
		return false
	}
}

func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.services))
	for key := range r.services {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.services)
}

func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.services, key)
}

func (r *Registry) Dependencies(key string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.services[key]
	if !exists {
		return nil
	}
	return slices.Clone(entry.Dependencies)
}
