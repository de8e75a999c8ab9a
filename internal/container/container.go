package container

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/danpasecinic/tether/internal/activation"
	"github.com/danpasecinic/tether/internal/declaration"
	"github.com/danpasecinic/tether/internal/graph"
	"github.com/danpasecinic/tether/internal/scopecache"
)

type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type ResolveHook func(key string, duration time.Duration, err error)

type ProvideHook func(key string)

type StartHook func(key string, duration time.Duration, err error)

type StopHook func(key string, duration time.Duration, err error)

type Container struct {
	mu       sync.RWMutex
	registry *Registry
	graph    *graph.Graph
	logger   *slog.Logger
	state    State
	parallel bool

	singletons singleflight.Group

	decorators   map[string][]DecoratorFunc
	decoratorsMu sync.RWMutex

	declarations *declaration.Registry
	scopes       *scopecache.Cache
	activator    *activation.Hook

	autoPrune      time.Duration
	pruneOnCollect bool
	sweeper        *scopecache.Sweeper

	onResolve []ResolveHook
	onProvide []ProvideHook
	onStart   []StartHook
	onStop    []StopHook
}

type Config struct {
	Logger   *slog.Logger
	Parallel bool

	OnResolve  []ResolveHook
	OnProvide  []ProvideHook
	OnStart    []StartHook
	OnStop     []StopHook
	OnActivate []activation.Observer
	OnDispose  []scopecache.DisposeHook
	OnPrune    []scopecache.PruneHook

	// AutoPrune is the sweep interval used between Start and Stop. Zero
	// disables interval sweeps.
	AutoPrune      time.Duration
	PruneOnCollect bool
}

func New(cfg *Config) *Container {
	if cfg == nil {
		cfg = &Config{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Container{
		registry:       NewRegistry(),
		graph:          graph.New(),
		logger:         logger,
		parallel:       cfg.Parallel,
		decorators:     make(map[string][]DecoratorFunc),
		declarations:   declaration.NewRegistry(),
		autoPrune:      cfg.AutoPrune,
		pruneOnCollect: cfg.PruneOnCollect,
		onResolve:      cfg.OnResolve,
		onProvide:      cfg.OnProvide,
		onStart:        cfg.OnStart,
		onStop:         cfg.OnStop,
	}

	c.scopes = scopecache.New(
		&scopecache.Config{
			Logger:          logger,
			OnDispose:       cfg.OnDispose,
			OnPrune:         cfg.OnPrune,
			NotifyOnCollect: cfg.PruneOnCollect,
		},
	)

	c.activator = activation.NewHook(
		activation.Config{
			Registry:  c.declarations,
			Cache:     c.scopes,
			Builder:   c,
			Logger:    logger,
			Observers: cfg.OnActivate,
		},
	)

	return c
}

func (c *Container) Register(key string, provider ProviderFunc, dependencies []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registry.Has(key) {
		return fmt.Errorf("%w: %s", ErrDuplicateService, key)
	}

	if err := c.registry.Register(key, provider, dependencies); err != nil {
		return err
	}

	if err := c.addNode(key, dependencies); err != nil {
		c.registry.Remove(key)
		return err
	}

	c.callProvideHooks(key)
	return nil
}

func (c *Container) RegisterValue(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registry.Has(key) {
		return fmt.Errorf("%w: %s", ErrDuplicateService, key)
	}

	if err := c.registry.RegisterValue(key, value); err != nil {
		return err
	}

	c.graph.AddNode(key, nil)
	c.callProvideHooks(key)
	return nil
}

// RegisterAlias binds key to the implementation registered under target.
func (c *Container) RegisterAlias(key, target string) error {
	err := c.Register(
		key, func(ctx context.Context, r Resolver) (any, error) {
			return r.Resolve(ctx, target)
		}, []string{target},
	)
	if err != nil {
		return err
	}

	c.registry.Configure(key, func(e *ServiceEntry) { e.Alias = target })
	return nil
}

// addNode must be called with c.mu held.
func (c *Container) addNode(key string, dependencies []string) error {
	c.graph.AddNode(key, dependencies)

	if c.graph.HasCycle() {
		cyclePath := c.graph.FindCyclePath(key)
		c.graph.RemoveNode(key)
		return fmt.Errorf("%w: %v", ErrCircularDependency, cyclePath)
	}
	return nil
}

func (c *Container) callProvideHooks(key string) {
	for _, hook := range c.onProvide {
		hook(key)
	}
}

func (c *Container) Configure(key string, fn func(e *ServiceEntry)) bool {
	return c.registry.Configure(key, fn)
}

func (c *Container) Has(key string) bool {
	return c.registry.Has(key)
}

func (c *Container) Entry(key string) (ServiceEntry, bool) {
	return c.registry.Get(key)
}

func (c *Container) GetInstance(key string) (any, bool) {
	return c.registry.GetInstance(key)
}

func (c *Container) Keys() []string {
	return c.registry.Keys()
}

func (c *Container) Size() int {
	return c.registry.Size()
}

func (c *Container) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	missing := c.graph.Validate()
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingDependencies, missing)
	}

	if c.graph.HasCycle() {
		cycles := c.graph.CyclePaths()
		return fmt.Errorf("%w: %v", ErrCircularDependency, cycles)
	}

	for _, d := range c.declarations.Declarations() {
		if !c.registry.Has(d.Key) {
			return fmt.Errorf("%w: %s", ErrDeclarationUnbound, d)
		}
	}

	return nil
}

func (c *Container) Graph() *graph.Graph {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.graph.Clone()
}

func (c *Container) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Declare records that every instance assignable to parent owns a fresh
// instance of the service registered under key.
func (c *Container) Declare(parent, dependency reflect.Type, key string) error {
	d, err := c.declarations.Declare(parent, dependency, key)
	if err != nil {
		return err
	}
	c.logger.Debug("dependency declared", "parent", d.Parent, "dependency", d.Key)
	return nil
}

func (c *Container) Declarations() []declaration.Declaration {
	return c.declarations.Declarations()
}

func (c *Container) DisposeScope(creator any) error {
	return c.scopes.DisposeScope(creator)
}

// Dispose releases the dependents of instance, then instance itself.
func (c *Container) Dispose(instance any) error {
	return multierr.Append(
		c.scopes.DisposeScope(instance),
		scopecache.DisposeInstance(instance),
	)
}

func (c *Container) Prune() (int, error) {
	return c.scopes.Prune()
}

func (c *Container) ScopeStats() scopecache.Stats {
	return c.scopes.Stats()
}

func (c *Container) ScopeEntry(creator any, key string) (any, bool) {
	return c.scopes.Lookup(creator, key)
}
