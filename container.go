package tether

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/danpasecinic/tether/internal/container"
	"github.com/danpasecinic/tether/internal/scopecache"
)

type Container struct {
	internal *container.Container
	config   *containerConfig

	proxiesMu sync.RWMutex
	proxies   map[reflect.Type]proxyFactory
}

type containerConfig struct {
	logger          *slog.Logger
	parallel        bool
	shutdownTimeout time.Duration
	autoPrune       time.Duration
	pruneOnCollect  bool

	onResolve  []ResolveHook
	onProvide  []ProvideHook
	onStart    []StartHook
	onStop     []StopHook
	onActivate []ActivateHook
	onDispose  []DisposeHook
	onPrune    []PruneHook
}

// ScopeStats describes the scopes currently held for creators.
type ScopeStats = scopecache.Stats

func New(opts ...Option) *Container {
	return newContainer(opts...)
}

func newContainer(opts ...Option) *Container {
	cfg := &containerConfig{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	internal := container.New(
		&container.Config{
			Logger:         cfg.logger,
			Parallel:       cfg.parallel,
			OnResolve:      cfg.onResolve,
			OnProvide:      cfg.onProvide,
			OnStart:        cfg.onStart,
			OnStop:         cfg.onStop,
			OnActivate:     cfg.onActivate,
			OnDispose:      cfg.onDispose,
			OnPrune:        cfg.onPrune,
			AutoPrune:      cfg.autoPrune,
			PruneOnCollect: cfg.pruneOnCollect,
		},
	)

	return &Container{
		internal: internal,
		config:   cfg,
		proxies:  make(map[reflect.Type]proxyFactory),
	}
}

func (c *Container) Validate() error {
	if err := c.internal.Validate(); err != nil {
		return errValidationFailed(err)
	}
	return nil
}

func (c *Container) Size() int {
	return c.internal.Size()
}

func (c *Container) Keys() []string {
	return c.internal.Keys()
}

func (c *Container) Start(ctx context.Context) error {
	if err := c.internal.Start(ctx); err != nil {
		return errStartupFailed("container", err)
	}
	return nil
}

// Stop runs OnStop hooks in reverse startup order, then disposes every scope
// still held for a creator.
func (c *Container) Stop(ctx context.Context) error {
	if c.config.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.shutdownTimeout)
		defer cancel()
	}

	if err := c.internal.Stop(ctx); err != nil {
		return errShutdownFailed("container", err)
	}
	return nil
}

func (c *Container) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-quit:
	}

	signal.Stop(quit)
	close(quit)

	return c.Stop(context.Background())
}

// DisposeScope disposes every dependency created for creator. Calling it
// again, or after the creator was pruned, does nothing.
func (c *Container) DisposeScope(creator any) error {
	return wrap(c.internal.DisposeScope(creator), "", ErrCodeDisposeFailed, "failed to dispose scope")
}

// Dispose disposes the scope of instance, then instance itself when it
// implements Dispose() error or io.Closer.
func (c *Container) Dispose(instance any) error {
	return wrap(c.internal.Dispose(instance), "", ErrCodeDisposeFailed, "failed to dispose instance")
}

// Prune disposes the dependencies of every creator the garbage collector has
// reclaimed and reports how many were disposed.
func (c *Container) Prune() (int, error) {
	n, err := c.internal.Prune()
	return n, wrap(err, "", ErrCodeDisposeFailed, "prune finished with errors")
}

func (c *Container) ScopeStats() ScopeStats {
	return c.internal.ScopeStats()
}
