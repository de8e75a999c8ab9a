package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/danpasecinic/tether/internal/scope"
	"github.com/danpasecinic/tether/internal/scopecache"
)

func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateNew && c.state != StateStopped {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = StateStarting
	c.mu.Unlock()

	var err error
	if c.parallel {
		err = c.startParallel(ctx)
	} else {
		err = c.startSequential(ctx)
	}

	if err != nil {
		c.mu.Lock()
		c.state = StateStopped
		c.mu.Unlock()
		return err
	}

	var sweeper *scopecache.Sweeper
	if c.autoPrune > 0 || c.pruneOnCollect {
		sweeper = c.scopes.StartSweeper(c.autoPrune)
		c.logger.Debug("scope sweeper started", "interval", c.autoPrune, "onCollect", c.pruneOnCollect)
	}

	c.mu.Lock()
	c.sweeper = sweeper
	c.state = StateRunning
	c.mu.Unlock()

	return nil
}

func (c *Container) startSequential(ctx context.Context) error {
	order, err := c.graph.StartupOrder()
	if err != nil {
		return fmt.Errorf("failed to determine startup order: %w", err)
	}

	for _, key := range order {
		if err := c.startService(ctx, key); err != nil {
			return err
		}
	}

	return nil
}

func (c *Container) startParallel(ctx context.Context) error {
	groups, err := c.graph.ParallelStartupGroups()
	if err != nil {
		return fmt.Errorf("failed to determine startup groups: %w", err)
	}

	for _, group := range groups {
		if err := c.startGroup(ctx, group.Nodes); err != nil {
			return err
		}
	}

	return nil
}

func (c *Container) startGroup(ctx context.Context, keys []string) error {
	if len(keys) == 1 {
		return c.startService(ctx, keys[0])
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(keys))

	for _, key := range keys {
		if !c.startsEagerly(key) {
			continue
		}

		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			if err := c.startService(ctx, k); err != nil {
				errCh <- err
			}
		}(key)
	}

	wg.Wait()
	close(errCh)

	var errs error
	for err := range errCh {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// startsEagerly reports whether Start resolves key. Lazy services wait for
// first use; request and creator-owned services need a context Start lacks.
func (c *Container) startsEagerly(key string) bool {
	entry, exists := c.registry.Get(key)
	if !exists || entry.Lazy {
		return false
	}
	switch entry.Scope {
	case scope.Request, scope.Creator, scope.Named:
		return false
	default:
		return true
	}
}

func (c *Container) startService(ctx context.Context, key string) error {
	if !c.startsEagerly(key) {
		return nil
	}

	start := time.Now()

	if _, err := c.Resolve(ctx, key); err != nil {
		c.callStartHooks(key, time.Since(start), err)
		return fmt.Errorf("%w: failed to resolve %s: %w", ErrStartupFailed, key, err)
	}

	entry, exists := c.registry.Get(key)
	if !exists {
		return nil
	}

	var startErr error
	for _, hook := range entry.OnStart {
		c.logger.Debug("running OnStart hook", "service", key)
		if err := hook(ctx); err != nil {
			startErr = fmt.Errorf("%w: OnStart hook failed for %s: %w", ErrStartupFailed, key, err)
			break
		}
	}

	c.registry.SetStartRan(key)
	c.callStartHooks(key, time.Since(start), startErr)
	return startErr
}

func (c *Container) callStartHooks(key string, duration time.Duration, err error) {
	for _, hook := range c.onStart {
		hook(key, duration, err)
	}
}

// Stop runs OnStop hooks in reverse startup order, stops the sweeper and
// disposes every scope still alive.
func (c *Container) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	sweeper := c.sweeper
	c.sweeper = nil
	c.mu.Unlock()

	var errs error
	if c.parallel {
		errs = c.stopParallel(ctx)
	} else {
		errs = c.stopSequential(ctx)
	}

	if sweeper != nil {
		sweeper.Stop()
	}

	if err := c.scopes.DisposeAll(); err != nil {
		errs = multierr.Append(errs, err)
	}

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()

	if errs != nil {
		return fmt.Errorf("%w: %w", ErrShutdownFailed, errs)
	}
	return nil
}

func (c *Container) stopSequential(ctx context.Context) error {
	order, err := c.graph.ShutdownOrder()
	if err != nil {
		return fmt.Errorf("failed to determine shutdown order: %w", err)
	}

	var errs error
	for _, key := range order {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shutdown timeout exceeded: %w", err))
			break
		}
		errs = multierr.Append(errs, c.stopService(ctx, key))
	}

	return errs
}

func (c *Container) stopParallel(ctx context.Context) error {
	groups, err := c.graph.ParallelShutdownGroups()
	if err != nil {
		return fmt.Errorf("failed to determine shutdown groups: %w", err)
	}

	var errs error
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shutdown timeout exceeded: %w", err))
			break
		}
		errs = multierr.Append(errs, c.stopGroup(ctx, group.Nodes))
	}

	return errs
}

func (c *Container) stopGroup(ctx context.Context, keys []string) error {
	if len(keys) == 1 {
		return c.stopService(ctx, keys[0])
	}

	var mu sync.Mutex
	var errs error
	var wg sync.WaitGroup

	for _, key := range keys {
		if _, instantiated := c.registry.GetInstance(key); !instantiated {
			continue
		}

		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			if err := c.stopService(ctx, k); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(key)
	}

	wg.Wait()
	return errs
}

func (c *Container) stopService(ctx context.Context, key string) error {
	entry, exists := c.registry.Get(key)
	if !exists || !entry.Instantiated {
		return nil
	}

	start := time.Now()
	var stopErr error

	for i := len(entry.OnStop) - 1; i >= 0; i-- {
		c.logger.Debug("running OnStop hook", "service", key)
		if err := entry.OnStop[i](ctx); err != nil {
			stopErr = multierr.Append(stopErr, fmt.Errorf("OnStop hook failed for %s: %w", key, err))
		}
	}

	c.callStopHooks(key, time.Since(start), stopErr)
	return stopErr
}

func (c *Container) callStopHooks(key string, duration time.Duration, err error) {
	for _, hook := range c.onStop {
		hook(key, duration, err)
	}
}
