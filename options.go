package tether

import (
	"log/slog"
	"time"
)

type Option func(*containerConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *containerConfig) {
		cfg.logger = logger
	}
}

// WithParallel starts and stops independent services concurrently.
func WithParallel() Option {
	return func(cfg *containerConfig) {
		cfg.parallel = true
	}
}

// WithShutdownTimeout bounds Stop and the shutdown half of Run.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(cfg *containerConfig) {
		cfg.shutdownTimeout = timeout
	}
}

// WithAutoPrune prunes orphaned scopes every interval while the container
// runs.
func WithAutoPrune(interval time.Duration) Option {
	return func(cfg *containerConfig) {
		cfg.autoPrune = interval
	}
}

// WithPruneOnCollect prunes as soon as the garbage collector reclaims a
// creator that owns a scope.
func WithPruneOnCollect() Option {
	return func(cfg *containerConfig) {
		cfg.pruneOnCollect = true
	}
}

func WithResolveObserver(hook ResolveHook) Option {
	return func(cfg *containerConfig) {
		cfg.onResolve = append(cfg.onResolve, hook)
	}
}

func WithProvideObserver(hook ProvideHook) Option {
	return func(cfg *containerConfig) {
		cfg.onProvide = append(cfg.onProvide, hook)
	}
}

func WithStartObserver(hook StartHook) Option {
	return func(cfg *containerConfig) {
		cfg.onStart = append(cfg.onStart, hook)
	}
}

func WithStopObserver(hook StopHook) Option {
	return func(cfg *containerConfig) {
		cfg.onStop = append(cfg.onStop, hook)
	}
}

func WithActivateObserver(hook ActivateHook) Option {
	return func(cfg *containerConfig) {
		cfg.onActivate = append(cfg.onActivate, hook)
	}
}

func WithDisposeObserver(hook DisposeHook) Option {
	return func(cfg *containerConfig) {
		cfg.onDispose = append(cfg.onDispose, hook)
	}
}

func WithPruneObserver(hook PruneHook) Option {
	return func(cfg *containerConfig) {
		cfg.onPrune = append(cfg.onPrune, hook)
	}
}
