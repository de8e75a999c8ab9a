// Package activation builds the dependencies declared for an instance right
// after the container constructs it, and places them in scopes owned by that
// instance.
package activation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"time"

	"github.com/danpasecinic/tether/internal/declaration"
	"github.com/danpasecinic/tether/internal/scope"
	"github.com/danpasecinic/tether/internal/scopecache"
)

var (
	ErrMissingCreatorContext   = errors.New("no creator in the current construction context")
	ErrCreatorUnavailable      = errors.New("creator is no longer available")
	ErrUnsatisfiableDependency = errors.New("dependency could not be constructed")
	ErrScopeNotFound           = errors.New("named scope not found")
)

// Builder constructs fresh instances by container key.
type Builder interface {
	Build(ctx context.Context, key string) (any, error)
	Placement(key string) (scope.Scope, string)
}

type Activation struct {
	Key      string
	Instance any
	// Scopes are the scope names the instance's binding defines.
	Scopes []string
}

type Observer func(key string, dependencies int, duration time.Duration, err error)

type Config struct {
	Registry  *declaration.Registry
	Cache     *scopecache.Cache
	Builder   Builder
	Logger    *slog.Logger
	Observers []Observer
}

type Hook struct {
	registry  *declaration.Registry
	cache     *scopecache.Cache
	builder   Builder
	logger    *slog.Logger
	observers []Observer
}

func NewHook(cfg Config) *Hook {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{
		registry:  cfg.Registry,
		cache:     cfg.Cache,
		builder:   cfg.Builder,
		logger:    logger,
		observers: cfg.Observers,
	}
}

// OnActivated resolves every dependency declared for the instance's type into
// the instance's scope. On failure the dependencies already built for this
// instance are disposed before the error is returned.
func (h *Hook) OnActivated(ctx context.Context, a Activation) error {
	if a.Instance == nil {
		return nil
	}

	matches := h.registry.MatchesFor(reflect.TypeOf(a.Instance))
	if len(matches) == 0 {
		return nil
	}

	start := time.Now()
	err := h.activate(ctx, a, matches)
	h.notify(a.Key, len(matches), time.Since(start), err)
	return err
}

func (h *Hook) activate(ctx context.Context, a Activation, matches []declaration.Declaration) error {
	handle, err := NewHandle(a.Instance)
	if err != nil {
		return fmt.Errorf("%s cannot own dependencies: %w", a.Key, err)
	}

	ctx = WithFrame(ctx, handle, a.Key, a.Scopes)
	seen := make(map[string]int, len(matches))

	for _, d := range matches {
		slot := d.Key
		if n := seen[d.Key]; n > 0 {
			slot += "@" + strconv.Itoa(n)
		}
		seen[d.Key]++

		if _, err := h.resolveDeclared(ctx, a.Instance, d.Key, slot); err != nil {
			if derr := h.cache.DisposeScope(a.Instance); derr != nil {
				h.logger.Warn("failed to release partial scope", "service", a.Key, "error", derr)
			}
			return fmt.Errorf("%w: %s for %s: %w", ErrUnsatisfiableDependency, d.Key, a.Key, err)
		}
	}

	h.logger.Debug("dependencies activated", "service", a.Key, "creator", handle, "count", len(matches))
	return nil
}

func (h *Hook) resolveDeclared(ctx context.Context, creator any, key, slot string) (any, error) {
	owner := creator

	if sc, name := h.builder.Placement(key); sc == scope.Named {
		handle, ok := NamedOwner(ctx, name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrScopeNotFound, name)
		}
		if owner, ok = handle.Resolve(); !ok {
			return nil, fmt.Errorf("%w: owner of scope %q (%s)", ErrCreatorUnavailable, name, handle)
		}
	}

	return h.cache.ResolveOrCreate(
		owner, slot, func() (any, error) {
			return h.builder.Build(ctx, key)
		},
	)
}

// Resolve serves a direct request for a binding placed in a creator or named
// scope. The instance is shared with a declared dependency of the same key.
func (h *Hook) Resolve(ctx context.Context, key string, sc scope.Scope, name string) (any, error) {
	return h.ResolveWith(
		ctx, key, sc, name, func() (any, error) {
			return h.builder.Build(ctx, key)
		},
	)
}

// ResolveWith is Resolve with the factory used when the owner has no instance
// yet. Callers that already entered key on the resolution path pass one that
// does not enter it again.
func (h *Hook) ResolveWith(ctx context.Context, key string, sc scope.Scope, name string, factory func() (any, error)) (any, error) {
	var (
		handle *CreatorHandle
		ok     bool
	)

	switch sc {
	case scope.Creator:
		if handle, ok = CreatorFrom(ctx); !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingCreatorContext, key)
		}
	case scope.Named:
		if _, ok = CreatorFrom(ctx); !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingCreatorContext, key)
		}
		if handle, ok = NamedOwner(ctx, name); !ok {
			return nil, fmt.Errorf("%w: %q for %s", ErrScopeNotFound, name, key)
		}
	default:
		return nil, fmt.Errorf("scope %s is not owned by a creator", sc)
	}

	owner, ok := handle.Resolve()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCreatorUnavailable, handle)
	}

	return h.cache.ResolveOrCreate(owner, key, factory)
}

func (h *Hook) notify(key string, n int, d time.Duration, err error) {
	for _, o := range h.observers {
		o(key, n, d, err)
	}
}
