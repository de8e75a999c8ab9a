package tether

import (
	"context"

	"github.com/danpasecinic/tether/internal/container"
	"github.com/danpasecinic/tether/internal/scope"
)

type Scope = scope.Scope

const (
	Singleton = scope.Singleton
	Transient = scope.Transient
	Request   = scope.Request
	Pooled    = scope.Pooled
	// CreatorScoped binds an instance to the creator whose activation
	// requested it. Creator returns the proxy of that creator.
	CreatorScoped = scope.Creator
	// Named binds an instance to the nearest enclosing scope owner with a
	// matching name, see WithDefinesScope and InNamedScope.
	Named = scope.Named
)

func WithRequestScope(ctx context.Context) context.Context {
	return container.WithRequestScope(ctx)
}

// Release returns a pooled instance. It reports false when the pool is full
// or key is not pooled.
func (c *Container) Release(key string, instance any) bool {
	return c.internal.Release(key, instance)
}

// ReleaseInstance is Release keyed by the type of T.
func ReleaseInstance[T any](c *Container, instance T) bool {
	return c.Release(typeKey[T](""), instance)
}
