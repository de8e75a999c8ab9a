package container

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

type chainKey struct{}

// chainLink is one step of the resolution path carried by a context. Each
// goroutine resolving through its own context sees only its own path.
type chainLink struct {
	key    string
	parent *chainLink
}

func enterResolution(ctx context.Context, key string) (context.Context, error) {
	head, _ := ctx.Value(chainKey{}).(*chainLink)

	for l := head; l != nil; l = l.parent {
		if l.key == key {
			path := append(head.path(), key)
			return ctx, fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(path, " -> "))
		}
	}

	return context.WithValue(ctx, chainKey{}, &chainLink{key: key, parent: head}), nil
}

func (l *chainLink) path() []string {
	var keys []string
	for ; l != nil; l = l.parent {
		keys = append(keys, l.key)
	}
	slices.Reverse(keys)
	return keys
}

// ResolutionPath lists the keys being resolved in ctx, outermost first.
func ResolutionPath(ctx context.Context) []string {
	head, _ := ctx.Value(chainKey{}).(*chainLink)
	return head.path()
}
