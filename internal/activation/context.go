package activation

import (
	"context"
	"slices"
)

type frameKey struct{}

// frame is one activation on the current construction path. Frames form a
// stack through parent, innermost first.
type frame struct {
	handle *CreatorHandle
	key    string
	scopes []string
	parent *frame
}

func WithFrame(ctx context.Context, handle *CreatorHandle, key string, scopes []string) context.Context {
	return context.WithValue(
		ctx, frameKey{}, &frame{
			handle: handle,
			key:    key,
			scopes: scopes,
			parent: frameFrom(ctx),
		},
	)
}

// Detach hides every enclosing activation. Instances that outlive their
// first resolver, such as singletons, are built from a detached context.
func Detach(ctx context.Context) context.Context {
	if frameFrom(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, frameKey{}, (*frame)(nil))
}

func frameFrom(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

// CreatorFrom returns the handle of the innermost activation.
func CreatorFrom(ctx context.Context) (*CreatorHandle, bool) {
	f := frameFrom(ctx)
	if f == nil {
		return nil, false
	}
	return f.handle, true
}

// CreatorKey is the container key of the innermost creator, if any.
func CreatorKey(ctx context.Context) string {
	if f := frameFrom(ctx); f != nil {
		return f.key
	}
	return ""
}

// NamedOwner walks outwards to the nearest activation defining name.
func NamedOwner(ctx context.Context, name string) (*CreatorHandle, bool) {
	for f := frameFrom(ctx); f != nil; f = f.parent {
		if slices.Contains(f.scopes, name) {
			return f.handle, true
		}
	}
	return nil, false
}

// Path lists creator keys from the outermost activation inwards.
func Path(ctx context.Context) []string {
	var path []string
	for f := frameFrom(ctx); f != nil; f = f.parent {
		path = append(path, f.key)
	}
	slices.Reverse(path)
	return path
}
