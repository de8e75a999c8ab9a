package tether

import (
	"github.com/danpasecinic/tether/internal/reflect"
)

// DefineDependency declares that every instance assignable to P the container
// builds owns a fresh D. The D is created right after the instance, lives in
// the instance's scope and is disposed when the instance is disposed or
// pruned. P may be an interface or an embedded base struct.
//
// Declaring the same pair twice creates two dependencies per instance.
func DefineDependency[P, D any](c *Container) error {
	return DefineNamedDependency[P, D](c, "")
}

// DefineNamedDependency is DefineDependency for the D registered under name.
func DefineNamedDependency[P, D any](c *Container, name string) error {
	key := reflect.TypeKeyNamed[D](name)

	if err := c.internal.Declare(reflect.TypeOf[P](), reflect.TypeOf[D](), key); err != nil {
		return wrap(err, key, ErrCodeInvalidDeclaration, "failed to declare dependency of "+reflect.TypeName[P]())
	}
	return nil
}

func MustDefineDependency[P, D any](c *Container) {
	if err := DefineDependency[P, D](c); err != nil {
		panic(err)
	}
}

// ScopeEntry returns the D that creator owns, if one was created. Duplicate
// declarations beyond the first are not reachable through it.
func ScopeEntry[D any](c *Container, creator any) (D, bool) {
	var zero D

	v, ok := c.internal.ScopeEntry(creator, reflect.TypeKey[D]())
	if !ok {
		return zero, false
	}
	typed, ok := v.(D)
	return typed, ok
}

// Declaration describes one DefineDependency call. Parent and Dependency are
// container type keys.
type Declaration struct {
	Parent     string
	Dependency string
	Key        string
}

func (c *Container) Declarations() []Declaration {
	decls := c.internal.Declarations()
	out := make([]Declaration, len(decls))
	for i, d := range decls {
		out[i] = Declaration{
			Parent:     reflect.TypeKeyFromType(d.Parent),
			Dependency: reflect.TypeKeyFromType(d.Dependency),
			Key:        d.Key,
		}
	}
	return out
}
