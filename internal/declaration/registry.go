// Package declaration records which dependency types are derived from which
// parent types.
package declaration

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/danpasecinic/tether/internal/graph"
	treflect "github.com/danpasecinic/tether/internal/reflect"
)

var (
	ErrCircularDeclaration = errors.New("circular dependency declaration")
	ErrInvalidDeclaration  = errors.New("invalid dependency declaration")
)

type Declaration struct {
	Seq        int
	Parent     reflect.Type
	Dependency reflect.Type
	// Key is the container key the dependency is built from.
	Key string
}

func (d Declaration) String() string {
	return fmt.Sprintf("%s -> %s", d.Parent, d.Key)
}

// Registry is append-only. Declaring the same pair twice yields two
// dependencies per activation.
type Registry struct {
	mu      sync.RWMutex
	decls   []Declaration
	graph   *graph.Graph
	matches sync.Map
}

func NewRegistry() *Registry {
	return &Registry{
		graph: graph.New(),
	}
}

func (r *Registry) Declare(parent, dependency reflect.Type, key string) (Declaration, error) {
	if parent == nil || dependency == nil {
		return Declaration{}, fmt.Errorf("%w: nil type", ErrInvalidDeclaration)
	}
	if key == "" {
		key = treflect.TypeKeyFromType(dependency)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	from := treflect.TypeKeyFromType(parent)
	existed := slices.Contains(r.graph.GetDependencies(from), key)

	r.graph.AddEdge(from, key)
	if r.graph.HasCycle() {
		path := r.graph.FindCyclePath(from)
		if !existed {
			r.graph.RemoveEdge(from, key)
		}
		return Declaration{}, fmt.Errorf("%w: %s", ErrCircularDeclaration, strings.Join(path, " -> "))
	}

	d := Declaration{
		Seq:        len(r.decls),
		Parent:     parent,
		Dependency: dependency,
		Key:        key,
	}
	r.decls = append(r.decls, d)
	r.matches.Clear()

	return d, nil
}

// MatchesFor returns, in declaration order, every declaration whose parent
// type is assignable from t or from a type t embeds.
func (r *Registry) MatchesFor(t reflect.Type) []Declaration {
	if t == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.decls) == 0 {
		return nil
	}
	if cached, ok := r.matches.Load(t); ok {
		return cached.([]Declaration)
	}

	supertypes := treflect.Supertypes(t)

	var out []Declaration
	for _, d := range r.decls {
		for _, st := range supertypes {
			if st.AssignableTo(d.Parent) {
				out = append(out, d)
				break
			}
		}
	}

	r.matches.Store(t, out)
	return out
}

func (r *Registry) Declarations() []Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Declaration, len(r.decls))
	copy(out, r.decls)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.decls)
}
