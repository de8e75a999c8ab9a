package scope

type Scope int

const (
	Singleton Scope = iota
	Transient
	Request
	Pooled
	// Creator instances are memoized per creator and released with it.
	Creator
	// Named instances live in the nearest enclosing activation that defines
	// the scope name.
	Named
)

func (s Scope) String() string {
	switch s {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	case Request:
		return "request"
	case Pooled:
		return "pooled"
	case Creator:
		return "creator"
	case Named:
		return "named"
	default:
		return "unknown"
	}
}

// Cached reports whether the container keeps instances of s itself.
func (s Scope) Cached() bool {
	return s == Singleton
}

// Derived reports whether instances of s are owned by an activation scope.
func (s Scope) Derived() bool {
	return s == Creator || s == Named
}
