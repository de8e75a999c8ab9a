// Package tether is a type-safe dependency injection container for Go 1.25+
// with derived, lifetime-scoped dependencies.
//
// A derived dependency is created when its parent is created, lives in a
// scope keyed by the parent instance and is disposed when the parent is
// disposed or collected. The container never keeps the parent alive on the
// dependency's behalf.
//
// # Quick Start
//
//	c := tether.New()
//
//	tether.Provide(c, func(ctx context.Context, r tether.Resolver) (*Session, error) {
//	    return &Session{}, nil
//	}, tether.WithScope(tether.Transient))
//
//	tether.Provide(c, func(ctx context.Context, r tether.Resolver) (*Tx, error) {
//	    return &Tx{}, nil
//	})
//
//	// every *Session gets its own *Tx
//	tether.DefineDependency[*Session, *Tx](c)
//
//	s := tether.MustInvoke[*Session](c)
//	...
//	c.DisposeScope(s) // or drop s and let Prune find it
//
// # Declarations
//
// DefineDependency[P, D] matches every instance assignable to P, so P may be
// an interface the parent implements or a struct the parent embeds. Declaring
// the same pair twice creates two dependencies. Declarations that would form
// a cycle between exact types are rejected.
//
// Dependencies are always built fresh for their parent, whatever the scope
// of D's own binding. Values registered with ProvideValue are never
// activated.
//
// A parent that matches a declaration must be a pointer whose element type
// holds a pointer or is at least 16 bytes. Smaller pointer-free objects share
// allocation blocks, so their collection cannot be observed, and activating
// them fails with an InvalidCreator error.
//
// # Creators
//
// A provider building a derived dependency can reach its creator:
//
//	tether.RegisterProxy(c, func(p tether.Proxy[Notifier]) Notifier {
//	    return notifierProxy{p}
//	})
//
//	tether.Provide(c, func(ctx context.Context, r tether.Resolver) (*Audit, error) {
//	    owner, err := tether.Creator[Notifier](ctx, c)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &Audit{owner: owner}, nil
//	})
//
// Creator returns a weak forwarding proxy: each call resolves the creator
// again and fails with CreatorUnavailable once it is gone. CreatorInstance
// returns the creator itself and WithDirectCreator does the same for
// auto-wired constructors; both keep the creator alive.
//
// Constructors and structs can ask for the creator too:
//
//	tether.ProvideFunc[*Audit](c, NewAudit, tether.WithCreatorArgument(0))
//
//	type Audit struct {
//	    Owner Notifier `tether:",creator"`
//	}
//	tether.ProvideStruct[*Audit](c)
//
// # Scopes
//
// Singleton (default), Transient, Request, Pooled, CreatorScoped and Named.
// WithCreatorScope places a binding in the scope of the creator currently
// being activated, so a provider and a declaration share one instance.
// WithDefinesScope(name) on a parent and InNamedScope(name) on a dependency
// place the dependency in the nearest enclosing parent that defines the
// scope.
//
// # Pruning
//
// Prune disposes the scopes of every collected creator. It runs on demand,
// every interval with WithAutoPrune, and whenever the garbage collector
// reclaims a creator with WithPruneOnCollect. Stop disposes every scope still
// alive.
//
// Dependencies implementing Dispose() error or io.Closer are disposed in
// reverse creation order.
//
// # Lifecycle
//
//	tether.Provide(c, NewServer,
//	    tether.WithOnStart(func(ctx context.Context) error {
//	        return server.Listen()
//	    }),
//	    tether.WithOnStop(func(ctx context.Context) error {
//	        return server.Shutdown(ctx)
//	    }),
//	)
//
//	c.Start(ctx)  // Starts all services in dependency order
//	c.Stop(ctx)   // Stops all services in reverse order, disposes scopes
//	c.Run(ctx)    // Start + wait for signal + Stop
//
// # Modules
//
//	var Storage = tether.NewModule("storage")
//	tether.ModuleProvide(Storage, NewPool)
//	tether.ModuleDefineDependency[*Session, *Tx](Storage)
//
//	c.Apply(Storage)
//
// # Observers
//
//	c := tether.New(
//	    tether.WithActivateObserver(func(key string, n int, d time.Duration, err error) {}),
//	    tether.WithDisposeObserver(func(key string, err error) {}),
//	    tether.WithPruneObserver(func(pruned int, d time.Duration, err error) {}),
//	)
//
// The tetherprom package exports these as Prometheus metrics.
package tether
