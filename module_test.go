package tether_test

import (
	"context"
	"errors"
	"testing"

	"github.com/danpasecinic/tether"
)

type Tracer struct {
	Prefix string
}

type Store interface {
	Lookup(id int) string
}

type PostgresStore struct {
	Pool *Pool
}

func (s *PostgresStore) Lookup(id int) string {
	return "row-" + s.Pool.Name
}

func providePostgresStore(c *tether.Container) tether.Provider[*PostgresStore] {
	return func(ctx context.Context, r tether.Resolver) (*PostgresStore, error) {
		pool, err := tether.InvokeCtx[*Pool](ctx, c)
		if err != nil {
			return nil, err
		}
		return &PostgresStore{Pool: pool}, nil
	}
}

func TestModuleBasic(t *testing.T) {
	t.Parallel()

	module := tether.NewModule("storage")
	if module.Name() != "storage" {
		t.Errorf("expected module name 'storage', got %s", module.Name())
	}
}

func TestModuleProvide(t *testing.T) {
	t.Parallel()

	c := tether.New()

	module := tether.NewModule("config")
	tether.ModuleProvide(
		module, func(ctx context.Context, r tether.Resolver) (*Config, error) {
			return &Config{DSN: "module.local", MaxConns: 4}, nil
		},
	)

	if err := c.Apply(module); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	cfg, err := tether.Invoke[*Config](c)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if cfg.DSN != "module.local" {
		t.Errorf("expected dsn module.local, got %s", cfg.DSN)
	}
}

func TestModuleProvideValue(t *testing.T) {
	t.Parallel()

	c := tether.New()

	config := &Config{MaxConns: 7}
	module := tether.NewModule("values")
	tether.ModuleProvideValue(module, config)

	if err := c.Apply(module); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if cfg := tether.MustInvoke[*Config](c); cfg != config {
		t.Error("expected same instance")
	}
}

func TestModuleUntypedProviders(t *testing.T) {
	t.Parallel()

	c := tether.New()

	module := tether.NewModule("untyped").
		ProvideValue(&Config{DSN: "untyped"}).
		Provide(
			func(ctx context.Context, r tether.Resolver) (any, error) {
				return &Tracer{Prefix: "any"}, nil
			}, tether.WithName("any"),
		)

	if err := c.Apply(module); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if cfg := tether.MustInvoke[*Config](c); cfg.DSN != "untyped" {
		t.Errorf("expected dsn untyped, got %s", cfg.DSN)
	}

	if c.Size() != 2 {
		t.Errorf("expected 2 services, got %v", c.Keys())
	}
}

func TestModuleInvalidProvider(t *testing.T) {
	t.Parallel()

	c := tether.New()
	module := tether.NewModule("broken").Provide(func() *Config { return nil })

	err := c.Apply(module)
	if err == nil {
		t.Fatal("expected error for invalid provider")
	}

	var e *tether.Error
	if !errors.As(err, &e) || e.Code != tether.ErrCodeModuleApplyFailed {
		t.Errorf("expected module apply failure, got %v", err)
	}
}

func TestModuleInclude(t *testing.T) {
	t.Parallel()

	c := tether.New()

	configModule := tether.NewModule("config")
	tether.ModuleProvideValue(configModule, &Config{MaxConns: 5})

	poolModule := tether.NewModule("pool")
	tether.ModuleProvide(
		poolModule, func(ctx context.Context, r tether.Resolver) (*Pool, error) {
			cfg, err := tether.InvokeCtx[*Config](ctx, c)
			if err != nil {
				return nil, err
			}
			return &Pool{Config: cfg, Name: "included"}, nil
		},
	)

	app := tether.NewModule("app").
		Include(configModule).
		Include(poolModule)

	if err := c.Apply(app); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	pool, err := tether.Invoke[*Pool](c)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if pool.Config.MaxConns != 5 {
		t.Errorf("expected 5 connections, got %d", pool.Config.MaxConns)
	}
}

func TestModuleBind(t *testing.T) {
	t.Parallel()

	c := tether.New()

	module := tether.NewModule("stores")
	tether.ModuleProvideValue(module, &Pool{Name: "postgres"})
	tether.ModuleProvide(module, providePostgresStore(c))
	tether.ModuleBind[Store, *PostgresStore](module)

	if err := c.Apply(module); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	store, err := tether.Invoke[Store](c)
	if err != nil {
		t.Fatalf("Invoke Store failed: %v", err)
	}
	if got := store.Lookup(1); got != "row-postgres" {
		t.Errorf("expected 'row-postgres', got %s", got)
	}
}

func TestModuleDefineDependency(t *testing.T) {
	t.Parallel()

	c := tether.New()
	l := &ledger{}

	module := tether.NewModule("sessions")
	tether.ModuleProvide(module, newSession, tether.WithScope(tether.Transient))
	tether.ModuleProvide(module, l.provider)
	tether.ModuleDefineDependency[*session, *tx](module)

	if err := c.Apply(module); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	s := tether.MustInvoke[*session](c)
	if n := len(l.ownedBy(s)); n != 1 {
		t.Errorf("expected 1 tx for the session, got %d", n)
	}

	if decls := c.Declarations(); len(decls) != 1 {
		t.Errorf("expected 1 declaration, got %d", len(decls))
	}
}

func TestModuleDecorate(t *testing.T) {
	t.Parallel()

	c := tether.New()

	module := tether.NewModule("tracing")
	tether.ModuleProvide(
		module, func(ctx context.Context, r tether.Resolver) (*Tracer, error) {
			return &Tracer{Prefix: "app"}, nil
		},
	)
	tether.ModuleDecorate(
		module, func(ctx context.Context, r tether.Resolver, base *Tracer) (*Tracer, error) {
			base.Prefix = "[" + base.Prefix + "]"
			return base, nil
		},
	)

	if err := c.Apply(module); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if tracer := tether.MustInvoke[*Tracer](c); tracer.Prefix != "[app]" {
		t.Errorf("expected prefix '[app]', got %s", tracer.Prefix)
	}
}

func TestBind(t *testing.T) {
	t.Parallel()

	c := tether.New()

	if err := tether.ProvideValue(c, &Pool{Name: "main"}); err != nil {
		t.Fatalf("ProvideValue failed: %v", err)
	}
	if err := tether.Provide(c, providePostgresStore(c)); err != nil {
		t.Fatalf("Provide failed: %v", err)
	}
	if err := tether.Bind[Store, *PostgresStore](c); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	store, err := tether.Invoke[Store](c)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if store.Lookup(1) != "row-main" {
		t.Error("expected 'row-main'")
	}
	if store != Store(tether.MustInvoke[*PostgresStore](c)) {
		t.Error("expected the binding to share the singleton")
	}
}

func TestBindNamed(t *testing.T) {
	t.Parallel()

	c := tether.New()

	_ = tether.ProvideValue(c, &Pool{Name: "named"})
	_ = tether.Provide(c, providePostgresStore(c))

	if err := tether.BindNamed[Store, *PostgresStore](c, "rows"); err != nil {
		t.Fatalf("BindNamed failed: %v", err)
	}

	store, err := tether.InvokeNamed[Store](c, "rows")
	if err != nil {
		t.Fatalf("InvokeNamed failed: %v", err)
	}
	if store.Lookup(1) != "row-named" {
		t.Error("expected 'row-named'")
	}
}

func TestBind_DeclarationOnInterface(t *testing.T) {
	t.Parallel()

	c := tether.New()
	l := &ledger{}

	_ = tether.ProvideValue(c, &Pool{Name: "bound"})
	_ = tether.Provide(c, providePostgresStore(c), tether.WithScope(tether.Transient))
	_ = tether.Bind[Store, *PostgresStore](c)
	_ = tether.Provide(c, l.provider)

	if err := tether.DefineDependency[Store, *tx](c); err != nil {
		t.Fatalf("DefineDependency failed: %v", err)
	}

	store := tether.MustInvoke[Store](c)
	if n := len(l.ownedBy(store)); n != 1 {
		t.Errorf("expected 1 tx for the store, got %d", n)
	}
}

func TestDecorate(t *testing.T) {
	t.Parallel()

	c := tether.New()

	_ = tether.Provide(
		c, func(ctx context.Context, r tether.Resolver) (*Tracer, error) {
			return &Tracer{Prefix: "base"}, nil
		},
	)

	tether.Decorate(
		c, func(ctx context.Context, r tether.Resolver, base *Tracer) (*Tracer, error) {
			base.Prefix = "decorated:" + base.Prefix
			return base, nil
		},
	)

	if tracer := tether.MustInvoke[*Tracer](c); tracer.Prefix != "decorated:base" {
		t.Errorf("expected 'decorated:base', got %s", tracer.Prefix)
	}
}

func TestDecorateChain(t *testing.T) {
	t.Parallel()

	c := tether.New()

	_ = tether.Provide(
		c, func(ctx context.Context, r tether.Resolver) (*Tracer, error) {
			return &Tracer{Prefix: "core"}, nil
		},
	)

	for _, tag := range []string{"[1]", "[2]"} {
		tether.Decorate(
			c, func(ctx context.Context, r tether.Resolver, base *Tracer) (*Tracer, error) {
				base.Prefix = tag + base.Prefix
				return base, nil
			},
		)
	}

	if tracer := tether.MustInvoke[*Tracer](c); tracer.Prefix != "[2][1]core" {
		t.Errorf("expected '[2][1]core', got %s", tracer.Prefix)
	}
}

func TestDecorateNamed(t *testing.T) {
	t.Parallel()

	c := tether.New()

	_ = tether.ProvideNamed(
		c, "app", func(ctx context.Context, r tether.Resolver) (*Tracer, error) {
			return &Tracer{Prefix: "app"}, nil
		},
	)

	tether.DecorateNamed(
		c, "app", func(ctx context.Context, r tether.Resolver, base *Tracer) (*Tracer, error) {
			base.Prefix = "named:" + base.Prefix
			return base, nil
		},
	)

	if tracer := tether.MustInvokeNamed[*Tracer](c, "app"); tracer.Prefix != "named:app" {
		t.Errorf("expected 'named:app', got %s", tracer.Prefix)
	}
}

func TestMultipleModules(t *testing.T) {
	t.Parallel()

	c := tether.New()

	configModule := tether.NewModule("config")
	tether.ModuleProvideValue(configModule, &Config{MaxConns: 16})

	poolModule := tether.NewModule("pool")
	tether.ModuleProvide(
		poolModule, func(ctx context.Context, r tether.Resolver) (*Pool, error) {
			cfg, err := tether.InvokeCtx[*Config](ctx, c)
			if err != nil {
				return nil, err
			}
			return &Pool{Config: cfg, Name: "app"}, nil
		},
	)

	if err := c.Apply(configModule, poolModule); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if pool := tether.MustInvoke[*Pool](c); pool.Config.MaxConns != 16 {
		t.Errorf("expected 16 connections, got %d", pool.Config.MaxConns)
	}
}
