package tether

import (
	"context"
	"fmt"
	reflectPkg "reflect"

	"github.com/danpasecinic/tether/internal/reflect"
)

const TagKey = "tether"

// WithCreatorArgument makes parameter index of a ProvideFunc constructor
// receive the creator of the instance being built instead of a resolved
// service.
func WithCreatorArgument(index int) ProviderOption {
	return func(cfg *providerConfig) {
		cfg.creatorArg = index
	}
}

// WithDirectCreator injects the creator itself instead of a weak proxy. The
// dependency then keeps its creator reachable until the scope is disposed
// explicitly.
func WithDirectCreator() ProviderOption {
	return func(cfg *providerConfig) {
		cfg.directCreator = true
	}
}

func InvokeStruct[T any](c *Container) (T, error) {
	return InvokeStructCtx[T](context.Background(), c)
}

func InvokeStructCtx[T any](ctx context.Context, c *Container) (T, error) {
	return injectStruct[T](ctx, c, false)
}

func injectStruct[T any](ctx context.Context, c *Container, directCreator bool) (T, error) {
	var zero T

	t := reflect.TypeOf[T]()
	isPtr := t.Kind() == reflectPkg.Ptr
	if isPtr {
		t = t.Elem()
	}

	if t.Kind() != reflectPkg.Struct {
		return zero, fmt.Errorf("InvokeStruct requires a struct type, got %s", t.Kind())
	}

	fields, err := reflect.StructFields[T](TagKey)
	if err != nil {
		return zero, err
	}

	ptr := reflectPkg.New(t)
	structVal := ptr.Elem()

	for _, field := range fields {
		instance, ok, err := resolveField(ctx, c, field, directCreator)
		if err != nil {
			return zero, err
		}
		if !ok {
			continue
		}

		fieldVal := structVal.Field(field.Index)
		instanceVal := reflectPkg.ValueOf(instance)
		if !instanceVal.Type().AssignableTo(fieldVal.Type()) {
			return zero, fmt.Errorf(
				"cannot assign %s to field %s of type %s",
				instanceVal.Type(), field.Name, fieldVal.Type(),
			)
		}

		fieldVal.Set(instanceVal)
	}

	if isPtr {
		return ptr.Interface().(T), nil
	}
	return structVal.Interface().(T), nil
}

func resolveField(ctx context.Context, c *Container, field reflect.FieldInfo, directCreator bool) (any, bool, error) {
	if field.Creator {
		instance, err := c.creatorValue(ctx, field.Type, "field "+field.Name, directCreator)
		if err != nil {
			if field.Optional && IsMissingCreatorContext(err) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return instance, true, nil
	}

	key := field.Key()
	if !c.internal.Has(key) {
		if field.Optional {
			return nil, false, nil
		}
		return nil, false, errResolutionFailed(field.Name, fmt.Errorf("no provider for %s", key))
	}

	instance, err := c.internal.Resolve(ctx, key)
	if err != nil {
		if field.Optional {
			return nil, false, nil
		}
		return nil, false, errResolutionFailed(field.Name, err)
	}
	return instance, true, nil
}

// ProvideFunc registers a constructor whose parameters are resolved by type.
func ProvideFunc[T any](c *Container, constructor any, opts ...ProviderOption) error {
	provider, opts, err := funcProvider[T](c, constructor, opts)
	if err != nil {
		return err
	}
	return Provide(c, provider, opts...)
}

func funcProvider[T any](c *Container, constructor any, opts []ProviderOption) (Provider[T], []ProviderOption, error) {
	params, returnType, err := reflect.FuncParams(constructor)
	if err != nil {
		return nil, nil, err
	}

	if returnType == nil {
		return nil, nil, fmt.Errorf("constructor must return at least one value")
	}

	expectedType := reflect.TypeOf[T]()
	if !returnType.AssignableTo(expectedType) {
		return nil, nil, fmt.Errorf("constructor returns %s, expected %s", returnType, expectedType)
	}

	cfg := newProviderConfig(opts)
	if cfg.creatorArg >= len(params) {
		return nil, nil, fmt.Errorf(
			"creator argument %d out of range for %s", cfg.creatorArg, reflectPkg.TypeOf(constructor),
		)
	}

	fnVal := reflectPkg.ValueOf(constructor)
	hasError := fnVal.Type().NumOut() == 2

	deps := make([]string, 0, len(params))
	for i, p := range params {
		if i != cfg.creatorArg {
			deps = append(deps, p.TypeKey)
		}
	}

	provider := func(ctx context.Context, r Resolver) (T, error) {
		var zero T

		args := make([]reflectPkg.Value, len(params))
		for i, p := range params {
			var (
				instance any
				err      error
			)
			if i == cfg.creatorArg {
				instance, err = c.creatorValue(ctx, p.Type, fmt.Sprintf("parameter %d", i), cfg.directCreator)
			} else {
				instance, err = c.internal.Resolve(ctx, p.TypeKey)
			}
			if err != nil {
				return zero, fmt.Errorf("failed to resolve parameter %d (%s): %w", i, p.TypeKey, err)
			}
			args[i] = argValue(instance, p.Type)
		}

		results := fnVal.Call(args)

		if hasError && !results[1].IsNil() {
			return zero, results[1].Interface().(error)
		}

		return results[0].Interface().(T), nil
	}

	return provider, append([]ProviderOption{WithDependencies(deps...)}, opts...), nil
}

// argValue keeps nil instances callable for interface and pointer params.
func argValue(instance any, t reflectPkg.Type) reflectPkg.Value {
	if instance == nil {
		return reflectPkg.Zero(t)
	}
	return reflectPkg.ValueOf(instance)
}

func MustProvideFunc[T any](c *Container, constructor any, opts ...ProviderOption) {
	if err := ProvideFunc[T](c, constructor, opts...); err != nil {
		panic(err)
	}
}

// ProvideStruct registers T built by field injection. Fields tagged
// `tether:",creator"` receive the creator of the instance being built.
func ProvideStruct[T any](c *Container, opts ...ProviderOption) error {
	provider, opts, err := structProvider[T](c, opts)
	if err != nil {
		return err
	}
	return Provide(c, provider, opts...)
}

func structProvider[T any](c *Container, opts []ProviderOption) (Provider[T], []ProviderOption, error) {
	fields, err := reflect.StructFields[T](TagKey)
	if err != nil {
		return nil, nil, err
	}

	cfg := newProviderConfig(opts)

	provider := func(ctx context.Context, r Resolver) (T, error) {
		return injectStruct[T](ctx, c, cfg.directCreator)
	}

	deps := make([]string, 0, len(fields))
	for _, f := range fields {
		if !f.Optional && !f.Creator {
			deps = append(deps, f.Key())
		}
	}

	return provider, append([]ProviderOption{WithDependencies(deps...)}, opts...), nil
}

func MustProvideStruct[T any](c *Container, opts ...ProviderOption) {
	if err := ProvideStruct[T](c, opts...); err != nil {
		panic(err)
	}
}
