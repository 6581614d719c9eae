package cqrs

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"slices"
)

// Register describes and validates the given handler types, then emits their
// registrations to r, followed by the configuration and both dispatchers.
// configure, when not nil, adjusts DefaultConfig before anything is described.
//
// Every validation rule is checked before the first emission: when Register
// returns a *ConfigurationError nothing was registered.
func Register(r Registrar, configure func(*Config), types ...*HandlerType) error {
	if r == nil {
		return ErrNilRegistrar
	}
	cfg := DefaultConfig()
	if configure != nil {
		configure(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	descriptors, err := describeAll(r, cfg, types)
	if err != nil {
		return err
	}
	for _, lt := range []struct {
		impl reflect.Type
		l    Lifetime
	}{
		{typeOf[*CommandDispatcher](), cfg.CommandDispatcherLifetime},
		{typeOf[*QueryDispatcher](), cfg.QueryDispatcherLifetime},
	} {
		if !r.Supports(lt.l) {
			return configurationError(lt.impl, nil, fmt.Errorf("%w: %s", ErrUnsupportedLifetime, lt.l))
		}
	}

	for _, d := range descriptors {
		if err := emit(r, d); err != nil {
			return err
		}
	}
	return emitDispatchers(r, &cfg)
}

// MustRegister is like Register but panics on error.
// Configuration errors are programming mistakes that must halt startup.
func MustRegister(r Registrar, configure func(*Config), types ...*HandlerType) {
	if err := Register(r, configure, types...); err != nil {
		panic(err)
	}
}

func describeAll(r Registrar, cfg Config, types []*HandlerType) ([]HandlerDescriptor, error) {
	var descriptors []HandlerDescriptor
	handlers := make(map[reflect.Type]reflect.Type)
	for _, ht := range types {
		described, err := Describe(ht, cfg)
		if err != nil {
			return nil, err
		}
		for _, d := range described {
			if err := validate(r, d); err != nil {
				return nil, err
			}
			contract := d.Shape.contract
			if _, taken := handlers[contract]; taken {
				return nil, configurationError(d.Implementation, contract, ErrOneHandlerPerContract)
			}
			handlers[contract] = d.Implementation
			descriptors = append(descriptors, d)
		}
	}
	return descriptors, nil
}

// validate enforces the ordering and identity rules of a descriptor's wrappers
// and the adapter's support for its lifetime.
func validate(r Registrar, d HandlerDescriptor) error {
	fail := func(err error) error {
		return configurationError(d.Implementation, d.Shape.contract, err)
	}

	if !d.Lifetime.Valid() {
		return fail(fmt.Errorf("%w: %d", ErrInvalidLifetime, d.Lifetime))
	}
	if !r.Supports(d.Lifetime) {
		return fail(fmt.Errorf("%w: %s", ErrUnsupportedLifetime, d.Lifetime))
	}

	orders := make(map[int]struct{}, len(d.Decorators))
	names := make(map[string]struct{}, len(d.Decorators))
	for _, b := range d.Decorators {
		if _, dup := orders[b.Order]; dup {
			return fail(fmt.Errorf("%w: %d", ErrDuplicateDecoratorOrder, b.Order))
		}
		orders[b.Order] = struct{}{}
		name := wrapperName(b.Decorator)
		if _, dup := names[name]; dup {
			return fail(fmt.Errorf("%w: %s", ErrDuplicateDecoratorType, name))
		}
		names[name] = struct{}{}
	}

	orders = make(map[int]struct{}, len(d.Interceptors))
	names = make(map[string]struct{}, len(d.Interceptors))
	for _, b := range d.Interceptors {
		if _, dup := orders[b.Order]; dup {
			return fail(fmt.Errorf("%w: %d", ErrDuplicateInterceptorOrder, b.Order))
		}
		orders[b.Order] = struct{}{}
		name := wrapperName(b.Interceptor)
		if _, dup := names[name]; dup {
			return fail(fmt.Errorf("%w: %s", ErrDuplicateInterceptorType, name))
		}
		names[name] = struct{}{}
	}
	return nil
}

// emit registers one descriptor: the handler, its interception chain, then its decorators.
func emit(r Registrar, d HandlerDescriptor) error {
	contract := d.Shape.contract
	fail := func(err error) error {
		return configurationError(d.Implementation, contract, err)
	}

	reg := Registration{
		Contract:       contract,
		Implementation: d.Implementation,
		Lifetime:       d.Lifetime,
		Factory:        d.factory,
	}
	if d.Lifetime == PerMatchingScope {
		reg.MatchingTag = ScopeTag
	}
	if err := r.Register(reg); err != nil {
		return fail(err)
	}

	if d.Interceptors != nil {
		if err := r.EnableInterception(contract, d.Shape.proxy); err != nil {
			return fail(err)
		}
		interceptors := slices.Clone(d.Interceptors)
		slices.SortStableFunc(interceptors, func(a, b InterceptorBinding) int {
			return cmp.Compare(b.Order, a.Order)
		})
		for _, b := range interceptors {
			if err := r.AttachInterceptor(contract, b.Interceptor); err != nil {
				return fail(err)
			}
		}
	}

	decorators := slices.Clone(d.Decorators)
	slices.SortStableFunc(decorators, func(a, b DecoratorBinding) int {
		return cmp.Compare(a.Order, b.Order)
	})
	for _, b := range decorators {
		if skipsRegistration(b.Decorator) {
			continue
		}
		if err := r.RegisterDecorator(contract, b.Decorator, b.Order); err != nil {
			return fail(err)
		}
	}
	return nil
}

func emitDispatchers(r Registrar, cfg *Config) error {
	registrations := []Registration{
		{
			Contract:       typeOf[*Config](),
			Implementation: typeOf[*Config](),
			Lifetime:       Singleton,
			Factory: func(context.Context, Scope) (any, error) {
				return cfg, nil
			},
		},
		{
			Contract:       typeOf[*CommandDispatcher](),
			Implementation: typeOf[*CommandDispatcher](),
			Lifetime:       cfg.CommandDispatcherLifetime,
			Factory: func(ctx context.Context, scope Scope) (any, error) {
				c, err := Resolve[*Config](ctx, scope)
				if err != nil {
					return nil, err
				}
				return NewCommandDispatcher(scope, c), nil
			},
		},
		{
			Contract:       typeOf[*QueryDispatcher](),
			Implementation: typeOf[*QueryDispatcher](),
			Lifetime:       cfg.QueryDispatcherLifetime,
			Factory: func(ctx context.Context, scope Scope) (any, error) {
				c, err := Resolve[*Config](ctx, scope)
				if err != nil {
					return nil, err
				}
				return NewQueryDispatcher(scope, c), nil
			},
		},
	}
	for _, reg := range registrations {
		if reg.Lifetime == PerMatchingScope {
			reg.MatchingTag = ScopeTag
		}
		if err := r.Register(reg); err != nil {
			return configurationError(reg.Implementation, nil, err)
		}
	}
	return nil
}
