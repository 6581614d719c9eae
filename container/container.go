// Package container is an in-memory container adapter for the cqrs registry.
// It implements cqrs.Registrar for registration and cqrs.Scope for resolution.
//
//	c := container.New(container.WithMatchingScopes())
//	if err := cqrs.Register(c, nil, handlerTypes...); err != nil {
//		return err
//	}
//	dispatcher, err := cqrs.CommandDispatcherFrom(ctx, c.Root())
package container

import (
	"context"
	"reflect"
	"sync"

	"github.com/io-da/cqrs"
)

// Option configures a Container.
type Option func(*Container)

// WithMatchingScopes enables the cqrs.PerMatchingScope lifetime.
func WithMatchingScopes() Option {
	return func(c *Container) {
		c.matching = true
	}
}

// WithOwnedInstances enables the cqrs.PerOwned lifetime.
func WithOwnedInstances() Option {
	return func(c *Container) {
		c.owned = true
	}
}

type registration struct {
	cqrs.Registration
	decorators   []cqrs.Decorator
	proxy        cqrs.ProxyFactory
	interceptors []cqrs.Interceptor
}

// Container holds the registrations and the root scope.
// Registrations are expected to happen before the first resolution,
// but both are safe for concurrent use.
type Container struct {
	mu            sync.RWMutex
	registrations map[reflect.Type]*registration
	matching      bool
	owned         bool
	scopes        *counter
	root          *Scope
}

// New instantiates a Container.
func New(opts ...Option) *Container {
	c := &Container{
		registrations: make(map[reflect.Type]*registration),
		scopes:        newCounter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.root = newScope(c, nil, "")
	return c
}

// Supports implements cqrs.Registrar.
func (c *Container) Supports(l cqrs.Lifetime) bool {
	switch l {
	case cqrs.Singleton, cqrs.PerScope, cqrs.PerDependency:
		return true
	case cqrs.PerMatchingScope:
		return c.matching
	case cqrs.PerOwned:
		return c.owned
	}
	return false
}

// Register implements cqrs.Registrar.
func (c *Container) Register(reg cqrs.Registration) error {
	if reg.Contract == nil {
		return ErrNilContract
	}
	if reg.Factory == nil {
		return cqrs.ErrNilFactory
	}
	if !c.Supports(reg.Lifetime) {
		return UnsupportedLifetimeError{Lifetime: reg.Lifetime}
	}
	if reg.Lifetime == cqrs.PerMatchingScope && reg.MatchingTag == "" {
		return ErrMissingTag
	}
	if reg.Implementation == nil {
		reg.Implementation = reg.Contract
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.registrations[reg.Contract]; exists {
		return DuplicateRegistrationError{Contract: reg.Contract}
	}
	c.registrations[reg.Contract] = &registration{Registration: reg}
	return nil
}

// RegisterDecorator implements cqrs.Registrar.
// Decorators registered later wrap the ones registered earlier.
func (c *Container) RegisterDecorator(contract reflect.Type, d cqrs.Decorator, _ int) error {
	if d == nil {
		return cqrs.ErrNilDecorator
	}
	return c.update(contract, func(reg *registration) error {
		reg.decorators = append(reg.decorators, d)
		return nil
	})
}

// EnableInterception implements cqrs.Registrar.
func (c *Container) EnableInterception(contract reflect.Type, proxy cqrs.ProxyFactory) error {
	if proxy == nil {
		return ErrInterceptionDisabled
	}
	return c.update(contract, func(reg *registration) error {
		reg.proxy = proxy
		return nil
	})
}

// AttachInterceptor implements cqrs.Registrar.
// The first interceptor attached is the outermost.
func (c *Container) AttachInterceptor(contract reflect.Type, i cqrs.Interceptor) error {
	if i == nil {
		return cqrs.ErrNilInterceptor
	}
	return c.update(contract, func(reg *registration) error {
		if reg.proxy == nil {
			return ErrInterceptionDisabled
		}
		reg.interceptors = append(reg.interceptors, i)
		return nil
	})
}

func (c *Container) update(contract reflect.Type, fn func(reg *registration) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	reg, ok := c.registrations[contract]
	if !ok {
		return NotRegisteredError{Contract: contract}
	}
	return fn(reg)
}

// lookup returns a snapshot of the registration of contract.
func (c *Container) lookup(contract reflect.Type) (registration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reg, ok := c.registrations[contract]
	if !ok {
		return registration{}, false
	}
	snapshot := *reg
	snapshot.decorators = append([]cqrs.Decorator(nil), reg.decorators...)
	snapshot.interceptors = append([]cqrs.Interceptor(nil), reg.interceptors...)
	return snapshot, true
}

// Registered reports whether contract has a registration.
func (c *Container) Registered(contract reflect.Type) bool {
	_, ok := c.lookup(contract)
	return ok
}

// Root returns the root scope. Singletons are owned by it.
func (c *Container) Root() *Scope {
	return c.root
}

// ActiveScopes returns the number of child scopes that were begun and not closed yet.
func (c *Container) ActiveScopes() int {
	return c.scopes.value()
}

// Close closes the root scope, releasing the singletons.
func (c *Container) Close() error {
	return c.root.Close()
}

// Provide registers the factory of T, resolved by T itself.
func Provide[T any](c *Container, l cqrs.Lifetime, factory func(ctx context.Context, scope cqrs.Scope) (T, error)) error {
	if factory == nil {
		return cqrs.ErrNilFactory
	}
	contract := reflect.TypeOf((*T)(nil)).Elem()
	return c.Register(cqrs.Registration{
		Contract:       contract,
		Implementation: contract,
		Lifetime:       l,
		MatchingTag:    cqrs.ScopeTag,
		Factory: func(ctx context.Context, scope cqrs.Scope) (any, error) {
			return factory(ctx, scope)
		},
	})
}

// ProvideValue registers v as the singleton instance of T.
func ProvideValue[T any](c *Container, v T) error {
	return Provide(c, cqrs.Singleton, func(context.Context, cqrs.Scope) (T, error) {
		return v, nil
	})
}
