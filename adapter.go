package cqrs

import (
	"context"
	"fmt"
	"reflect"
)

// ScopeTag is the tag carried by the resolution scopes the dispatchers create.
// Registrations with the PerMatchingScope lifetime are matched against it.
const ScopeTag = "cqrs"

// Factory builds an instance for a registration. The scope is the one the
// instance is being resolved for, so factories may resolve their own dependencies from it.
type Factory func(ctx context.Context, scope Scope) (any, error)

// Registration describes one container registration emitted by Register.
type Registration struct {
	// Contract is the type the instance is resolved by.
	Contract reflect.Type
	// Implementation is the concrete type built by Factory. Used for diagnostics.
	Implementation reflect.Type
	Lifetime       Lifetime
	// MatchingTag is the scope tag PerMatchingScope registrations are shared within.
	MatchingTag string
	Factory     Factory
}

// Registrar is the registration side of a container adapter.
type Registrar interface {
	// Supports reports whether the adapter can provide the lifetime.
	Supports(l Lifetime) bool
	// Register binds a factory to a contract with the given lifetime.
	Register(reg Registration) error
	// RegisterDecorator wraps every instance resolved for contract with d.
	// Decorators registered later wrap the ones registered earlier.
	RegisterDecorator(contract reflect.Type, d Decorator, order int) error
	// EnableInterception makes the instances resolved for contract go through
	// a proxy built by proxy, carrying the attached interceptors.
	EnableInterception(contract reflect.Type, proxy ProxyFactory) error
	// AttachInterceptor appends i to the interception chain of contract.
	// The first interceptor attached is the outermost.
	AttachInterceptor(contract reflect.Type, i Interceptor) error
}

// Scope is the resolution side of a container adapter.
type Scope interface {
	// Resolve returns the instance registered for contract or an error if there is none.
	Resolve(ctx context.Context, contract reflect.Type) (any, error)
	// BeginScope creates a child scope carrying tag. The caller must Close it.
	BeginScope(ctx context.Context, tag string) (Scope, error)
	// IsRoot reports whether this is the container's root scope.
	IsRoot() bool
	// Close releases the scope and the instances it owns.
	Close() error
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Resolve resolves the instance registered for T from scope.
func Resolve[T any](ctx context.Context, scope Scope) (T, error) {
	var zero T
	if scope == nil {
		return zero, ErrNilScope
	}
	contract := typeOf[T]()
	inst, err := scope.Resolve(ctx, contract)
	if err != nil {
		return zero, err
	}
	typed, ok := inst.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s resolved as %T", ErrUnexpectedHandler, contract, inst)
	}
	return typed, nil
}
