package container

import (
	"reflect"
	"strings"

	"github.com/io-da/cqrs"
)

// Error is used to create errors originating from the container.
type Error string

// Error returns the string message of the error.
func (e Error) Error() string {
	return string(e)
}

const (
	// ErrNotRegistered is matched by every NotRegisteredError.
	ErrNotRegistered = Error("container: contract not registered")
	// ErrDuplicateRegistration is matched by every DuplicateRegistrationError.
	ErrDuplicateRegistration = Error("container: contract already registered")
	// ErrNoMatchingScope is matched by every NoMatchingScopeError.
	ErrNoMatchingScope = Error("container: no matching scope")
	// ErrCyclicDependency is matched by every CycleError.
	ErrCyclicDependency = Error("container: cyclic dependency")
	// ErrScopeClosed will be returned when resolving from, or beginning a scope in, a closed scope.
	ErrScopeClosed = Error("container: scope is closed")
	// ErrFactoryPanic wraps panics recovered from factories.
	ErrFactoryPanic = Error("container: panic during factory call")
	// ErrNilContract will be returned when registering without a contract type.
	ErrNilContract = Error("container: nil contract type")
	// ErrMissingTag will be returned when a PerMatchingScope registration carries no tag.
	ErrMissingTag = Error("container: per matching scope registration without a tag")
	// ErrInterceptionDisabled will be returned when attaching an interceptor before enabling interception.
	ErrInterceptionDisabled = Error("container: interception is not enabled for this contract")
)

// NotRegisteredError is returned when resolving a contract without registration.
type NotRegisteredError struct {
	Contract reflect.Type
}

func (e NotRegisteredError) Error() string {
	return "container: no registration for " + typeName(e.Contract)
}

func (e NotRegisteredError) Unwrap() error {
	return ErrNotRegistered
}

// DuplicateRegistrationError is returned when a contract is registered twice.
type DuplicateRegistrationError struct {
	Contract reflect.Type
}

func (e DuplicateRegistrationError) Error() string {
	return "container: " + typeName(e.Contract) + " is already registered"
}

func (e DuplicateRegistrationError) Unwrap() error {
	return ErrDuplicateRegistration
}

// UnsupportedLifetimeError is returned when registering a lifetime the container was not configured for.
type UnsupportedLifetimeError struct {
	Lifetime cqrs.Lifetime
}

func (e UnsupportedLifetimeError) Error() string {
	return "container: lifetime " + e.Lifetime.String() + " is not supported"
}

func (e UnsupportedLifetimeError) Unwrap() error {
	return cqrs.ErrUnsupportedLifetime
}

// NoMatchingScopeError is returned when a PerMatchingScope contract is resolved
// outside of any scope carrying its tag.
type NoMatchingScopeError struct {
	Contract reflect.Type
	Tag      string
}

func (e NoMatchingScopeError) Error() string {
	return "container: no scope tagged " + e.Tag + " to resolve " + typeName(e.Contract) + " from"
}

func (e NoMatchingScopeError) Unwrap() error {
	return ErrNoMatchingScope
}

// CycleError is returned when a contract is resolved again while it is being built.
// Path lists the contracts being built, the repeated one last.
type CycleError struct {
	Path []reflect.Type
}

func (e CycleError) Error() string {
	names := make([]string, len(e.Path))
	for i, t := range e.Path {
		names[i] = typeName(t)
	}
	return "container: cyclic dependency " + strings.Join(names, " -> ")
}

func (e CycleError) Unwrap() error {
	return ErrCyclicDependency
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
