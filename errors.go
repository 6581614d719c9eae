package cqrs

import (
	"fmt"
	"reflect"
	"strconv"
)

// Error is used to create errors originating from the registry and the dispatchers.
type Error string

// Error returns the string message of the error.
func (e Error) Error() string {
	return string(e)
}

const (
	// ErrUnknownFailure is carried by results created with Fail(nil).
	ErrUnknownFailure = Error("cqrs: unknown failure")
	// ErrNilScope will be returned when dispatching without a usable resolution scope.
	ErrNilScope = Error("cqrs: nil resolution scope")
	// ErrNilDispatcher will be returned when dispatching through a nil dispatcher.
	ErrNilDispatcher = Error("cqrs: nil dispatcher")
	// ErrNilRegistrar will be returned when registering against a nil container adapter.
	ErrNilRegistrar = Error("cqrs: nil registrar")
	// ErrNilHandlerType will be returned when a nil handler type is provided for registration.
	ErrNilHandlerType = Error("cqrs: nil handler type")
	// ErrNilFactory will be returned when a handler type is described without a factory.
	ErrNilFactory = Error("cqrs: nil handler factory")
	// ErrNoShapes will be returned when a handler type declares no contract shape.
	ErrNoShapes = Error("cqrs: handler type declares no contract shape")
	// ErrShapeNotImplemented will be returned when a handler type does not implement a shape it declares.
	ErrShapeNotImplemented = Error("cqrs: handler type does not implement the declared shape")
	// ErrOneHandlerPerContract will be returned when more than one handler is registered for the same contract shape.
	ErrOneHandlerPerContract = Error("cqrs: there can only be one handler per contract")
	// ErrDuplicateDecoratorOrder will be returned when two decorators of one handler share an order.
	ErrDuplicateDecoratorOrder = Error("cqrs: duplicated decorator registration order")
	// ErrDuplicateDecoratorType will be returned when a decorator is bound twice to one handler.
	ErrDuplicateDecoratorType = Error("cqrs: duplicated decorator type")
	// ErrDuplicateInterceptorOrder will be returned when two interceptors of one handler share an order.
	ErrDuplicateInterceptorOrder = Error("cqrs: duplicated interceptor registration order")
	// ErrDuplicateInterceptorType will be returned when an interceptor is bound twice to one handler.
	ErrDuplicateInterceptorType = Error("cqrs: duplicated interceptor type")
	// ErrUnsupportedLifetime will be returned when the container adapter cannot provide a lifetime.
	ErrUnsupportedLifetime = Error("cqrs: lifetime not supported by this adapter")
	// ErrInvalidLifetime will be returned for lifetime values outside the known set.
	ErrInvalidLifetime = Error("cqrs: invalid lifetime")
	// ErrNilDecorator will be returned when a nil decorator is bound to a handler type.
	ErrNilDecorator = Error("cqrs: nil decorator")
	// ErrNilInterceptor will be returned when a nil interceptor is bound to a handler type.
	ErrNilInterceptor = Error("cqrs: nil interceptor")
	// ErrUnexpectedHandler will be returned when the container resolves a value that does not implement the requested contract.
	ErrUnexpectedHandler = Error("cqrs: resolved handler does not implement the requested contract")
	// ErrInterceptorResult will be returned when an interceptor replaces a result with one of another type.
	ErrInterceptorResult = Error("cqrs: interceptor returned a result of an unexpected type")
	// ErrPendingCanceled will be returned when awaiting a pending dispatch is canceled.
	ErrPendingCanceled = Error("cqrs: awaiting the pending dispatch was canceled")
	// ErrEmptyAwaitList will be returned when attempting to await an empty list.
	ErrEmptyAwaitList = Error("cqrs: await list is empty")
)

// ConfigurationError is returned during registration when the handler set is invalid.
// It is fatal: registration stops before anything is emitted to the container.
type ConfigurationError struct {
	// HandlerType names the offending implementation type.
	HandlerType string
	// Contract names the contract shape involved, when there is one.
	Contract string
	// Err is the underlying cause, usually one of the cqrs sentinel errors.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	// Example: cqrs: duplicated decorator registration order on type *app.CreateUserHandler
	msg := e.Err.Error() + " on type " + e.HandlerType
	if e.Contract != "" {
		msg += " (contract " + e.Contract + ")"
	}
	return msg
}

// Unwrap allows errors.Is and errors.As on the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configurationError(handlerType reflect.Type, contract reflect.Type, err error) *ConfigurationError {
	ce := &ConfigurationError{HandlerType: typeName(handlerType), Err: err}
	if contract != nil {
		ce.Contract = typeName(contract)
	}
	return ce
}

// FailureKind classifies recovered dispatch failures.
type FailureKind uint8

const (
	// ResolutionFailure means no usable handler could be obtained for the contract.
	ResolutionFailure FailureKind = iota + 1
	// HandlerExecutionFailure means the handler panicked while handling the contract.
	HandlerExecutionFailure
	// ScopeFailure means a resolution scope could not be created for the call.
	ScopeFailure
)

func (k FailureKind) String() string {
	switch k {
	case ResolutionFailure:
		return "resolution"
	case HandlerExecutionFailure:
		return "handler_execution"
	case ScopeFailure:
		return "scope"
	}
	return "unknown"
}

// DispatchError is the structured failure carried by a result when dispatching failed
// before or while the handler ran. Failures returned by a handler as a Result are
// passed through unchanged and are never wrapped.
type DispatchError struct {
	Kind     FailureKind
	Category Category
	// Contract is the Go type of the dispatched contract.
	Contract string
	// Identifier is the identifier reported by the dispatched contract.
	Identifier Identifier
	// Err is the underlying cause.
	Err error
	// Panic holds the recovered value when the failure was a panic.
	Panic any
	// Stack holds the goroutine stack captured when a panic was recovered.
	Stack []byte
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	// Example: cqrs: resolution failure while dispatching command *app.CreateUser ("create-user"): ...
	return "cqrs: " + e.Kind.String() + " failure while dispatching " + e.Category.String() +
		" " + e.Contract + " (" + strconv.Quote(string(e.Identifier)) + "): " + e.Err.Error()
}

// Unwrap allows errors.Is and errors.As on the underlying cause.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panic.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
