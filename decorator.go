package cqrs

import "reflect"

// Decorator must be implemented for a type to qualify as a handler decorator.
// Decorate receives the resolved handler (possibly already decorated) and returns
// its replacement, which must implement the same contract.
type Decorator interface {
	Decorate(inner any) any
}

// Skipper may be implemented by decorators that must not be emitted to the container.
type Skipper interface {
	SkipRegistration() bool
}

// Namer may be implemented by decorators and interceptors to provide their identity.
// Without it, the Go type of the wrapper is its identity.
type Namer interface {
	WrapperName() string
}

type funcDecorator[H any] struct {
	name string
	fn   func(inner H) H
}

// DecorateFunc builds a named Decorator from a function wrapping the contract interface H,
// e.g. H = CommandHandler[CreateUser]. Handlers not implementing H are left untouched.
func DecorateFunc[H any](name string, fn func(inner H) H) Decorator {
	return &funcDecorator[H]{name: name, fn: fn}
}

func (d *funcDecorator[H]) Decorate(inner any) any {
	h, ok := inner.(H)
	if !ok || d.fn == nil {
		return inner
	}
	return d.fn(h)
}

func (d *funcDecorator[H]) WrapperName() string {
	return d.name
}

type namedInterceptor struct {
	Interceptor
	name string
}

func (n namedInterceptor) WrapperName() string {
	return n.name
}

// Named gives an interceptor an explicit identity, which is needed to bind
// two different InterceptorFunc values to the same handler type.
func Named(name string, i Interceptor) Interceptor {
	return namedInterceptor{Interceptor: i, name: name}
}

// wrapperName returns the identity used to detect duplicated decorators and interceptors.
func wrapperName(w any) string {
	if n, ok := w.(Namer); ok {
		return n.WrapperName()
	}
	return reflect.TypeOf(w).String()
}

func skipsRegistration(d Decorator) bool {
	s, ok := d.(Skipper)
	return ok && s.SkipRegistration()
}
