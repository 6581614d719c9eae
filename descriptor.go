package cqrs

import (
	"context"
	"reflect"
)

// Shape is one of the four handler contract shapes a concrete handler may satisfy.
// Shapes are declared at the registration call site instead of being discovered at runtime.
type Shape struct {
	category Category
	contract reflect.Type
	message  reflect.Type
	result   reflect.Type
	proxy    ProxyFactory
}

// CommandShape is the shape of handlers implementing CommandHandler[C].
func CommandShape[C Command]() Shape {
	return Shape{
		category: CategoryCommand,
		contract: typeOf[CommandHandler[C]](),
		message:  typeOf[C](),
		proxy: proxyFor(func(target CommandHandler[C], chain []Interceptor) CommandHandler[C] {
			return &commandProxy[C]{target: target, chain: chain}
		}),
	}
}

// CommandResultShape is the shape of handlers implementing CommandResultHandler[C, R].
func CommandResultShape[C Command, R any]() Shape {
	return Shape{
		category: CategoryCommand,
		contract: typeOf[CommandResultHandler[C, R]](),
		message:  typeOf[C](),
		result:   typeOf[R](),
		proxy: proxyFor(func(target CommandResultHandler[C, R], chain []Interceptor) CommandResultHandler[C, R] {
			return &commandResultProxy[C, R]{target: target, chain: chain}
		}),
	}
}

// QueryShape is the shape of handlers implementing QueryHandler[Q].
func QueryShape[Q Query]() Shape {
	return Shape{
		category: CategoryQuery,
		contract: typeOf[QueryHandler[Q]](),
		message:  typeOf[Q](),
		proxy: proxyFor(func(target QueryHandler[Q], chain []Interceptor) QueryHandler[Q] {
			return &queryProxy[Q]{target: target, chain: chain}
		}),
	}
}

// QueryResultShape is the shape of handlers implementing QueryResultHandler[Q, R].
func QueryResultShape[Q Query, R any]() Shape {
	return Shape{
		category: CategoryQuery,
		contract: typeOf[QueryResultHandler[Q, R]](),
		message:  typeOf[Q](),
		result:   typeOf[R](),
		proxy: proxyFor(func(target QueryResultHandler[Q, R], chain []Interceptor) QueryResultHandler[Q, R] {
			return &queryResultProxy[Q, R]{target: target, chain: chain}
		}),
	}
}

// Category returns whether the shape handles commands or queries.
func (s Shape) Category() Category { return s.category }

// Contract returns the handler interface type the shape is registered and resolved by.
func (s Shape) Contract() reflect.Type { return s.contract }

// HasResult reports whether the shape produces a result.
func (s Shape) HasResult() bool { return s.result != nil }

// DecoratorBinding pairs a decorator with its registration order.
type DecoratorBinding struct {
	Decorator Decorator
	Order     int
}

// InterceptorBinding pairs an interceptor with its registration order.
type InterceptorBinding struct {
	Interceptor Interceptor
	Order       int
}

// HandlerType describes a concrete handler implementation and its registration metadata.
// It is built with NewHandlerType and its chained setters, then handed to Register.
type HandlerType struct {
	impl         reflect.Type
	factory      Factory
	shapes       []Shape
	lifetime     Lifetime
	decorators   []DecoratorBinding
	interceptors []InterceptorBinding
	interception bool
	skip         bool
	err          error
}

// NewHandlerType describes the handler implementation H built by factory and the
// contract shapes it is expected to implement.
func NewHandlerType[H any](factory func(ctx context.Context, scope Scope) (H, error), shapes ...Shape) *HandlerType {
	ht := &HandlerType{
		impl:   typeOf[H](),
		shapes: shapes,
	}
	if factory == nil {
		ht.err = ErrNilFactory
		return ht
	}
	ht.factory = func(ctx context.Context, scope Scope) (any, error) {
		h, err := factory(ctx, scope)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
	return ht
}

// WithLifetime overrides the default handler lifetime for this type.
func (ht *HandlerType) WithLifetime(l Lifetime) *HandlerType {
	ht.lifetime = l
	return ht
}

// DecoratedBy binds a decorator. Decorators apply in ascending order, the
// highest order being the outermost.
func (ht *HandlerType) DecoratedBy(d Decorator, order int) *HandlerType {
	if d == nil {
		ht.err = ErrNilDecorator
		return ht
	}
	ht.decorators = append(ht.decorators, DecoratorBinding{Decorator: d, Order: order})
	return ht
}

// InterceptedBy binds an interceptor. Interceptors attach in descending order,
// the highest order being the outermost. They are ignored unless EnableInterception is called.
func (ht *HandlerType) InterceptedBy(i Interceptor, order int) *HandlerType {
	if i == nil {
		ht.err = ErrNilInterceptor
		return ht
	}
	ht.interceptors = append(ht.interceptors, InterceptorBinding{Interceptor: i, Order: order})
	return ht
}

// EnableInterception turns interception on for this type.
func (ht *HandlerType) EnableInterception() *HandlerType {
	ht.interception = true
	return ht
}

// SkipRegistration excludes the type from registration entirely.
func (ht *HandlerType) SkipRegistration() *HandlerType {
	ht.skip = true
	return ht
}

// Implementation returns the Go type of the handler implementation.
func (ht *HandlerType) Implementation() reflect.Type { return ht.impl }

// HandlerDescriptor is the immutable registration metadata of one handler type for one shape.
type HandlerDescriptor struct {
	Implementation reflect.Type
	Shape          Shape
	Lifetime       Lifetime
	Decorators     []DecoratorBinding
	// Interceptors is nil unless interception was enabled for the type.
	Interceptors []InterceptorBinding
	factory      Factory
}

// Describe builds the descriptors of ht, one per implemented shape, resolving
// the default lifetimes from cfg. A skipped type yields no descriptor.
func Describe(ht *HandlerType, cfg Config) ([]HandlerDescriptor, error) {
	if ht == nil {
		return nil, ErrNilHandlerType
	}
	if ht.skip {
		return nil, nil
	}
	if ht.err != nil {
		return nil, configurationError(ht.impl, nil, ht.err)
	}
	if len(ht.shapes) == 0 {
		return nil, configurationError(ht.impl, nil, ErrNoShapes)
	}

	descriptors := make([]HandlerDescriptor, 0, len(ht.shapes))
	for _, shape := range ht.shapes {
		if shape.contract == nil || !ht.impl.Implements(shape.contract) {
			return nil, configurationError(ht.impl, shape.contract, ErrShapeNotImplemented)
		}
		d := HandlerDescriptor{
			Implementation: ht.impl,
			Shape:          shape,
			Lifetime:       ht.lifetime,
			Decorators:     append([]DecoratorBinding(nil), ht.decorators...),
			factory:        ht.factory,
		}
		if d.Lifetime == 0 {
			d.Lifetime = cfg.defaultHandlerLifetime(shape.category)
		}
		if ht.interception {
			d.Interceptors = append(make([]InterceptorBinding, 0, len(ht.interceptors)), ht.interceptors...)
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}
