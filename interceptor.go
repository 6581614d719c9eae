package cqrs

import (
	"context"
	"log/slog"
	"time"
)

// Invocation describes the handler call an interceptor is wrapped around.
type Invocation struct {
	Category Category
	// Contract is the command or query being handled.
	Contract Contract
	// Method is the name of the handler method being invoked.
	Method string
	// Target is the intercepted handler.
	Target any
}

// Proceed continues an intercepted invocation with the next interceptor, or the handler itself.
type Proceed func(ctx context.Context) Envelope

// Interceptor must be implemented for a type to qualify as a handler interceptor.
// An interceptor may act before and after proceeding, replace the context passed
// down the chain, or short-circuit by returning its own failed Result.
type Interceptor interface {
	Intercept(ctx context.Context, inv Invocation, proceed Proceed) Envelope
}

// InterceptorFunc adapts a function to the Interceptor interface.
// Being a func type, it is identified by name when bound to a handler type; see Named.
type InterceptorFunc func(ctx context.Context, inv Invocation, proceed Proceed) Envelope

// Intercept implements Interceptor.
func (fn InterceptorFunc) Intercept(ctx context.Context, inv Invocation, proceed Proceed) Envelope {
	return fn(ctx, inv, proceed)
}

// ProxyFactory builds an interception proxy around target implementing the same contract.
// The first interceptor of chain is the outermost.
type ProxyFactory func(target any, chain []Interceptor) (any, error)

func intercept[T any](ctx context.Context, chain []Interceptor, inv Invocation, call func(ctx context.Context) Result[T]) Result[T] {
	proceed := Proceed(func(ctx context.Context) Envelope {
		return call(ctx)
	})
	for i := len(chain) - 1; i >= 0; i-- {
		next, ic := proceed, chain[i]
		proceed = func(ctx context.Context) Envelope {
			return ic.Intercept(ctx, inv, next)
		}
	}

	env := proceed(ctx)
	if res, ok := env.(Result[T]); ok {
		return res
	}
	if env != nil && env.Err() != nil {
		return Fail[T](env.Err())
	}
	return Fail[T](ErrInterceptorResult)
}

//------Proxies------//

type commandProxy[C Command] struct {
	target CommandHandler[C]
	chain  []Interceptor
}

func (p *commandProxy[C]) HandleCommand(ctx context.Context, cmd C) Result[Void] {
	inv := Invocation{Category: CategoryCommand, Contract: cmd, Method: "HandleCommand", Target: p.target}
	return intercept(ctx, p.chain, inv, func(ctx context.Context) Result[Void] {
		return p.target.HandleCommand(ctx, cmd)
	})
}

type commandResultProxy[C Command, R any] struct {
	target CommandResultHandler[C, R]
	chain  []Interceptor
}

func (p *commandResultProxy[C, R]) HandleCommandWithResult(ctx context.Context, cmd C) Result[R] {
	inv := Invocation{Category: CategoryCommand, Contract: cmd, Method: "HandleCommandWithResult", Target: p.target}
	return intercept(ctx, p.chain, inv, func(ctx context.Context) Result[R] {
		return p.target.HandleCommandWithResult(ctx, cmd)
	})
}

type queryProxy[Q Query] struct {
	target QueryHandler[Q]
	chain  []Interceptor
}

func (p *queryProxy[Q]) HandleQuery(ctx context.Context, qry Q) Result[Void] {
	inv := Invocation{Category: CategoryQuery, Contract: qry, Method: "HandleQuery", Target: p.target}
	return intercept(ctx, p.chain, inv, func(ctx context.Context) Result[Void] {
		return p.target.HandleQuery(ctx, qry)
	})
}

type queryResultProxy[Q Query, R any] struct {
	target QueryResultHandler[Q, R]
	chain  []Interceptor
}

func (p *queryResultProxy[Q, R]) HandleQueryWithResult(ctx context.Context, qry Q) Result[R] {
	inv := Invocation{Category: CategoryQuery, Contract: qry, Method: "HandleQueryWithResult", Target: p.target}
	return intercept(ctx, p.chain, inv, func(ctx context.Context) Result[R] {
		return p.target.HandleQueryWithResult(ctx, qry)
	})
}

// proxyFor builds the ProxyFactory of the contract interface H.
func proxyFor[H any](wrap func(target H, chain []Interceptor) H) ProxyFactory {
	return func(target any, chain []Interceptor) (any, error) {
		h, ok := target.(H)
		if !ok {
			return nil, ErrUnexpectedHandler
		}
		return wrap(h, chain), nil
	}
}

//------Built-in interceptors------//

// LoggingInterceptor logs every intercepted handler call at debug level,
// and failed outcomes at warn level.
type LoggingInterceptor struct {
	Logger *slog.Logger
}

// Intercept implements Interceptor.
func (li LoggingInterceptor) Intercept(ctx context.Context, inv Invocation, proceed Proceed) Envelope {
	logger := li.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	env := proceed(ctx)
	attrs := []any{
		"category", inv.Category.String(),
		"contract", string(identify(inv.Contract)),
		"method", inv.Method,
		"duration", time.Since(start),
	}
	if env != nil && env.Err() != nil {
		logger.WarnContext(ctx, "handler returned a failure", append(attrs, "error", env.Err())...)
		return env
	}
	logger.DebugContext(ctx, "handler succeeded", attrs...)
	return env
}
