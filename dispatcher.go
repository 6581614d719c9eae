package cqrs

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// dispatcher is the engine shared by the command and the query dispatchers.
type dispatcher struct {
	category Category
	// ambient is the scope the dispatcher was resolved from.
	ambient Scope
	cfg     *Config
	tel     *telemetry
}

func newDispatcher(category Category, ambient Scope, cfg *Config) dispatcher {
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}
	return dispatcher{
		category: category,
		ambient:  ambient,
		cfg:      cfg,
		tel:      newTelemetry(cfg),
	}
}

// call holds the state of one dispatch.
type call struct {
	d        *dispatcher
	id       uuid.UUID
	contract Contract
	span     trace.Span
	start    time.Time
}

// target selects the scope a dispatch resolves from: the explicit one when
// explicit is set, otherwise the outcome of the scope policy.
type target struct {
	scope    Scope
	explicit bool
}

func ambientTarget() target { return target{} }

func explicitTarget(scope Scope) target { return target{scope: scope, explicit: true} }

// dispatch resolves the handler H from the scope selected by t and invokes it.
// It never panics and never returns an error other than through the result.
func dispatch[H any, T any](ctx context.Context, d *dispatcher, contract Contract, t target, invoke func(ctx context.Context, h H) Result[T]) Result[T] {
	if d == nil {
		return Fail[T](ErrNilDispatcher)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, c := d.begin(ctx, contract)
	res, failure := execute(ctx, c, t, invoke)
	c.end(ctx, res, failure)
	return res
}

func execute[H any, T any](ctx context.Context, c *call, t target, invoke func(ctx context.Context, h H) Result[T]) (res Result[T], failure *DispatchError) {
	stage := ScopeFailure
	defer func() {
		if r := recover(); r != nil {
			failure = c.failure(stage, PanicError{Value: r}, r, debug.Stack())
			res = Fail[T](failure)
		}
	}()

	scope, created, err := c.acquire(ctx, t)
	if err != nil {
		failure = c.failure(ScopeFailure, err, nil, nil)
		return Fail[T](failure), failure
	}
	if created {
		// released exactly once, also when the handler panics
		defer c.release(ctx, scope)
	}

	stage = ResolutionFailure
	h, err := Resolve[H](ctx, scope)
	if err != nil {
		failure = c.failure(ResolutionFailure, err, nil, nil)
		return Fail[T](failure), failure
	}

	stage = HandlerExecutionFailure
	return invoke(ctx, h), nil
}

func (d *dispatcher) begin(ctx context.Context, contract Contract) (context.Context, *call) {
	c := &call{
		d:        d,
		id:       uuid.New(),
		contract: contract,
		start:    time.Now(),
	}
	ctx, c.span = d.tel.tracer.Start(ctx, "cqrs.dispatch "+d.category.String(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(attrCategory, d.category.String()),
			attribute.String(attrContract, contractName(contract)),
			attribute.String(attrIdentifier, string(identify(contract))),
			attribute.String(attrDispatchID, c.id.String()),
		),
	)
	return ctx, c
}

// acquire returns the scope the handler is resolved from.
// A created scope must be released by the caller.
func (c *call) acquire(ctx context.Context, t target) (scope Scope, created bool, err error) {
	if t.explicit {
		if t.scope == nil {
			return nil, false, ErrNilScope
		}
		c.span.SetAttributes(attribute.String(attrScope, "explicit"))
		return t.scope, false, nil
	}

	ambient := c.d.ambient
	if ambient == nil {
		return nil, false, ErrNilScope
	}
	decision := c.d.cfg.Scopes.Decide(c.d.category, ambient.IsRoot())
	c.span.SetAttributes(attribute.String(attrScope, decision.String()))
	if decision == UseAmbientScope {
		return ambient, false, nil
	}
	scope, err = ambient.BeginScope(ctx, ScopeTag)
	if err != nil {
		return nil, false, err
	}
	if scope == nil {
		return nil, false, ErrNilScope
	}
	return scope, true, nil
}

func (c *call) release(ctx context.Context, scope Scope) {
	defer func() {
		if r := recover(); r != nil {
			c.d.cfg.logger().ErrorContext(ctx, "panic while releasing the dispatch scope",
				"dispatch_id", c.id.String(),
				"error", PanicError{Value: r},
			)
		}
	}()
	if err := scope.Close(); err != nil {
		c.d.cfg.logger().WarnContext(ctx, "failed to release the dispatch scope",
			"dispatch_id", c.id.String(),
			"error", err,
		)
	}
}

func (c *call) failure(kind FailureKind, err error, recovered any, stack []byte) *DispatchError {
	return &DispatchError{
		Kind:       kind,
		Category:   c.d.category,
		Contract:   contractName(c.contract),
		Identifier: identify(c.contract),
		Err:        err,
		Panic:      recovered,
		Stack:      stack,
	}
}

func (c *call) end(ctx context.Context, env Envelope, failure *DispatchError) {
	defer c.span.End()

	outcome := "success"
	attrs := []attribute.KeyValue{attribute.String(attrCategory, c.d.category.String())}
	if !env.Succeeded() {
		outcome = "failure"
		c.span.RecordError(env.Err())
		c.span.SetStatus(codes.Error, env.Err().Error())
	}
	if failure != nil {
		attrs = append(attrs, attribute.String(attrKind, failure.Kind.String()))
		c.span.SetAttributes(attribute.String(attrKind, failure.Kind.String()))
		c.report(ctx, failure)
	}
	attrs = append(attrs, attribute.String(attrOutcome, outcome))

	set := metric.WithAttributes(attrs...)
	c.d.tel.count.Add(ctx, 1, set)
	c.d.tel.duration.Record(ctx, float64(time.Since(c.start))/float64(time.Millisecond), set)
}

// report logs a recovered failure and hands it to the configured error handlers.
func (c *call) report(ctx context.Context, failure *DispatchError) {
	args := []any{
		"contract", failure.Contract,
		"identifier", string(failure.Identifier),
		"dispatch_id", c.id.String(),
		"kind", failure.Kind.String(),
		"error", failure.Err,
	}
	if failure.Stack != nil {
		args = append(args, "stack", string(failure.Stack))
	}
	c.d.cfg.logger().ErrorContext(ctx, "exception while dispatching a "+c.d.category.String(), args...)

	for _, hdl := range c.d.cfg.ErrorHandlers {
		if hdl != nil {
			c.handleError(ctx, hdl, failure)
		}
	}
}

func (c *call) handleError(ctx context.Context, hdl ErrorHandler, failure *DispatchError) {
	defer func() {
		if r := recover(); r != nil {
			c.d.cfg.logger().ErrorContext(ctx, "panic in dispatch error handler",
				"dispatch_id", c.id.String(),
				"error", PanicError{Value: r},
			)
		}
	}()
	hdl.Handle(ctx, c.contract, failure)
}
