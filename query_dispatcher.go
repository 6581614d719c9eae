package cqrs

import "context"

// QueryDispatcher dispatches queries to their handlers.
// It is registered by Register and should be resolved from the scope it is used in,
// which becomes its ambient scope.
type QueryDispatcher struct {
	d dispatcher
}

// NewQueryDispatcher instantiates a query dispatcher bound to the ambient scope.
// A nil cfg means DefaultConfig.
func NewQueryDispatcher(ambient Scope, cfg *Config) *QueryDispatcher {
	return &QueryDispatcher{d: newDispatcher(CategoryQuery, ambient, cfg)}
}

// QueryDispatcherFrom resolves the query dispatcher registered in the scope's container.
func QueryDispatcherFrom(ctx context.Context, scope Scope) (*QueryDispatcher, error) {
	return Resolve[*QueryDispatcher](ctx, scope)
}

// Scope returns the ambient scope of the dispatcher.
func (qd *QueryDispatcher) Scope() Scope {
	if qd == nil {
		return nil
	}
	return qd.d.ambient
}

func (qd *QueryDispatcher) engine() *dispatcher {
	if qd == nil {
		return nil
	}
	return &qd.d
}

// DispatchQuery handles qry with its QueryHandler[Q], creating a scope
// for the call when the scope policy requires one.
func DispatchQuery[Q Query](ctx context.Context, qd *QueryDispatcher, qry Q) Result[Void] {
	return dispatch(ctx, qd.engine(), qry, ambientTarget(), func(ctx context.Context, h QueryHandler[Q]) Result[Void] {
		return h.HandleQuery(ctx, qry)
	})
}

// DispatchQueryWithResult handles qry with its QueryResultHandler[Q, R].
func DispatchQueryWithResult[Q Query, R any](ctx context.Context, qd *QueryDispatcher, qry Q) Result[R] {
	return dispatch(ctx, qd.engine(), qry, ambientTarget(), func(ctx context.Context, h QueryResultHandler[Q, R]) Result[R] {
		return h.HandleQueryWithResult(ctx, qry)
	})
}

// DispatchQueryInScope handles qry with the QueryHandler[Q] resolved from scope.
// The scope policy is not consulted.
func DispatchQueryInScope[Q Query](ctx context.Context, qd *QueryDispatcher, scope Scope, qry Q) Result[Void] {
	return dispatch(ctx, qd.engine(), qry, explicitTarget(scope), func(ctx context.Context, h QueryHandler[Q]) Result[Void] {
		return h.HandleQuery(ctx, qry)
	})
}

// DispatchQueryWithResultInScope handles qry with the QueryResultHandler[Q, R] resolved from scope.
func DispatchQueryWithResultInScope[Q Query, R any](ctx context.Context, qd *QueryDispatcher, scope Scope, qry Q) Result[R] {
	return dispatch(ctx, qd.engine(), qry, explicitTarget(scope), func(ctx context.Context, h QueryResultHandler[Q, R]) Result[R] {
		return h.HandleQueryWithResult(ctx, qry)
	})
}
