package cqrs

import "context"

// CommandDispatcher dispatches commands to their handlers.
// It is registered by Register and should be resolved from the scope it is used in,
// which becomes its ambient scope.
type CommandDispatcher struct {
	d dispatcher
}

// NewCommandDispatcher instantiates a command dispatcher bound to the ambient scope.
// A nil cfg means DefaultConfig.
func NewCommandDispatcher(ambient Scope, cfg *Config) *CommandDispatcher {
	return &CommandDispatcher{d: newDispatcher(CategoryCommand, ambient, cfg)}
}

// CommandDispatcherFrom resolves the command dispatcher registered in the scope's container.
func CommandDispatcherFrom(ctx context.Context, scope Scope) (*CommandDispatcher, error) {
	return Resolve[*CommandDispatcher](ctx, scope)
}

// Scope returns the ambient scope of the dispatcher.
func (cd *CommandDispatcher) Scope() Scope {
	if cd == nil {
		return nil
	}
	return cd.d.ambient
}

func (cd *CommandDispatcher) engine() *dispatcher {
	if cd == nil {
		return nil
	}
	return &cd.d
}

// DispatchCommand handles cmd with its CommandHandler[C], creating a scope
// for the call when the scope policy requires one.
func DispatchCommand[C Command](ctx context.Context, cd *CommandDispatcher, cmd C) Result[Void] {
	return dispatch(ctx, cd.engine(), cmd, ambientTarget(), func(ctx context.Context, h CommandHandler[C]) Result[Void] {
		return h.HandleCommand(ctx, cmd)
	})
}

// DispatchCommandWithResult handles cmd with its CommandResultHandler[C, R].
func DispatchCommandWithResult[C Command, R any](ctx context.Context, cd *CommandDispatcher, cmd C) Result[R] {
	return dispatch(ctx, cd.engine(), cmd, ambientTarget(), func(ctx context.Context, h CommandResultHandler[C, R]) Result[R] {
		return h.HandleCommandWithResult(ctx, cmd)
	})
}

// DispatchCommandInScope handles cmd with the CommandHandler[C] resolved from scope.
// The scope policy is not consulted.
func DispatchCommandInScope[C Command](ctx context.Context, cd *CommandDispatcher, scope Scope, cmd C) Result[Void] {
	return dispatch(ctx, cd.engine(), cmd, explicitTarget(scope), func(ctx context.Context, h CommandHandler[C]) Result[Void] {
		return h.HandleCommand(ctx, cmd)
	})
}

// DispatchCommandWithResultInScope handles cmd with the CommandResultHandler[C, R] resolved from scope.
func DispatchCommandWithResultInScope[C Command, R any](ctx context.Context, cd *CommandDispatcher, scope Scope, cmd C) Result[R] {
	return dispatch(ctx, cd.engine(), cmd, explicitTarget(scope), func(ctx context.Context, h CommandResultHandler[C, R]) Result[R] {
		return h.HandleCommandWithResult(ctx, cmd)
	})
}
