package cqrs

import "context"

// CommandHandler must be implemented for a type to qualify as a handler of a result-less command.
type CommandHandler[C Command] interface {
	HandleCommand(ctx context.Context, cmd C) Result[Void]
}

// CommandResultHandler must be implemented for a type to qualify as a handler of a command producing R.
type CommandResultHandler[C Command, R any] interface {
	HandleCommandWithResult(ctx context.Context, cmd C) Result[R]
}

// QueryHandler must be implemented for a type to qualify as a handler of a result-less query.
type QueryHandler[Q Query] interface {
	HandleQuery(ctx context.Context, qry Q) Result[Void]
}

// QueryResultHandler must be implemented for a type to qualify as a handler of a query producing R.
type QueryResultHandler[Q Query, R any] interface {
	HandleQueryWithResult(ctx context.Context, qry Q) Result[R]
}
