package cqrs

import "context"

// ErrorHandler must be implemented for a type to qualify as a dispatch error handler.
// It receives every failure recovered by the dispatchers.
type ErrorHandler interface {
	Handle(ctx context.Context, contract Contract, err error)
}

// ErrorHandlerFunc adapts a function to the ErrorHandler interface.
type ErrorHandlerFunc func(ctx context.Context, contract Contract, err error)

// Handle implements ErrorHandler.
func (fn ErrorHandlerFunc) Handle(ctx context.Context, contract Contract, err error) {
	fn(ctx, contract, err)
}
