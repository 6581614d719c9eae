package cqrs

import (
	"context"
	"fmt"
)

// Pending is returned by Go and holds the result of a dispatch running in its own goroutine.
type Pending[T any] struct {
	res     Result[T]
	pending chan struct{}
}

// Go runs fn, usually a Dispatch call, in a new goroutine.
// A panic in fn is recovered into a failed result carrying a PanicError.
func Go[T any](fn func() Result[T]) *Pending[T] {
	p := &Pending[T]{pending: make(chan struct{})}
	go func() {
		defer close(p.pending)
		defer func() {
			if r := recover(); r != nil {
				p.res = Fail[T](PanicError{Value: r})
			}
		}()
		p.res = fn()
	}()
	return p
}

//------Fetch Data------//

// Await waits for the result. When ctx ends first, a failed result wrapping
// ErrPendingCanceled and the context error is returned; the dispatch keeps running.
func (p *Pending[T]) Await(ctx context.Context) Result[T] {
	if p == nil {
		return Fail[T](ErrUnknownFailure)
	}
	select {
	case <-p.pending:
		return p.res
	default:
	}
	select {
	case <-p.pending:
		return p.res
	case <-ctx.Done():
		return Fail[T](fmt.Errorf("%w: %w", ErrPendingCanceled, ctx.Err()))
	}
}

// Done is closed once the result is available.
func (p *Pending[T]) Done() <-chan struct{} {
	if p == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return p.pending
}
