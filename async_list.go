package cqrs

import (
	"context"
	"errors"
	"sync"
)

// Arrival is a result delivered by AwaitIterator, with the index of its Pending.
type Arrival[T any] struct {
	Index  int
	Result Result[T]
}

// AwaitAll waits for every pending dispatch and returns the results in the order
// of the arguments, along with the failures joined into one error.
func AwaitAll[T any](ctx context.Context, pending ...*Pending[T]) ([]Result[T], error) {
	if len(pending) == 0 {
		return nil, ErrEmptyAwaitList
	}
	results := make([]Result[T], len(pending))
	errs := make([]error, len(pending))
	for i, p := range pending {
		results[i] = p.Await(ctx)
		errs[i] = results[i].Err()
	}
	return results, errors.Join(errs...)
}

// AwaitIterator delivers the results of the pending dispatches in order of arrival.
// The channel is closed once every result was delivered or ctx ended.
func AwaitIterator[T any](ctx context.Context, pending ...*Pending[T]) (<-chan Arrival[T], error) {
	if len(pending) == 0 {
		return nil, ErrEmptyAwaitList
	}
	arrivals := make(chan Arrival[T], len(pending))
	var wg sync.WaitGroup
	for i, p := range pending {
		wg.Add(1)
		go func() {
			defer wg.Done()
			arrivals <- Arrival[T]{Index: i, Result: p.Await(ctx)}
		}()
	}
	go func() {
		wg.Wait()
		close(arrivals)
	}()
	return arrivals, nil
}
