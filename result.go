package cqrs

// Void is the data carried by the results of result-less commands and queries.
type Void struct{}

// Envelope is implemented by every Result regardless of its data type.
// Interceptors use it to observe the outcome of a handler call.
type Envelope interface {
	Err() error
	Succeeded() bool
}

// Result is the success/failure envelope returned by every handler and every dispatch.
// The zero value is a successful result carrying the zero value of T.
type Result[T any] struct {
	data T
	err  error
}

// Ok creates a successful result carrying data.
func Ok[T any](data T) Result[T] {
	return Result[T]{data: data}
}

// OkVoid creates a successful result for result-less contracts.
func OkVoid() Result[Void] {
	return Result[Void]{}
}

// Fail creates a failed result. A nil err is replaced by ErrUnknownFailure so
// that a failed result can always be told apart from a successful one.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = ErrUnknownFailure
	}
	return Result[T]{err: err}
}

//------Fetch Data------//

// Data retrieves the data of a successful result.
func (res Result[T]) Data() T {
	return res.data
}

// Err returns the failure, or nil for a successful result.
func (res Result[T]) Err() error {
	return res.err
}

// Succeeded reports whether the result is a success.
func (res Result[T]) Succeeded() bool {
	return res.err == nil
}

// Failed reports whether the result is a failure.
func (res Result[T]) Failed() bool {
	return res.err != nil
}

// Get returns the data and the failure, in the usual Go order.
func (res Result[T]) Get() (T, error) {
	return res.data, res.err
}
