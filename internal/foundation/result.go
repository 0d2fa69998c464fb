// Package foundation provides small generic utilities shared across packages.
package foundation

import "fmt"

// Result represents an operation that either succeeded with a value or failed
// with an error. Store constructors use it to force callers to handle the
// failure branch explicitly.
type Result[T any] struct {
	value T
	err   error
	isOk  bool
}

// Ok creates a successful Result.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value, isOk: true}
}

// Err creates a failed Result.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// IsOk reports whether the Result holds a value.
func (r Result[T]) IsOk() bool { return r.isOk }

// IsErr reports whether the Result holds an error.
func (r Result[T]) IsErr() bool { return !r.isOk }

// Unwrap returns the value, panicking on a failed Result.
func (r Result[T]) Unwrap() T {
	if !r.isOk {
		panic(fmt.Sprintf("called Unwrap on Err result: %v", r.err))
	}
	return r.value
}

// Err returns the error, or nil for a successful Result.
func (r Result[T]) Error() error {
	if r.isOk {
		return nil
	}
	return r.err
}

// Get returns the conventional (value, error) pair.
func (r Result[T]) Get() (T, error) {
	return r.value, r.Error()
}
