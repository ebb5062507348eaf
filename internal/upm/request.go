package upm

import "sync"

// Status is the completion state of a Request.
type Status int

const (
	StatusInProgress Status = iota
	StatusSuccess
	StatusFailure
)

// Request is the handle of one asynchronous service operation. Callers poll
// IsCompleted and then read Status, Result and Err; none of them block.
type Request[T any] struct {
	mu     sync.Mutex
	done   chan struct{}
	status Status
	result T
	err    error
}

// NewRequest returns a Request that is still in progress.
func NewRequest[T any]() *Request[T] {
	return &Request[T]{done: make(chan struct{})}
}

// Go runs fn on its own goroutine and returns a Request completed with its result.
func Go[T any](fn func() (T, error)) *Request[T] {
	r := NewRequest[T]()
	go func() {
		result, err := fn()
		r.Complete(result, err)
	}()
	return r
}

// Complete records the outcome of the operation. A non-nil err marks the
// request failed. Only the first call has any effect.
func (r *Request[T]) Complete(result T, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusInProgress {
		return
	}

	if err != nil {
		r.status = StatusFailure
		r.err = err
	} else {
		r.status = StatusSuccess
		r.result = result
	}
	close(r.done)
}

// IsCompleted reports whether the operation has finished, successfully or not.
func (r *Request[T]) IsCompleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status != StatusInProgress
}

// Status returns the current status.
func (r *Request[T]) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Result returns the value of a successful operation.
func (r *Request[T]) Result() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Err returns the failure of an unsuccessful operation.
func (r *Request[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Done is closed once the request completes.
func (r *Request[T]) Done() <-chan struct{} {
	return r.done
}
