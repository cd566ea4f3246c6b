package tycon

import (
	"context"
	"errors"
	"sync"
)

// Promise is the eventual result of an asynchronous member. It settles
// exactly once, either resolved with a value or rejected with an error.
type Promise struct {
	done chan struct{}
	once sync.Once
	val  any
	err  error
}

// NewPromise runs fn in a new goroutine and returns a promise settled with
// its result. A panic in fn rejects the promise.
func NewPromise(fn func() (any, error)) *Promise {
	p := &Promise{done: make(chan struct{})}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.settle(nil, Errorf(CodeInternal, "promise panicked: %v", r))
			}
		}()
		p.settle(fn())
	}()
	return p
}

// Resolve returns a promise already resolved with v.
func Resolve(v any) *Promise {
	p := &Promise{done: make(chan struct{})}
	p.settle(v, nil)
	return p
}

// Reject returns a promise already rejected with err.
func Reject(err error) *Promise {
	if err == nil {
		err = errors.New("promise rejected without a reason")
	}
	p := &Promise{done: make(chan struct{})}
	p.settle(nil, err)
	return p
}

func (p *Promise) settle(v any, err error) {
	p.once.Do(func() {
		p.val, p.err = v, err
		close(p.done)
	})
}

// Done returns a channel closed once the promise settles.
func (p *Promise) Done() <-chan struct{} { return p.done }

// Await blocks until the promise settles or ctx is done.
func (p *Promise) Await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Then returns a promise settled with fn applied to the resolved value.
// A rejection propagates unchanged and fn is not called.
func (p *Promise) Then(fn func(v any) (any, error)) *Promise {
	return NewPromise(func() (any, error) {
		<-p.done
		if p.err != nil {
			return nil, p.err
		}
		return fn(p.val)
	})
}
