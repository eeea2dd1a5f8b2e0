// Package subscription connects a block producer goroutine to a consumer channel.
// The producer owns a Subscription and the consumer gets a ClientSubscription.
package subscription

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
)

// BufferSize is the number of values and errors a producer can queue before Send blocks.
var BufferSize = 8

var ErrClosed = errors.Wrap(errs.Closed, "subscription is closed")

type Subscription[T any] struct {
	out chan<- T
	in  chan T
	err chan error

	closeOnce sync.Once
	quitOnce  sync.Once

	// quit asks the forwarding loop to stop. done is closed once the loop no longer writes to out.
	quit chan struct{}
	done chan struct{}
}

func NewSubscription[T any](out chan<- T) *Subscription[T] {
	s := &Subscription[T]{
		out:  out,
		in:   make(chan T, BufferSize),
		err:  make(chan error, BufferSize),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.forward()
	return s
}

// Client returns the consumer side of s.
func (s *Subscription[T]) Client() *ClientSubscription[T] {
	return &ClientSubscription[T]{s: s}
}

// Send queues value for delivery. It fails once the consumer has unsubscribed.
func (s *Subscription[T]) Send(ctx context.Context, value T) error {
	select {
	case s.in <- value:
		return nil
	case <-s.done:
		return errors.WithStack(ErrClosed)
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

// SendError reports a producer failure to the consumer.
func (s *Subscription[T]) SendError(ctx context.Context, err error) error {
	select {
	case s.err <- err:
		return nil
	case <-s.done:
		return errors.WithStack(ErrClosed)
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

// Close marks the end of the stream. Queued values are still delivered before Done is closed.
// Send must not be called after Close.
func (s *Subscription[T]) Close() {
	s.closeOnce.Do(func() { close(s.in) })
}

func (s *Subscription[T]) Unsubscribe() {
	s.quitOnce.Do(func() {
		select {
		case s.quit <- struct{}{}:
			<-s.done
		case <-s.done:
		}
	})
}

func (s *Subscription[T]) Err() <-chan error { return s.err }

func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

func (s *Subscription[T]) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscription[T]) forward() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case value, ok := <-s.in:
			if !ok {
				return
			}
			select {
			case s.out <- value:
			case <-s.quit:
				return
			}
		}
	}
}

// ClientSubscription is the consumer view of a Subscription. It cannot send.
type ClientSubscription[T any] struct {
	s *Subscription[T]
}

// Unsubscribe stops delivery and waits for the forwarding loop to exit.
func (c *ClientSubscription[T]) Unsubscribe() { c.s.Unsubscribe() }

// Err carries producer failures. A received error ends the stream.
func (c *ClientSubscription[T]) Err() <-chan error { return c.s.Err() }

// Done is closed when no more values will be delivered.
func (c *ClientSubscription[T]) Done() <-chan struct{} { return c.s.Done() }

func (c *ClientSubscription[T]) IsClosed() bool { return c.s.IsClosed() }
