// Package bucket turns a callback driven source into an ordered pull sequence.
//
// Producers call Push, PushError and Close from any goroutine. A single
// consumer reads with Next or ranges over All. Items are delivered in push
// order; buffered items are still delivered after Close or PushError.
package bucket

import (
	"context"
	"errors"
	"iter"
	"sync"
)

var (
	// ErrDone is returned by Next once the bucket is closed and drained.
	ErrDone = errors.New("bucket: done")
	// ErrConsumerAttached is returned when a second consumer tries to read.
	ErrConsumerAttached = errors.New("bucket: consumer already attached")
)

// Bucket is a single-consumer FIFO with explicit terminal states.
// The zero value is not usable; create one with New.
type Bucket[T any] struct {
	mu       sync.Mutex
	items    []T
	done     bool
	err      error
	reading  bool
	iterated bool
	ready    chan struct{}
}

// New creates an empty, open bucket.
func New[T any]() *Bucket[T] {
	return &Bucket[T]{
		ready: make(chan struct{}, 1),
	}
}

// Push appends an item and wakes a waiting consumer. No-op once terminated.
func (b *Bucket[T]) Push(item T) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.items = append(b.items, item)
	b.mu.Unlock()
	b.wake()
}

// PushError terminates the bucket in error. Items already buffered are
// delivered first, then every pull fails with err. A nil err behaves like Close.
func (b *Bucket[T]) PushError(err error) {
	b.terminate(err)
}

// Close terminates the bucket successfully. Idempotent, and a no-op after PushError.
func (b *Bucket[T]) Close() {
	b.terminate(nil)
}

// Terminated reports whether Close or PushError has been called.
func (b *Bucket[T]) Terminated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

func (b *Bucket[T]) terminate(err error) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.done = true
	b.err = err
	b.mu.Unlock()
	b.wake()
}

func (b *Bucket[T]) wake() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// Next blocks until an item is available, the bucket terminates or ctx is done.
// It returns ErrDone after Close once every buffered item has been read.
func (b *Bucket[T]) Next(ctx context.Context) (T, error) {
	var zero T

	b.mu.Lock()
	if b.reading {
		b.mu.Unlock()
		return zero, ErrConsumerAttached
	}
	b.reading = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.reading = false
		b.mu.Unlock()
	}()

	for {
		b.mu.Lock()
		if len(b.items) > 0 {
			item := b.items[0]
			b.items[0] = zero
			b.items = b.items[1:]
			b.mu.Unlock()
			return item, nil
		}
		if b.done {
			err := b.err
			b.mu.Unlock()
			if err != nil {
				return zero, err
			}
			return zero, ErrDone
		}
		b.mu.Unlock()

		select {
		case <-b.ready:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// All returns the single-pass sequence of items. The sequence ends after
// Close, or yields the terminal error once and stops. Only the first
// sequence ranged over reads items; later ones yield ErrConsumerAttached.
func (b *Bucket[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		b.mu.Lock()
		if b.iterated {
			b.mu.Unlock()
			yield(zero, ErrConsumerAttached)
			return
		}
		b.iterated = true
		b.mu.Unlock()

		for {
			item, err := b.Next(ctx)
			if errors.Is(err, ErrDone) {
				return
			}
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}
