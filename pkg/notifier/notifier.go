// Package notifier provides a predicate-waiting value cell used to
// coordinate producers and consumers across the pipeline without busy
// polling: a consumer blocks until a caller-supplied predicate over the
// current value becomes true, and any update sweeps the waiting list and
// wakes every predicate that now holds.
package notifier

import (
	"context"
	"sync"
)

// Notifier guards a value of type T behind a mutex and lets callers wait
// for arbitrary predicates over it instead of a single fixed condition.
// It is the Go counterpart of the pipeline's mutex-guarded value cell: the
// original parks a list of (future, predicate) pairs and sweeps it on every
// mutation, which this type mirrors with a list of buffered channels
// instead of pollable futures.
type Notifier[T any] struct {
	mu      sync.Mutex
	value   T
	waiters []*waiter[T]
}

type waiter[T any] struct {
	predicate func(T) bool
	ch        chan T
}

// New creates a Notifier seeded with the given initial value.
func New[T any](initial T) *Notifier[T] {
	return &Notifier[T]{value: initial}
}

// Get returns a snapshot of the current value.
func (n *Notifier[T]) Get() T {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value
}

// Wait blocks until predicate(value) is true, then returns that value.
// If the predicate already holds, Wait returns immediately without
// registering a waiter. The context may cancel an in-flight wait; on
// cancellation the waiter is removed from the list so it is not leaked.
func (n *Notifier[T]) Wait(ctx context.Context, predicate func(T) bool) (T, error) {
	n.mu.Lock()
	if predicate(n.value) {
		v := n.value
		n.mu.Unlock()
		return v, nil
	}
	w := &waiter[T]{predicate: predicate, ch: make(chan T, 1)}
	n.waiters = append(n.waiters, w)
	n.mu.Unlock()

	select {
	case v := <-w.ch:
		return v, nil
	case <-ctx.Done():
		n.removeWaiter(w)
		var zero T
		return zero, ctx.Err()
	}
}

func (n *Notifier[T]) removeWaiter(target *waiter[T]) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, w := range n.waiters {
		if w == target {
			n.waiters = append(n.waiters[:i], n.waiters[i+1:]...)
			return
		}
	}
}

// Update applies modify to the guarded value under lock, then wakes every
// waiter whose predicate now holds against the new value. The return value
// of modify is passed through so callers can compute a result derived from
// the mutation (e.g. a refcount after decrementing) without a second lock
// round trip.
func Update[T any, R any](n *Notifier[T], modify func(*T) R) R {
	n.mu.Lock()
	result := modify(&n.value)
	remaining := n.waiters[:0]
	for _, w := range n.waiters {
		if w.predicate(n.value) {
			w.ch <- n.value
		} else {
			remaining = append(remaining, w)
		}
	}
	n.waiters = remaining
	n.mu.Unlock()
	return result
}

// Set replaces the guarded value outright and wakes any waiters the new
// value satisfies. It is shorthand for Update with a function that
// discards the previous value.
func (n *Notifier[T]) Set(value T) {
	Update(n, func(v *T) struct{} {
		*v = value
		return struct{}{}
	})
}
