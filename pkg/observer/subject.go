// Package observer fans a single event out to a set of registered observers.
package observer

import (
	"context"
	"sync"

	"go.uber.org/multierr"
)

// Observer defines the callback contract for receiving published events of type T.
type Observer[T any] interface {
	Notify(context.Context, T) error
}

// ObserverFunc adapts a standalone function into an Observer.
//
//revive:disable-next-line:exported
type ObserverFunc[T any] func(context.Context, T) error

// Notify executes the wrapped function.
func (f ObserverFunc[T]) Notify(ctx context.Context, evt T) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// Subject coordinates observer registrations and event fan-out.
type Subject[T any] struct {
	onError   func(error)
	observers []Observer[T]
	mu        sync.RWMutex
}

// NewSubject constructs a Subject with optional initial observers.
func NewSubject[T any](observers ...Observer[T]) *Subject[T] {
	cp := append([]Observer[T](nil), observers...)
	return &Subject[T]{observers: cp}
}

// Publish invokes every observer, even after a failure, and returns all their errors combined.
func (s *Subject[T]) Publish(ctx context.Context, evt T) error {
	if s == nil {
		return nil
	}

	s.mu.RLock()
	observers := append([]Observer[T](nil), s.observers...)
	errHandler := s.onError
	s.mu.RUnlock()

	var errs error
	for _, obs := range observers {
		if obs == nil {
			continue
		}
		if err := obs.Notify(ctx, evt); err != nil {
			if errHandler != nil {
				errHandler(err)
			}
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Attach registers additional observers to the subject.
func (s *Subject[T]) Attach(observers ...Observer[T]) {
	if s == nil || len(observers) == 0 {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, observers...)
	s.mu.Unlock()
}

// Len reports the number of registered observers.
func (s *Subject[T]) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// SetErrorHandler configures a callback for observer failures.
func (s *Subject[T]) SetErrorHandler(fn func(error)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}
