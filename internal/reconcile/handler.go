package reconcile

import "context"

// ChangeHandler applies one type of change to a backend.
type ChangeHandler[T any] interface {
	Apply(ctx context.Context, change ResourceChange[T]) error
}

// HandlerFunc adapts a function into a ChangeHandler.
type HandlerFunc[T any] func(ctx context.Context, change ResourceChange[T]) error

// Apply calls f.
func (f HandlerFunc[T]) Apply(ctx context.Context, change ResourceChange[T]) error {
	return f(ctx, change)
}

// Noop is the handler for NONE changes. It never contacts the backend.
type Noop[T any] struct{}

// Apply does nothing.
func (Noop[T]) Apply(context.Context, ResourceChange[T]) error { return nil }

// HandlerSet maps each change type to the handler for it.
type HandlerSet[T any] map[ChangeType]ChangeHandler[T]

// For returns the handler for t. NONE always resolves to Noop.
func (s HandlerSet[T]) For(t ChangeType) (ChangeHandler[T], bool) {
	if t == ChangeNone {
		return Noop[T]{}, true
	}
	h, ok := s[t]
	return h, ok && h != nil
}
