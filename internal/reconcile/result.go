package reconcile

import "errors"

// ErrNoHandler is recorded when a provider has no handler for a change type.
var ErrNoHandler = errors.New("no handler registered for change type")

// Status is the outcome of executing one change.
type Status string

const (
	StatusOK      Status = "OK"
	StatusChanged Status = "CHANGED"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// SkipReason explains a SKIPPED result.
type SkipReason string

const (
	SkipDryRun       SkipReason = "dry-run"
	SkipModeExcluded SkipReason = "mode-excluded"
)

// ChangeResult is the immutable outcome of one ResourceChange.
type ChangeResult[T any] struct {
	Change ResourceChange[T]
	Status Status
	Reason SkipReason
	Err    error
}

func okResult[T any](change ResourceChange[T]) ChangeResult[T] {
	return ChangeResult[T]{Change: change, Status: StatusOK}
}

func changedResult[T any](change ResourceChange[T]) ChangeResult[T] {
	return ChangeResult[T]{Change: change, Status: StatusChanged}
}

func failedResult[T any](change ResourceChange[T], err error) ChangeResult[T] {
	return ChangeResult[T]{Change: change, Status: StatusFailed, Err: err}
}

func skippedResult[T any](change ResourceChange[T], reason SkipReason) ChangeResult[T] {
	return ChangeResult[T]{Change: change, Status: StatusSkipped, Reason: reason}
}

// Outcome is a type-erased view of a ChangeResult used for reporting across
// resource kinds.
type Outcome struct {
	Kind        string
	Key         Key
	Type        ChangeType
	Status      Status
	Reason      SkipReason
	Description string
	Err         error
	Before      any
	After       any
}

// Outcome returns the type-erased view of the result.
func (r ChangeResult[T]) Outcome() Outcome {
	o := Outcome{
		Kind:        r.Change.Kind,
		Key:         r.Change.Key,
		Type:        r.Change.Type,
		Status:      r.Status,
		Reason:      r.Reason,
		Description: r.Change.Description,
		Err:         r.Err,
	}
	if r.Change.Before != nil {
		o.Before = *r.Change.Before
	}
	if r.Change.After != nil {
		o.After = *r.Change.After
	}
	return o
}

// Outcomes converts results to their type-erased views.
func Outcomes[T any](results []ChangeResult[T]) []Outcome {
	out := make([]Outcome, len(results))
	for i, r := range results {
		out[i] = r.Outcome()
	}
	return out
}
