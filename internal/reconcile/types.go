// Package reconcile computes the changes needed to make actual state match
// desired state and executes them through pluggable handlers.
package reconcile

import (
	"fmt"

	"github.com/dokzlo13/streamctl/internal/resource"
)

// Key identifies a resource instance within its kind. It is the join key
// used when diffing actual against expected resources.
type Key string

// KeyFunc derives the key of a resource.
type KeyFunc[T any] func(obj resource.Object[T]) Key

// NameKey keys resources by metadata.name.
func NameKey[T any](obj resource.Object[T]) Key {
	return Key(obj.Metadata.Name)
}

// ChangeType is the kind of delta computed for one resource.
type ChangeType string

const (
	ChangeAdd    ChangeType = "ADD"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
	ChangeNone   ChangeType = "NONE"
)

// IsMutating returns true for change types that modify the backend.
func (t ChangeType) IsMutating() bool {
	switch t {
	case ChangeAdd, ChangeUpdate, ChangeDelete:
		return true
	}
	return false
}

// Verb returns a human-readable verb for descriptions.
func (t ChangeType) Verb() string {
	switch t {
	case ChangeAdd:
		return "Create"
	case ChangeUpdate:
		return "Update"
	case ChangeDelete:
		return "Delete"
	default:
		return "Unchanged"
	}
}

// ValueChange pairs an optional before and after value.
//
//	ADD    => Before nil, After set
//	DELETE => Before set, After nil
//	UPDATE => both set and different
//	NONE   => both set and equal, or both nil
type ValueChange[T any] struct {
	Type   ChangeType `json:"type" yaml:"type"`
	Before *T         `json:"before,omitempty" yaml:"before,omitempty"`
	After  *T         `json:"after,omitempty" yaml:"after,omitempty"`
}

// NewAdd returns an ADD change.
func NewAdd[T any](after T) ValueChange[T] {
	return ValueChange[T]{Type: ChangeAdd, After: &after}
}

// NewDelete returns a DELETE change.
func NewDelete[T any](before T) ValueChange[T] {
	return ValueChange[T]{Type: ChangeDelete, Before: &before}
}

// NewUpdate returns an UPDATE change.
func NewUpdate[T any](before, after T) ValueChange[T] {
	return ValueChange[T]{Type: ChangeUpdate, Before: &before, After: &after}
}

// NewNone returns a NONE change carrying the unchanged value.
func NewNone[T any](value T) ValueChange[T] {
	return ValueChange[T]{Type: ChangeNone, Before: &value, After: &value}
}

// Validate checks the presence invariants for the change type. Value
// inequality of UPDATE changes is not re-checked.
func (c ValueChange[T]) Validate() error {
	hasBefore, hasAfter := c.Before != nil, c.After != nil
	switch c.Type {
	case ChangeAdd:
		if hasBefore || !hasAfter {
			return fmt.Errorf("invalid %s change: requires only an after value", c.Type)
		}
	case ChangeDelete:
		if !hasBefore || hasAfter {
			return fmt.Errorf("invalid %s change: requires only a before value", c.Type)
		}
	case ChangeUpdate:
		if !hasBefore || !hasAfter {
			return fmt.Errorf("invalid %s change: requires before and after values", c.Type)
		}
	case ChangeNone:
		if hasBefore != hasAfter {
			return fmt.Errorf("invalid %s change: requires both or neither values", c.Type)
		}
	default:
		return fmt.Errorf("unknown change type %q", c.Type)
	}
	return nil
}

// Value returns After when present, otherwise Before. Nil for an empty
// NONE placeholder.
func (c ValueChange[T]) Value() *T {
	if c.After != nil {
		return c.After
	}
	return c.Before
}

// ResourceChange is a ValueChange for one resource key, with a description
// of what applying it does.
type ResourceChange[T any] struct {
	ValueChange[T] `yaml:",inline"`

	Kind        string `json:"kind" yaml:"kind"`
	Key         Key    `json:"key" yaml:"key"`
	Description string `json:"description" yaml:"description"`
}

// DescribeFunc renders a human-readable description of a change.
type DescribeFunc[T any] func(kind string, key Key, change ValueChange[T]) string

// DefaultDescribe renders "<Verb> <kind> '<key>'".
func DefaultDescribe[T any](kind string, key Key, change ValueChange[T]) string {
	return fmt.Sprintf("%s %s '%s'", change.Type.Verb(), kind, key)
}
