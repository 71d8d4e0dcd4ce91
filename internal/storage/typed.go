package storage

import (
	"encoding/json"
	"fmt"
)

// Entry is a decoded value with its id and version.
type Entry[T any] struct {
	ID      string
	Value   T
	Version int64
}

// TypedStore wraps Store with JSON marshaling for a specific type.
// Each kind of sandbox resource uses its own TypedStore instance.
type TypedStore[T any] struct {
	store *Store
	kind  string
}

// NewTypedStore creates a new typed store wrapper for the given kind.
func NewTypedStore[T any](store *Store, kind string) *TypedStore[T] {
	return &TypedStore[T]{
		store: store,
		kind:  kind,
	}
}

// Kind returns the resource kind this store handles.
func (s *TypedStore[T]) Kind() string {
	return s.kind
}

// Get retrieves and unmarshals the state for an ID.
// The boolean is false when the ID is not stored.
func (s *TypedStore[T]) Get(id string) (value T, found bool, err error) {
	payload, _, err := s.store.Get(s.kind, id)
	if err != nil {
		return value, false, err
	}

	if payload == nil {
		return value, false, nil
	}

	if err := json.Unmarshal(payload, &value); err != nil {
		return value, false, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return value, true, nil
}

// Set marshals and stores the state for an ID.
func (s *TypedStore[T]) Set(id string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	return s.store.Set(s.kind, id, payload)
}

// Create marshals and stores the state for an ID, failing with ErrExists
// if the ID is already stored.
func (s *TypedStore[T]) Create(id string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	return s.store.Create(s.kind, id, payload)
}

// Delete removes the state for an ID and reports whether it existed.
func (s *TypedStore[T]) Delete(id string) (bool, error) {
	return s.store.Delete(s.kind, id)
}

// Clear removes all state for this kind.
func (s *TypedStore[T]) Clear() error {
	return s.store.Clear(s.kind)
}

// List retrieves all entries for this kind ordered by id.
func (s *TypedStore[T]) List() ([]Entry[T], error) {
	records, err := s.store.List(s.kind)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry[T], 0, len(records))
	for _, rec := range records {
		var value T
		if err := json.Unmarshal(rec.Payload, &value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state for %s: %w", rec.ID, err)
		}
		entries = append(entries, Entry[T]{ID: rec.ID, Value: value, Version: rec.Version})
	}

	return entries, nil
}

// Update applies a modification function to the current state.
// If the ID doesn't exist, the modify function receives the zero value.
func (s *TypedStore[T]) Update(id string, modify func(current T) T) error {
	current, _, err := s.Get(id)
	if err != nil {
		return err
	}

	return s.Set(id, modify(current))
}
