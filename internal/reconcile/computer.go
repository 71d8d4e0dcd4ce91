package reconcile

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/streamctl/internal/resource"
)

// ComputeOptions configures a ChangeComputer.
type ComputeOptions[T any] struct {
	// Key derives the join key. Defaults to metadata.name.
	Key KeyFunc[T]

	// Equal compares specs. Defaults to cmp.Equal treating nil and empty
	// maps and slices as equal.
	Equal func(a, b T) bool

	// DeleteOrphans emits DELETE for keys only present in actual.
	DeleteOrphans bool

	// Describe renders change descriptions. Defaults to DefaultDescribe.
	Describe DescribeFunc[T]
}

// ChangeComputer diffs actual resources against expected resources.
type ChangeComputer[T any] struct {
	opts ComputeOptions[T]
}

// NewChangeComputer creates a ChangeComputer, filling in defaults.
func NewChangeComputer[T any](opts ComputeOptions[T]) *ChangeComputer[T] {
	if opts.Key == nil {
		opts.Key = NameKey[T]
	}
	if opts.Equal == nil {
		opts.Equal = DeepEqual[T]
	}
	if opts.Describe == nil {
		opts.Describe = DefaultDescribe[T]
	}
	return &ChangeComputer[T]{opts: opts}
}

// DeepEqual compares two specs by value.
func DeepEqual[T any](a, b T) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// ComputeChanges diffs with default options, keying resources by name.
func ComputeChanges[T any](actual, expected []resource.Object[T], deleteOrphans bool) []ResourceChange[T] {
	return NewChangeComputer(ComputeOptions[T]{DeleteOrphans: deleteOrphans}).ComputeChanges(actual, expected)
}

// ComputeChanges returns one change per distinct key. Expected keys come
// first, in order of first appearance, followed by actual-only keys in
// actual order when orphans are deleted. If several expected resources
// share a key the last one wins.
func (c *ChangeComputer[T]) ComputeChanges(actual, expected []resource.Object[T]) []ResourceChange[T] {
	actualIdx := c.index(actual, false)
	expectedIdx := c.index(expected, true)

	changes := make([]ResourceChange[T], 0, len(expectedIdx.keys)+len(actualIdx.keys))

	for _, key := range expectedIdx.keys {
		want := expectedIdx.objs[key]
		have, exists := actualIdx.objs[key]

		var vc ValueChange[T]
		switch {
		case !exists:
			vc = NewAdd(want.Spec)
		case c.opts.Equal(have.Spec, want.Spec):
			vc = NewNone(want.Spec)
		default:
			vc = NewUpdate(have.Spec, want.Spec)
		}
		changes = append(changes, c.change(want.Kind, key, vc))
	}

	for _, key := range actualIdx.keys {
		if _, wanted := expectedIdx.objs[key]; wanted {
			continue
		}
		if !c.opts.DeleteOrphans {
			continue
		}
		have := actualIdx.objs[key]
		changes = append(changes, c.change(have.Kind, key, NewDelete(have.Spec)))
	}

	return changes
}

func (c *ChangeComputer[T]) change(kind string, key Key, vc ValueChange[T]) ResourceChange[T] {
	return ResourceChange[T]{
		ValueChange: vc,
		Kind:        kind,
		Key:         key,
		Description: c.opts.Describe(kind, key, vc),
	}
}

type keyIndex[T any] struct {
	keys []Key // first-appearance order
	objs map[Key]resource.Object[T]
}

func (c *ChangeComputer[T]) index(objs []resource.Object[T], warnDuplicates bool) keyIndex[T] {
	idx := keyIndex[T]{
		keys: make([]Key, 0, len(objs)),
		objs: make(map[Key]resource.Object[T], len(objs)),
	}
	for _, obj := range objs {
		key := c.opts.Key(obj)
		if _, dup := idx.objs[key]; dup {
			if warnDuplicates {
				log.Warn().
					Str("kind", obj.Kind).
					Str("key", string(key)).
					Msg("Duplicate resource key in desired state, last definition wins")
			}
		} else {
			idx.keys = append(idx.keys, key)
		}
		idx.objs[key] = obj
	}
	return idx
}
