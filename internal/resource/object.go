// Package resource defines the typed resource objects reconciled by the engine
// and the untyped documents they are decoded from.
package resource

import "fmt"

// Meta holds the metadata every resource carries.
type Meta struct {
	Name        string            `yaml:"name" json:"name"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
}

// Annotation returns the value of an annotation and whether it is set.
func (m Meta) Annotation(key string) (string, bool) {
	v, ok := m.Annotations[key]
	return v, ok
}

// Type identifies a resource type by API version and kind.
type Type struct {
	APIVersion string
	Kind       string
}

func (t Type) String() string {
	return fmt.Sprintf("%s/%s", t.APIVersion, t.Kind)
}

// Object is a typed resource: kind, API version, metadata and a
// provider-specific spec. Objects are values and are never mutated after
// construction.
type Object[T any] struct {
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`
	Kind       string `yaml:"kind" json:"kind"`
	Metadata   Meta   `yaml:"metadata" json:"metadata"`
	Spec       T      `yaml:"spec" json:"spec"`
}

// New creates an object of the given type.
func New[T any](typ Type, meta Meta, spec T) Object[T] {
	return Object[T]{
		APIVersion: typ.APIVersion,
		Kind:       typ.Kind,
		Metadata:   meta,
		Spec:       spec,
	}
}

// Type returns the object's API version and kind.
func (o Object[T]) Type() Type {
	return Type{APIVersion: o.APIVersion, Kind: o.Kind}
}

// Name returns metadata.name.
func (o Object[T]) Name() string {
	return o.Metadata.Name
}
