// Package selector provides predicates used to include or exclude resources
// from a reconciliation pass.
package selector

import (
	"fmt"
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/labels"

	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/resource"
)

// Selector is a named predicate over resource metadata. Implementations are
// stateless and safe for concurrent use.
type Selector interface {
	Name() string
	Matches(meta resource.Meta) bool
}

// Aggregate matches when every member matches. An empty aggregate matches
// everything.
type Aggregate []Selector

// Name returns the members' names joined with " AND ".
func (a Aggregate) Name() string {
	if len(a) == 0 {
		return "all"
	}
	names := make([]string, len(a))
	for i, s := range a {
		names[i] = s.Name()
	}
	return strings.Join(names, " AND ")
}

// Matches reports whether all members match.
func (a Aggregate) Matches(meta resource.Meta) bool {
	for _, s := range a {
		if !s.Matches(meta) {
			return false
		}
	}
	return true
}

// Filter returns the objects matched by the aggregate, in input order.
func Filter[T any](a Aggregate, objs []resource.Object[T]) []resource.Object[T] {
	out := make([]resource.Object[T], 0, len(objs))
	for _, obj := range objs {
		if a.Matches(obj.Metadata) {
			out = append(out, obj)
		}
	}
	return out
}

// Labels matches resources using the Kubernetes label selector grammar,
// e.g. "env=prod,tier in (a,b),!legacy".
type Labels struct {
	expr     string
	selector labels.Selector
}

// NewLabels parses a label selector expression.
func NewLabels(expr string) (*Labels, error) {
	sel, err := labels.Parse(expr)
	if err != nil {
		return nil, errs.Config("label selector", fmt.Errorf("%w %q: %v", errs.ErrInvalidSelector, expr, err))
	}
	return &Labels{expr: expr, selector: sel}, nil
}

func (s *Labels) Name() string { return "label:" + s.expr }

func (s *Labels) Matches(meta resource.Meta) bool {
	return s.selector.Matches(labels.Set(meta.Labels))
}

// NameRegex matches metadata.name against a regular expression.
type NameRegex struct {
	re *regexp.Regexp
}

// NewNameRegex compiles a name pattern.
func NewNameRegex(pattern string) (*NameRegex, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errs.Config("name selector", fmt.Errorf("%w %q: %v", errs.ErrInvalidSelector, pattern, err))
	}
	return &NameRegex{re: re}, nil
}

func (s *NameRegex) Name() string { return "name:" + s.re.String() }

func (s *NameRegex) Matches(meta resource.Meta) bool {
	return s.re.MatchString(meta.Name)
}

// Annotation matches on annotation presence, or on an exact value when one
// is given.
type Annotation struct {
	key      string
	value    string
	hasValue bool
}

// NewAnnotation parses "key" or "key=value".
func NewAnnotation(expr string) (*Annotation, error) {
	key, value, hasValue := strings.Cut(expr, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errs.Config("annotation selector", fmt.Errorf("%w %q: empty key", errs.ErrInvalidSelector, expr))
	}
	return &Annotation{key: key, value: strings.TrimSpace(value), hasValue: hasValue}, nil
}

func (s *Annotation) Name() string {
	if s.hasValue {
		return "annotation:" + s.key + "=" + s.value
	}
	return "annotation:" + s.key
}

func (s *Annotation) Matches(meta resource.Meta) bool {
	v, ok := meta.Annotation(s.key)
	if !ok {
		return false
	}
	return !s.hasValue || v == s.value
}

// Func adapts a plain function into a Selector.
type Func struct {
	Label string
	Fn    func(resource.Meta) bool
}

func (f Func) Name() string { return f.Label }

func (f Func) Matches(meta resource.Meta) bool { return f.Fn(meta) }
