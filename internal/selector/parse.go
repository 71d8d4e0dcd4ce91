package selector

import (
	"fmt"
	"strings"

	"github.com/dokzlo13/streamctl/internal/errs"
)

// Selector expression prefixes.
const (
	PrefixLabel      = "label"
	PrefixName       = "name"
	PrefixAnnotation = "annotation"
	PrefixExpression = "expr"
)

// Parse builds a selector from an expression of the form "<prefix>:<body>".
// An expression without a known prefix is parsed as a label selector.
func Parse(expr string) (Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errs.Config("selector", fmt.Errorf("%w: empty expression", errs.ErrInvalidSelector))
	}

	prefix, body, found := strings.Cut(expr, ":")
	if !found {
		return NewLabels(expr)
	}

	switch strings.TrimSpace(prefix) {
	case PrefixLabel:
		return NewLabels(body)
	case PrefixName:
		return NewNameRegex(body)
	case PrefixAnnotation:
		return NewAnnotation(body)
	case PrefixExpression:
		return NewExpression(body)
	default:
		return NewLabels(expr)
	}
}

// ParseAll parses every expression into an Aggregate, failing on the first
// invalid one.
func ParseAll(exprs []string) (Aggregate, error) {
	agg := make(Aggregate, 0, len(exprs))
	for _, expr := range exprs {
		s, err := Parse(expr)
		if err != nil {
			return nil, err
		}
		agg = append(agg, s)
	}
	return agg, nil
}
