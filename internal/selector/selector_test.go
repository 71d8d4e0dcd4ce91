package selector

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/resource"
)

var prodOrders = resource.Meta{
	Name:        "orders-v1",
	Labels:      map[string]string{"env": "prod", "team": "checkout"},
	Annotations: map[string]string{"streamctl.io/managed": "true"},
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		meta     resource.Meta
		expected bool
	}{
		{name: "bare_label_match", expr: "env=prod", meta: prodOrders, expected: true},
		{name: "bare_label_mismatch", expr: "env=dev", meta: prodOrders, expected: false},
		{name: "label_set", expr: "label:team in (checkout,payments)", meta: prodOrders, expected: true},
		{name: "label_absent", expr: "label:!legacy", meta: prodOrders, expected: true},
		{name: "label_on_nil_labels", expr: "label:env=prod", meta: resource.Meta{Name: "x"}, expected: false},
		{name: "name_regex", expr: "name:^orders-", meta: prodOrders, expected: true},
		{name: "name_regex_mismatch", expr: "name:^payments-", meta: prodOrders, expected: false},
		{name: "annotation_present", expr: "annotation:streamctl.io/managed", meta: prodOrders, expected: true},
		{name: "annotation_value", expr: "annotation:streamctl.io/managed=false", meta: prodOrders, expected: false},
		{name: "annotation_missing", expr: "annotation:other", meta: prodOrders, expected: false},
		{name: "expression", expr: `expr:labels.env == "prod" and string.find(name, "^orders") ~= nil`, meta: prodOrders, expected: true},
		{name: "expression_false", expr: `expr:labels.team == "payments"`, meta: prodOrders, expected: false},
		{name: "expression_runtime_error", expr: `expr:labels.missing.field == 1`, meta: prodOrders, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s.Matches(tt.meta))
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{name: "empty", expr: "  "},
		{name: "bad_label", expr: "env in (prod"},
		{name: "bad_regex", expr: "name:[a-"},
		{name: "empty_annotation", expr: "annotation:=x"},
		{name: "bad_lua", expr: "expr:labels.env ==="},
		{name: "empty_lua", expr: "expr:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.expr)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errs.IsConfigError(err))
			assert.ErrorIs(t, err, errs.ErrInvalidSelector)
		})
	}
}

func TestAggregate(t *testing.T) {
	empty := Aggregate{}
	assert.True(t, empty.Matches(prodOrders))
	assert.Equal(t, "all", empty.Name())

	agg, err := ParseAll([]string{"env=prod", "name:^orders"})
	require.NoError(t, err)
	assert.True(t, agg.Matches(prodOrders))
	assert.Equal(t, "label:env=prod AND name:^orders", agg.Name())

	agg = append(agg, Func{Label: "never", Fn: func(resource.Meta) bool { return false }})
	assert.False(t, agg.Matches(prodOrders))
}

func TestParseAllFailsFast(t *testing.T) {
	_, err := ParseAll([]string{"env=prod", "name:("})
	require.Error(t, err)
	assert.True(t, errs.IsConfigError(err))
}

func TestFilterKeepsOrder(t *testing.T) {
	objs := []resource.Object[int]{
		{Metadata: resource.Meta{Name: "a", Labels: map[string]string{"env": "prod"}}, Spec: 1},
		{Metadata: resource.Meta{Name: "b", Labels: map[string]string{"env": "dev"}}, Spec: 2},
		{Metadata: resource.Meta{Name: "c", Labels: map[string]string{"env": "prod"}}, Spec: 3},
	}

	agg, err := ParseAll([]string{"env=prod"})
	require.NoError(t, err)

	got := Filter(agg, objs)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name())
	assert.Equal(t, "c", got[1].Name())

	assert.Len(t, Filter(nil, objs), 3)
}

func TestExpressionConcurrentUse(t *testing.T) {
	s, err := NewExpression(`labels.env == "prod"`)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, s.Matches(prodOrders))
		}()
	}
	wg.Wait()
}

func TestExpressionHasNoLoaders(t *testing.T) {
	s, err := NewExpression(`dofile == nil and loadfile == nil and load == nil and loadstring == nil and require == nil and io == nil and os == nil`)
	require.NoError(t, err)
	assert.True(t, s.Matches(prodOrders))

	s, err = NewExpression(`dofile("/etc/passwd") ~= nil`)
	require.NoError(t, err)
	assert.False(t, s.Matches(prodOrders))
}

func TestExpressionTimeout(t *testing.T) {
	s, err := NewExpression(`(function() while true do end end)()`)
	require.NoError(t, err)
	s.timeout = 20 * time.Millisecond

	start := time.Now()
	assert.False(t, s.Matches(prodOrders))
	assert.Less(t, time.Since(start), 5*time.Second)
}
