package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/reconcile"
	"github.com/dokzlo13/streamctl/internal/resource"
	"github.com/dokzlo13/streamctl/internal/selector"
)

type limit struct {
	Rate int `yaml:"rate"`
}

var limitType = resource.Type{APIVersion: "test/v1", Kind: "Limit"}

// memClient is an in-memory backend that counts connections.
type memClient struct {
	mu      sync.Mutex
	state   map[string]int
	applied []reconcile.ChangeType
	closed  atomic.Int32
}

func (m *memClient) Close() error {
	m.closed.Add(1)
	return nil
}

type harness struct {
	client *memClient
	opened atomic.Int32
}

func (h *harness) connect(ctx context.Context) (*memClient, error) {
	h.opened.Add(1)
	return h.client, nil
}

func definition() Definition[limit, *memClient] {
	apply := reconcile.HandlerFunc[limit](func(_ context.Context, c reconcile.ResourceChange[limit]) error {
		return nil
	})
	return Definition[limit, *memClient]{
		Name:     "limit",
		Type:     limitType,
		Modes:    reconcile.AllModes,
		Key:      reconcile.NameKey[limit],
		Equal:    reconcile.DeepEqual[limit],
		Describe: reconcile.DefaultDescribe[limit],
		List: func(_ context.Context, c *memClient) ([]resource.Object[limit], error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			var objs []resource.Object[limit]
			for _, name := range []string{"a", "b", "c"} {
				if rate, ok := c.state[name]; ok {
					objs = append(objs, resource.New(limitType, resource.Meta{Name: name, Labels: map[string]string{"app": name}}, limit{Rate: rate}))
				}
			}
			return objs, nil
		},
		Handlers: func(c *memClient, _ config.Options) reconcile.HandlerSet[limit] {
			record := reconcile.HandlerFunc[limit](func(ctx context.Context, change reconcile.ResourceChange[limit]) error {
				c.mu.Lock()
				defer c.mu.Unlock()
				c.applied = append(c.applied, change.Type)
				return apply(ctx, change)
			})
			return reconcile.HandlerSet[limit]{
				reconcile.ChangeAdd:    record,
				reconcile.ChangeUpdate: record,
				reconcile.ChangeDelete: record,
			}
		},
	}
}

func obj(name string, rate int) resource.Object[limit] {
	return resource.New(limitType, resource.Meta{Name: name, Labels: map[string]string{"app": name}}, limit{Rate: rate})
}

func newHarness(state map[string]int) *harness {
	return &harness{client: &memClient{state: state}}
}

func TestConfigureRequiresConnector(t *testing.T) {
	ctrl := NewController[limit, *memClient](definition(), nil)
	err := ctrl.Configure(nil)
	assert.True(t, errs.IsConfigError(err))
}

func TestConfigureRequiresCompleteDefinition(t *testing.T) {
	h := newHarness(nil)
	def := definition()
	def.List = nil

	err := NewController(def, h.connect).Configure(nil)
	assert.True(t, errs.IsConfigError(err))
}

func TestComputeScopesConnection(t *testing.T) {
	h := newHarness(map[string]int{"a": 1, "c": 3})
	ctrl := NewController(definition(), h.connect)
	require.NoError(t, ctrl.Configure(config.Options{"delete-orphans": true}))

	changes, err := ctrl.ComputeReconciliationChanges(t.Context(),
		[]resource.Object[limit]{obj("a", 2), obj("b", 1)},
		reconcile.ModeApplyAll, reconcile.NewContext(nil, nil, false))
	require.NoError(t, err)

	require.Len(t, changes, 3)
	assert.Equal(t, reconcile.ChangeUpdate, changes[0].Type)
	assert.Equal(t, reconcile.ChangeAdd, changes[1].Type)
	assert.Equal(t, reconcile.ChangeDelete, changes[2].Type)
	assert.Equal(t, "Delete Limit 'c'", changes[2].Description)

	assert.Equal(t, int32(1), h.opened.Load())
	assert.Equal(t, int32(1), h.client.closed.Load())
}

func TestComputeFiltersBothSides(t *testing.T) {
	h := newHarness(map[string]int{"a": 1, "c": 3})
	ctrl := NewController(definition(), h.connect)
	require.NoError(t, ctrl.Configure(config.Options{"delete-orphans": true}))

	sel, err := selector.Parse("app in (a,b)")
	require.NoError(t, err)

	changes, err := ctrl.ComputeReconciliationChanges(t.Context(),
		[]resource.Object[limit]{obj("a", 1), obj("b", 1)},
		reconcile.ModeApplyAll, reconcile.NewContext(selector.Aggregate{sel}, nil, false))
	require.NoError(t, err)

	require.Len(t, changes, 2)
	assert.Equal(t, reconcile.ChangeNone, changes[0].Type)
	assert.Equal(t, reconcile.ChangeAdd, changes[1].Type)
}

func TestComputeKeepsLiveMatchedByDesiredKey(t *testing.T) {
	h := newHarness(map[string]int{"a": 1, "c": 3})
	def := definition()
	list := def.List
	def.List = func(ctx context.Context, c *memClient) ([]resource.Object[limit], error) {
		objs, err := list(ctx, c)
		for i := range objs {
			objs[i].Metadata.Labels = nil
		}
		return objs, err
	}
	ctrl := NewController(def, h.connect)
	require.NoError(t, ctrl.Configure(config.Options{"delete-orphans": true}))

	sel, err := selector.Parse("label:app=a")
	require.NoError(t, err)

	changes, err := ctrl.ComputeReconciliationChanges(t.Context(),
		[]resource.Object[limit]{obj("a", 1)},
		reconcile.ModeApplyAll, reconcile.NewContext(selector.Aggregate{sel}, nil, false))
	require.NoError(t, err)

	require.Len(t, changes, 1)
	assert.Equal(t, reconcile.Key("a"), changes[0].Key)
	assert.Equal(t, reconcile.ChangeNone, changes[0].Type)
}

func TestExecuteHandlersSeeInvocationOptions(t *testing.T) {
	h := newHarness(map[string]int{})
	def := definition()
	var seen config.Options
	handlers := def.Handlers
	def.Handlers = func(c *memClient, opts config.Options) reconcile.HandlerSet[limit] {
		seen = opts
		return handlers(c, opts)
	}
	ctrl := NewController(def, h.connect)
	require.NoError(t, ctrl.Configure(config.Options{"force": false, "mode": "safe"}))

	changes := []reconcile.ResourceChange[limit]{
		{ValueChange: reconcile.NewAdd(limit{Rate: 1}), Kind: "Limit", Key: "a"},
	}
	_, err := ctrl.Execute(t.Context(), changes, reconcile.ModeApplyAll,
		reconcile.NewContext(nil, config.Options{"force": "true"}, false))
	require.NoError(t, err)

	assert.Equal(t, "true", seen["force"])
	assert.Equal(t, "safe", seen["mode"])
}

func TestComputeInvocationOptionsOverride(t *testing.T) {
	h := newHarness(map[string]int{"c": 3})
	ctrl := NewController(definition(), h.connect)
	require.NoError(t, ctrl.Configure(config.Options{"delete-orphans": true}))

	changes, err := ctrl.ComputeReconciliationChanges(t.Context(), nil,
		reconcile.ModeApplyAll, reconcile.NewContext(nil, config.Options{"delete-orphans": false}, false))
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestComputeConnectError(t *testing.T) {
	boom := errors.New("broker unreachable")
	ctrl := NewController(definition(), func(context.Context) (*memClient, error) {
		return nil, boom
	})
	require.NoError(t, ctrl.Configure(nil))

	_, err := ctrl.ComputeReconciliationChanges(t.Context(), nil, reconcile.ModeApplyAll, nil)
	assert.ErrorIs(t, err, boom)
}

func TestExecuteAppliesAndCloses(t *testing.T) {
	h := newHarness(map[string]int{})
	ctrl := NewController(definition(), h.connect, reconcile.WithWorkers(1))
	require.NoError(t, ctrl.Configure(nil))

	changes := []reconcile.ResourceChange[limit]{
		{ValueChange: reconcile.NewAdd(limit{Rate: 1}), Kind: "Limit", Key: "a"},
		{ValueChange: reconcile.NewNone(limit{Rate: 1}), Kind: "Limit", Key: "b"},
	}
	results, err := ctrl.Execute(t.Context(), changes, reconcile.ModeApplyAll, reconcile.NewContext(nil, nil, false))
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, reconcile.StatusChanged, results[0].Status)
	assert.Equal(t, reconcile.StatusOK, results[1].Status)
	assert.Equal(t, []reconcile.ChangeType{reconcile.ChangeAdd}, h.client.applied)
	assert.Equal(t, int32(1), h.client.closed.Load())
}

func TestExecuteDryRunDoesNotConnect(t *testing.T) {
	h := newHarness(map[string]int{})
	ctrl := NewController(definition(), h.connect)
	require.NoError(t, ctrl.Configure(nil))

	changes := []reconcile.ResourceChange[limit]{
		{ValueChange: reconcile.NewAdd(limit{Rate: 1}), Kind: "Limit", Key: "a"},
		{ValueChange: reconcile.NewNone(limit{Rate: 1}), Kind: "Limit", Key: "b"},
	}
	results, err := ctrl.Execute(t.Context(), changes, reconcile.ModeApplyAll, reconcile.NewContext(nil, nil, true))
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, reconcile.StatusSkipped, results[0].Status)
	assert.Equal(t, reconcile.SkipDryRun, results[0].Reason)
	assert.Equal(t, reconcile.StatusOK, results[1].Status)
	assert.Zero(t, h.opened.Load())
}
