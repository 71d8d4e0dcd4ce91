package topic

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/streamctl/internal/backend"
	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/controller"
	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/kafka"
	"github.com/dokzlo13/streamctl/internal/reconcile"
	"github.com/dokzlo13/streamctl/internal/resource"
	"github.com/dokzlo13/streamctl/internal/selector"
)

type fixture struct {
	sandbox  *backend.Sandbox
	registry *controller.Registry
}

func setup(t *testing.T, opts config.Options) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sandbox.sqlite")

	sb, err := backend.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { sb.Close() })

	reg := controller.NewRegistry()
	require.NoError(t, Register(reg, backend.Connector[Client](path), opts))
	reg.Freeze()

	return &fixture{sandbox: sb, registry: reg}
}

func (f *fixture) seed(t *testing.T, topics ...kafka.Topic) {
	t.Helper()
	for _, topic := range topics {
		require.NoError(t, f.sandbox.CreateTopic(t.Context(), topic))
	}
}

func (f *fixture) reconcile(t *testing.T, docs string, mode reconcile.Mode, rc *reconcile.Context) *controller.Report {
	t.Helper()
	parsed, err := resource.Parse(strings.NewReader(docs))
	require.NoError(t, err)
	report, err := f.registry.Reconcile(t.Context(), parsed, mode, rc)
	require.NoError(t, err)
	return report
}

func (f *fixture) topics(t *testing.T) map[string]kafka.TopicSpec {
	t.Helper()
	topics, err := f.sandbox.ListTopics(t.Context())
	require.NoError(t, err)
	out := make(map[string]kafka.TopicSpec, len(topics))
	for _, topic := range topics {
		out[topic.Name] = topic.Spec
	}
	return out
}

func spec(partitions int32, replicas int16, configs map[string]string) kafka.TopicSpec {
	return kafka.TopicSpec{Partitions: partitions, Replicas: replicas, Configs: configs}
}

const desired = `
apiVersion: kafka.jikkou.io/v1beta2
kind: KafkaTopicList
metadata:
  labels:
    team: payments
items:
  - metadata:
      name: orders
    spec:
      partitions: 6
      replicas: 1
      configs:
        retention.ms: "86400000"
  - metadata:
      name: invoices
    spec:
      partitions: 3
      replicas: 1
`

func TestReconcileTopics(t *testing.T) {
	f := setup(t, config.Options{"delete-orphans": true})
	f.seed(t,
		kafka.Topic{Name: "orders", Spec: spec(3, 1, nil)},
		kafka.Topic{Name: "legacy", Spec: spec(1, 1, nil)},
	)

	report := f.reconcile(t, desired, reconcile.ModeApplyAll, reconcile.NewContext(nil, nil, false))

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, reconcile.ChangeUpdate, report.Outcomes[0].Type)
	assert.Equal(t, "Update topic 'orders': partitions 3 -> 6, set retention.ms=86400000", report.Outcomes[0].Description)
	assert.Equal(t, reconcile.ChangeAdd, report.Outcomes[1].Type)
	assert.Equal(t, reconcile.ChangeDelete, report.Outcomes[2].Type)
	assert.Zero(t, report.Failed())

	assert.Equal(t, map[string]kafka.TopicSpec{
		"orders":   spec(6, 1, map[string]string{"retention.ms": "86400000"}),
		"invoices": spec(3, 1, nil),
	}, f.topics(t))

	// A second run is a no-op.
	again := f.reconcile(t, desired, reconcile.ModeApplyAll, reconcile.NewContext(nil, nil, false))
	assert.Zero(t, again.Changed())
	for _, o := range again.Outcomes {
		assert.Equal(t, reconcile.StatusOK, o.Status)
	}
}

func TestReconcileTopicsKeepsOrphansByDefault(t *testing.T) {
	f := setup(t, nil)
	f.seed(t, kafka.Topic{Name: "legacy", Spec: spec(1, 1, nil)})

	report := f.reconcile(t, desired, reconcile.ModeApplyAll, reconcile.NewContext(nil, nil, false))

	assert.Len(t, report.Outcomes, 2)
	assert.Contains(t, f.topics(t), "legacy")
}

func TestReconcileTopicsDeleteOrphansPerInvocation(t *testing.T) {
	f := setup(t, nil)
	f.seed(t, kafka.Topic{Name: "legacy", Spec: spec(1, 1, nil)})

	rc := reconcile.NewContext(nil, config.Options{"delete-orphans": "true"}, false)
	report := f.reconcile(t, desired, reconcile.ModeDelete, rc)

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, reconcile.StatusSkipped, report.Outcomes[0].Status)
	assert.Equal(t, reconcile.SkipModeExcluded, report.Outcomes[0].Reason)
	assert.Equal(t, reconcile.StatusChanged, report.Outcomes[2].Status)
	assert.NotContains(t, f.topics(t), "legacy")
	assert.NotContains(t, f.topics(t), "orders")
}

func TestReconcileTopicsDryRun(t *testing.T) {
	f := setup(t, config.Options{"delete-orphans": true})
	f.seed(t, kafka.Topic{Name: "legacy", Spec: spec(1, 1, nil)})

	report := f.reconcile(t, desired, reconcile.ModeApplyAll, reconcile.NewContext(nil, nil, true))

	require.Len(t, report.Outcomes, 3)
	for _, o := range report.Outcomes {
		assert.Equal(t, reconcile.StatusSkipped, o.Status)
		assert.Equal(t, reconcile.SkipDryRun, o.Reason)
	}
	assert.Equal(t, map[string]kafka.TopicSpec{"legacy": spec(1, 1, nil)}, f.topics(t))
}

func TestReconcileTopicsBackendRejection(t *testing.T) {
	f := setup(t, nil)
	f.seed(t, kafka.Topic{Name: "orders", Spec: spec(12, 1, nil)})

	report := f.reconcile(t, desired, reconcile.ModeApplyAll, reconcile.NewContext(nil, nil, false))

	require.Len(t, report.Outcomes, 2)
	failed := report.Outcomes[0]
	assert.Equal(t, reconcile.StatusFailed, failed.Status)
	assert.True(t, errs.IsBackendError(failed.Err))
	assert.ErrorIs(t, failed.Err, backend.ErrInvalid)

	// The other change still went through.
	assert.Equal(t, reconcile.StatusChanged, report.Outcomes[1].Status)
	assert.Equal(t, 1, report.Failed())
}

func TestReconcileTopicsWithSelector(t *testing.T) {
	f := setup(t, config.Options{"delete-orphans": true})
	f.seed(t, kafka.Topic{Name: "legacy", Spec: spec(1, 1, nil)})

	sel, err := selector.Parse("name:^orders$")
	require.NoError(t, err)

	report := f.reconcile(t, desired, reconcile.ModeApplyAll, reconcile.NewContext(selector.Aggregate{sel}, nil, false))

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, reconcile.Key("orders"), report.Outcomes[0].Key)
	assert.Contains(t, f.topics(t), "legacy")
}

func TestReconcileTopicsLabelSelectorIsIdempotent(t *testing.T) {
	f := setup(t, config.Options{"delete-orphans": true})
	f.seed(t, kafka.Topic{Name: "legacy", Spec: spec(1, 1, nil)})

	sel, err := selector.Parse("team=payments")
	require.NoError(t, err)
	rc := func() *reconcile.Context { return reconcile.NewContext(selector.Aggregate{sel}, nil, false) }

	first := f.reconcile(t, desired, reconcile.ModeApplyAll, rc())
	require.Len(t, first.Outcomes, 2)
	assert.Equal(t, 2, first.Changed())

	// Live topics carry no labels; they stay in scope through their desired
	// counterpart, and unlabelled orphans are left alone.
	again := f.reconcile(t, desired, reconcile.ModeApplyAll, rc())
	require.Len(t, again.Outcomes, 2)
	for _, o := range again.Outcomes {
		assert.Equal(t, reconcile.ChangeNone, o.Type)
		assert.Equal(t, reconcile.StatusOK, o.Status)
	}
	assert.Zero(t, again.Failed())
	assert.Contains(t, f.topics(t), "legacy")
}

func TestDescribe(t *testing.T) {
	before := spec(3, 1, map[string]string{"cleanup.policy": "delete", "retention.ms": "1000"})
	after := spec(3, 1, map[string]string{"cleanup.policy": "compact", "segment.ms": "10"})

	tests := []struct {
		name   string
		change reconcile.ValueChange[kafka.TopicSpec]
		want   string
	}{
		{
			name:   "add",
			change: reconcile.NewAdd(after),
			want:   "Create topic 'orders' (partitions=3, replicas=1, configs=2)",
		},
		{
			name:   "update",
			change: reconcile.NewUpdate(before, after),
			want:   "Update topic 'orders': cleanup.policy delete -> compact, unset retention.ms, set segment.ms=10",
		},
		{
			name:   "delete",
			change: reconcile.NewDelete(before),
			want:   "Delete topic 'orders'",
		},
		{
			name:   "none",
			change: reconcile.NewNone(before),
			want:   "Topic 'orders' is up to date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describe(Type.Kind, "orders", tt.change))
		})
	}
}
