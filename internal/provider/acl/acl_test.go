package acl

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/streamctl/internal/backend"
	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/controller"
	"github.com/dokzlo13/streamctl/internal/kafka"
	"github.com/dokzlo13/streamctl/internal/reconcile"
	"github.com/dokzlo13/streamctl/internal/resource"
)

func setup(t *testing.T, opts config.Options) (*backend.Sandbox, *controller.Registry) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sandbox.sqlite")

	sb, err := backend.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { sb.Close() })

	reg := controller.NewRegistry()
	require.NoError(t, Register(reg, backend.Connector[Client](path), opts))
	reg.Freeze()
	return sb, reg
}

func run(t *testing.T, reg *controller.Registry, docs string, mode reconcile.Mode) *controller.Report {
	t.Helper()
	parsed, err := resource.Parse(strings.NewReader(docs))
	require.NoError(t, err)
	report, err := reg.Reconcile(t.Context(), parsed, mode, reconcile.NewContext(nil, nil, false))
	require.NoError(t, err)
	return report
}

const desired = `
apiVersion: kafka.aiven.io/v1beta1
kind: KafkaTopicAclEntry
metadata:
  name: alice-orders
spec:
  username: alice
  topic: orders
  permission: readwrite
---
apiVersion: kafka.aiven.io/v1beta1
kind: KafkaTopicAclEntry
metadata:
  name: bob-orders
spec:
  username: bob
  topic: orders
  permission: read
`

func TestReconcileACLs(t *testing.T) {
	sb, reg := setup(t, config.Options{"delete-orphans": true})
	ctx := t.Context()
	require.NoError(t, sb.CreateACL(ctx, kafka.ACLEntry{Username: "alice", Topic: "orders", Permission: kafka.PermissionRead}))
	require.NoError(t, sb.CreateACL(ctx, kafka.ACLEntry{Username: "mallory", Topic: "orders", Permission: kafka.PermissionAdmin}))

	report := run(t, reg, desired, reconcile.ModeApplyAll)

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, reconcile.Key("alice:orders"), report.Outcomes[0].Key)
	assert.Equal(t, reconcile.ChangeUpdate, report.Outcomes[0].Type)
	assert.Equal(t, "Change access of user 'alice' on topic 'orders' from 'read' to 'readwrite'", report.Outcomes[0].Description)
	assert.Equal(t, reconcile.ChangeAdd, report.Outcomes[1].Type)
	assert.Equal(t, reconcile.ChangeDelete, report.Outcomes[2].Type)
	assert.Zero(t, report.Failed())

	acls, err := sb.ListACLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []kafka.ACLEntry{
		{Username: "alice", Topic: "orders", Permission: kafka.PermissionReadWrite},
		{Username: "bob", Topic: "orders", Permission: kafka.PermissionRead},
	}, acls)
}

func TestReconcileACLsUpdateOnlyMode(t *testing.T) {
	sb, reg := setup(t, nil)
	ctx := t.Context()
	require.NoError(t, sb.CreateACL(ctx, kafka.ACLEntry{Username: "alice", Topic: "orders", Permission: kafka.PermissionRead}))

	report := run(t, reg, desired, reconcile.ModeUpdate)

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, reconcile.StatusChanged, report.Outcomes[0].Status)
	assert.Equal(t, reconcile.StatusSkipped, report.Outcomes[1].Status)
	assert.Equal(t, reconcile.SkipModeExcluded, report.Outcomes[1].Reason)

	acls, err := sb.ListACLs(ctx)
	require.NoError(t, err)
	assert.Len(t, acls, 1)
}

func TestReconcileACLsInvalidPermission(t *testing.T) {
	_, reg := setup(t, nil)

	report := run(t, reg, `
apiVersion: kafka.aiven.io/v1beta1
kind: KafkaTopicAclEntry
metadata:
  name: x
spec:
  username: eve
  topic: orders
  permission: owner
`, reconcile.ModeCreate)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, reconcile.StatusFailed, report.Outcomes[0].Status)
	assert.ErrorIs(t, report.Outcomes[0].Err, backend.ErrInvalid)
}

func TestDescribe(t *testing.T) {
	entry := kafka.ACLEntry{Username: "alice", Topic: "orders", Permission: kafka.PermissionRead}

	assert.Equal(t, "Grant 'read' access to topic 'orders' for user 'alice'",
		describe(Type.Kind, "alice:orders", reconcile.NewAdd(entry)))
	assert.Equal(t, "Revoke 'read' access to topic 'orders' for user 'alice'",
		describe(Type.Kind, "alice:orders", reconcile.NewDelete(entry)))
	assert.Equal(t, "User 'alice' already has 'read' access to topic 'orders'",
		describe(Type.Kind, "alice:orders", reconcile.NewNone(entry)))
}

func TestReconcileACLsFailedReplaceKeepsEntry(t *testing.T) {
	sb, reg := setup(t, nil)
	ctx := t.Context()
	require.NoError(t, sb.CreateACL(ctx, kafka.ACLEntry{Username: "eve", Topic: "orders", Permission: kafka.PermissionRead}))

	report := run(t, reg, `
apiVersion: kafka.aiven.io/v1beta1
kind: KafkaTopicAclEntry
metadata:
  name: eve-orders
spec:
  username: eve
  topic: orders
  permission: owner
`, reconcile.ModeApplyAll)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, reconcile.ChangeUpdate, report.Outcomes[0].Type)
	assert.Equal(t, reconcile.StatusFailed, report.Outcomes[0].Status)
	assert.ErrorContains(t, report.Outcomes[0].Err, `unknown permission "owner"`)

	acls, err := sb.ListACLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []kafka.ACLEntry{{Username: "eve", Topic: "orders", Permission: kafka.PermissionRead}}, acls)
}

type failingCreate struct {
	Client
	creates int
}

func (f *failingCreate) CreateACL(ctx context.Context, entry kafka.ACLEntry) error {
	f.creates++
	if f.creates == 1 {
		return errors.New("broker rejected entry")
	}
	return f.Client.CreateACL(ctx, entry)
}

func TestReplaceRestoresPreviousEntry(t *testing.T) {
	sb, _ := setup(t, nil)
	ctx := t.Context()
	before := kafka.ACLEntry{Username: "eve", Topic: "orders", Permission: kafka.PermissionRead}
	after := kafka.ACLEntry{Username: "eve", Topic: "orders", Permission: kafka.PermissionWrite}
	require.NoError(t, sb.CreateACL(ctx, before))

	client := &failingCreate{Client: sb}
	change := reconcile.ResourceChange[kafka.ACLEntry]{
		ValueChange: reconcile.NewUpdate(before, after),
		Kind:        Type.Kind,
		Key:         reconcile.Key(before.Key()),
	}
	err := handlers(client, nil)[reconcile.ChangeUpdate].Apply(ctx, change)
	require.ErrorContains(t, err, "broker rejected entry")

	acls, err := sb.ListACLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []kafka.ACLEntry{before}, acls)
}
