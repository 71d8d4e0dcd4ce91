// Package quota reconciles client quotas. A quota entity is identified by
// its user and client ID; "default" stands in for a missing part.
package quota

import (
	"context"
	"fmt"
	"io"

	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/controller"
	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/kafka"
	"github.com/dokzlo13/streamctl/internal/provider"
	"github.com/dokzlo13/streamctl/internal/reconcile"
	"github.com/dokzlo13/streamctl/internal/resource"
)

const Name = "quota"

var Type = resource.Type{APIVersion: "kafka.aiven.io/v1beta1", Kind: "KafkaQuota"}

// Client is the backend API used to manage quotas. Quotas have no
// separate create call: setting limits on an entity creates it.
type Client interface {
	io.Closer
	ListQuotas(ctx context.Context) ([]kafka.Quota, error)
	UpsertQuota(ctx context.Context, quota kafka.Quota) error
	DeleteQuota(ctx context.Context, quota kafka.Quota) error
}

func Definition() provider.Definition[kafka.Quota, Client] {
	return provider.Definition[kafka.Quota, Client]{
		Name:        Name,
		Description: "Kafka client quotas",
		Type:        Type,
		Modes:       reconcile.AllModes,
		Key:         key,
		Equal:       reconcile.DeepEqual[kafka.Quota],
		Describe:    describe,
		List:        list,
		Handlers:    handlers,
	}
}

// Register adds the quota controller to reg.
func Register(reg *controller.Registry, connect provider.Connector[Client], opts config.Options, execOpts ...reconcile.ExecutorOption) error {
	return provider.Register(reg, Definition(), connect, opts, execOpts...)
}

func key(obj resource.Object[kafka.Quota]) reconcile.Key {
	return reconcile.Key(obj.Spec.Key())
}

func list(ctx context.Context, client Client) ([]resource.Object[kafka.Quota], error) {
	quotas, err := client.ListQuotas(ctx)
	if err != nil {
		return nil, err
	}

	objs := make([]resource.Object[kafka.Quota], 0, len(quotas))
	for _, q := range quotas {
		objs = append(objs, resource.New(Type, resource.Meta{Name: q.Key()}, q))
	}
	return objs, nil
}

func handlers(client Client, _ config.Options) reconcile.HandlerSet[kafka.Quota] {
	upsert := reconcile.HandlerFunc[kafka.Quota](func(ctx context.Context, c reconcile.ResourceChange[kafka.Quota]) error {
		return wrap("set quota", c.Key, client.UpsertQuota(ctx, *c.After))
	})
	return reconcile.HandlerSet[kafka.Quota]{
		reconcile.ChangeAdd:    upsert,
		reconcile.ChangeUpdate: upsert,
		reconcile.ChangeDelete: reconcile.HandlerFunc[kafka.Quota](func(ctx context.Context, c reconcile.ResourceChange[kafka.Quota]) error {
			return wrap("delete quota", c.Key, client.DeleteQuota(ctx, *c.Before))
		}),
	}
}

func wrap(op string, key reconcile.Key, err error) error {
	if err == nil {
		return nil
	}
	return errs.Backend(op, string(key), err)
}

func entity(q kafka.Quota) string {
	switch {
	case q.User != "" && q.ClientID != "":
		return fmt.Sprintf("user '%s' and client '%s'", q.User, q.ClientID)
	case q.User != "":
		return fmt.Sprintf("user '%s'", q.User)
	case q.ClientID != "":
		return fmt.Sprintf("client '%s'", q.ClientID)
	default:
		return "default entity"
	}
}

func describe(_ string, _ reconcile.Key, c reconcile.ValueChange[kafka.Quota]) string {
	q := *c.Value()
	switch c.Type {
	case reconcile.ChangeAdd:
		return fmt.Sprintf("Create quota for %s (%s)", entity(q), q.Limits())
	case reconcile.ChangeUpdate:
		return fmt.Sprintf("Update quota for %s (%s -> %s)", entity(q), c.Before.Limits(), c.After.Limits())
	case reconcile.ChangeDelete:
		return fmt.Sprintf("Delete quota for %s", entity(q))
	default:
		return fmt.Sprintf("Quota for %s is up to date", entity(q))
	}
}
