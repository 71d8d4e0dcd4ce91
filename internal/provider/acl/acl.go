// Package acl reconciles per-topic ACL entries. An entry is identified by
// its user and topic; changing the permission replaces the entry.
package acl

import (
	"context"
	"errors"
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

const Name = "acl"

var Type = resource.Type{APIVersion: "kafka.aiven.io/v1beta1", Kind: "KafkaTopicAclEntry"}

// Client is the backend API used to manage ACL entries.
type Client interface {
	io.Closer
	ListACLs(ctx context.Context) ([]kafka.ACLEntry, error)
	CreateACL(ctx context.Context, entry kafka.ACLEntry) error
	DeleteACL(ctx context.Context, entry kafka.ACLEntry) error
}

func Definition() provider.Definition[kafka.ACLEntry, Client] {
	return provider.Definition[kafka.ACLEntry, Client]{
		Name:        Name,
		Description: "Kafka topic ACL entries",
		Type:        Type,
		Modes:       reconcile.AllModes,
		Key:         key,
		Equal:       reconcile.DeepEqual[kafka.ACLEntry],
		Describe:    describe,
		List:        list,
		Handlers:    handlers,
	}
}

// Register adds the ACL controller to reg.
func Register(reg *controller.Registry, connect provider.Connector[Client], opts config.Options, execOpts ...reconcile.ExecutorOption) error {
	return provider.Register(reg, Definition(), connect, opts, execOpts...)
}

func key(obj resource.Object[kafka.ACLEntry]) reconcile.Key {
	return reconcile.Key(obj.Spec.Key())
}

func list(ctx context.Context, client Client) ([]resource.Object[kafka.ACLEntry], error) {
	entries, err := client.ListACLs(ctx)
	if err != nil {
		return nil, err
	}

	objs := make([]resource.Object[kafka.ACLEntry], 0, len(entries))
	for _, e := range entries {
		objs = append(objs, resource.New(Type, resource.Meta{Name: e.Key()}, e))
	}
	return objs, nil
}

func handlers(client Client, _ config.Options) reconcile.HandlerSet[kafka.ACLEntry] {
	return reconcile.HandlerSet[kafka.ACLEntry]{
		reconcile.ChangeAdd: reconcile.HandlerFunc[kafka.ACLEntry](func(ctx context.Context, c reconcile.ResourceChange[kafka.ACLEntry]) error {
			return wrap("create acl", c.Key, client.CreateACL(ctx, *c.After))
		}),
		reconcile.ChangeUpdate: reconcile.HandlerFunc[kafka.ACLEntry](func(ctx context.Context, c reconcile.ResourceChange[kafka.ACLEntry]) error {
			if !c.After.Permission.Valid() {
				return wrap("replace acl", c.Key, fmt.Errorf("unknown permission %q", c.After.Permission))
			}
			if err := client.DeleteACL(ctx, *c.Before); err != nil {
				return wrap("replace acl", c.Key, err)
			}
			if err := client.CreateACL(ctx, *c.After); err != nil {
				// Put the previous grant back so a failed replace leaves the
				// entry as it was.
				if restoreErr := client.CreateACL(ctx, *c.Before); restoreErr != nil {
					err = errors.Join(err, fmt.Errorf("restore previous entry: %w", restoreErr))
				}
				return wrap("replace acl", c.Key, err)
			}
			return nil
		}),
		reconcile.ChangeDelete: reconcile.HandlerFunc[kafka.ACLEntry](func(ctx context.Context, c reconcile.ResourceChange[kafka.ACLEntry]) error {
			return wrap("delete acl", c.Key, client.DeleteACL(ctx, *c.Before))
		}),
	}
}

func wrap(op string, key reconcile.Key, err error) error {
	if err == nil {
		return nil
	}
	return errs.Backend(op, string(key), err)
}

func describe(_ string, _ reconcile.Key, c reconcile.ValueChange[kafka.ACLEntry]) string {
	entry := c.Value()
	switch c.Type {
	case reconcile.ChangeAdd:
		return fmt.Sprintf("Grant '%s' access to topic '%s' for user '%s'", entry.Permission, entry.Topic, entry.Username)
	case reconcile.ChangeUpdate:
		return fmt.Sprintf("Change access of user '%s' on topic '%s' from '%s' to '%s'",
			entry.Username, entry.Topic, c.Before.Permission, c.After.Permission)
	case reconcile.ChangeDelete:
		return fmt.Sprintf("Revoke '%s' access to topic '%s' for user '%s'", entry.Permission, entry.Topic, entry.Username)
	default:
		return fmt.Sprintf("User '%s' already has '%s' access to topic '%s'", entry.Username, entry.Permission, entry.Topic)
	}
}
