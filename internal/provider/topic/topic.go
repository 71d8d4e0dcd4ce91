// Package topic reconciles Kafka topics.
package topic

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/controller"
	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/kafka"
	"github.com/dokzlo13/streamctl/internal/provider"
	"github.com/dokzlo13/streamctl/internal/reconcile"
	"github.com/dokzlo13/streamctl/internal/resource"
)

const Name = "topic"

// Type is the resource type handled by this provider.
var Type = resource.Type{APIVersion: "kafka.jikkou.io/v1beta2", Kind: "KafkaTopic"}

// Client is the backend API used to manage topics.
type Client interface {
	io.Closer
	ListTopics(ctx context.Context) ([]kafka.Topic, error)
	CreateTopic(ctx context.Context, topic kafka.Topic) error
	AlterTopic(ctx context.Context, topic kafka.Topic) error
	DeleteTopic(ctx context.Context, name string) error
}

// Definition returns the provider definition for topics.
func Definition() provider.Definition[kafka.TopicSpec, Client] {
	return provider.Definition[kafka.TopicSpec, Client]{
		Name:        Name,
		Description: "Kafka topics",
		Type:        Type,
		Modes:       reconcile.AllModes,
		Key:         reconcile.NameKey[kafka.TopicSpec],
		Equal:       reconcile.DeepEqual[kafka.TopicSpec],
		Describe:    describe,
		List:        list,
		Handlers:    handlers,
	}
}

// Register adds the topic controller to reg.
func Register(reg *controller.Registry, connect provider.Connector[Client], opts config.Options, execOpts ...reconcile.ExecutorOption) error {
	return provider.Register(reg, Definition(), connect, opts, execOpts...)
}

func list(ctx context.Context, client Client) ([]resource.Object[kafka.TopicSpec], error) {
	topics, err := client.ListTopics(ctx)
	if err != nil {
		return nil, err
	}

	objs := make([]resource.Object[kafka.TopicSpec], 0, len(topics))
	for _, t := range topics {
		objs = append(objs, resource.New(Type, resource.Meta{Name: t.Name}, t.Spec))
	}
	return objs, nil
}

func handlers(client Client, _ config.Options) reconcile.HandlerSet[kafka.TopicSpec] {
	return reconcile.HandlerSet[kafka.TopicSpec]{
		reconcile.ChangeAdd: reconcile.HandlerFunc[kafka.TopicSpec](func(ctx context.Context, c reconcile.ResourceChange[kafka.TopicSpec]) error {
			return wrap("create topic", c.Key, client.CreateTopic(ctx, kafka.Topic{Name: string(c.Key), Spec: *c.After}))
		}),
		reconcile.ChangeUpdate: reconcile.HandlerFunc[kafka.TopicSpec](func(ctx context.Context, c reconcile.ResourceChange[kafka.TopicSpec]) error {
			return wrap("alter topic", c.Key, client.AlterTopic(ctx, kafka.Topic{Name: string(c.Key), Spec: *c.After}))
		}),
		reconcile.ChangeDelete: reconcile.HandlerFunc[kafka.TopicSpec](func(ctx context.Context, c reconcile.ResourceChange[kafka.TopicSpec]) error {
			return wrap("delete topic", c.Key, client.DeleteTopic(ctx, string(c.Key)))
		}),
	}
}

func wrap(op string, key reconcile.Key, err error) error {
	if err == nil {
		return nil
	}
	return errs.Backend(op, string(key), err)
}

func describe(_ string, key reconcile.Key, c reconcile.ValueChange[kafka.TopicSpec]) string {
	switch c.Type {
	case reconcile.ChangeAdd:
		return fmt.Sprintf("Create topic '%s' (partitions=%d, replicas=%d%s)",
			key, c.After.Partitions, c.After.Replicas, configSummary(c.After.Configs))
	case reconcile.ChangeUpdate:
		return fmt.Sprintf("Update topic '%s': %s", key, strings.Join(diff(*c.Before, *c.After), ", "))
	case reconcile.ChangeDelete:
		return fmt.Sprintf("Delete topic '%s'", key)
	default:
		return fmt.Sprintf("Topic '%s' is up to date", key)
	}
}

func configSummary(configs map[string]string) string {
	if len(configs) == 0 {
		return ""
	}
	return fmt.Sprintf(", configs=%d", len(configs))
}

// diff lists the differences between two topic specs in a stable order.
func diff(before, after kafka.TopicSpec) []string {
	var out []string
	if before.Partitions != after.Partitions {
		out = append(out, fmt.Sprintf("partitions %d -> %d", before.Partitions, after.Partitions))
	}
	if before.Replicas != after.Replicas {
		out = append(out, fmt.Sprintf("replicas %d -> %d", before.Replicas, after.Replicas))
	}

	keys := make(map[string]struct{}, len(before.Configs)+len(after.Configs))
	for k := range before.Configs {
		keys[k] = struct{}{}
	}
	for k := range after.Configs {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		old, hadOld := before.Configs[k]
		cur, hasCur := after.Configs[k]
		switch {
		case !hadOld:
			out = append(out, fmt.Sprintf("set %s=%s", k, cur))
		case !hasCur:
			out = append(out, fmt.Sprintf("unset %s", k))
		case old != cur:
			out = append(out, fmt.Sprintf("%s %s -> %s", k, old, cur))
		}
	}
	return out
}
