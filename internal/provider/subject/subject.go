// Package subject reconciles schema-registry subjects.
package subject

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/controller"
	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/kafka"
	"github.com/dokzlo13/streamctl/internal/provider"
	"github.com/dokzlo13/streamctl/internal/reconcile"
	"github.com/dokzlo13/streamctl/internal/resource"
)

const Name = "subject"

var Type = resource.Type{APIVersion: "schemaregistry.jikkou.io/v1beta2", Kind: "SchemaRegistrySubject"}

// PermanentDelete hard-deletes subjects after soft-deleting them.
var PermanentDelete = config.Bool("permanent-delete", false).
	WithDescription("Permanently delete subjects instead of soft-deleting them")

// Client is the backend API of the schema registry.
type Client interface {
	io.Closer
	ListSubjects(ctx context.Context) ([]kafka.Subject, error)
	RegisterSchema(ctx context.Context, name string, spec kafka.SubjectSpec) (int, error)
	SetCompatibility(ctx context.Context, name, level string) error
	DeleteSubject(ctx context.Context, name string, permanent bool) error
}

func Definition() provider.Definition[kafka.SubjectSpec, Client] {
	return provider.Definition[kafka.SubjectSpec, Client]{
		Name:        Name,
		Description: "Schema registry subjects",
		Type:        Type,
		Modes:       reconcile.AllModes,
		Key:         reconcile.NameKey[kafka.SubjectSpec],
		Equal:       equal,
		Describe:    describe,
		List:        list,
		Handlers:    handlers,
	}
}

// Register adds the subject controller to reg.
func Register(reg *controller.Registry, connect provider.Connector[Client], opts config.Options, execOpts ...reconcile.ExecutorOption) error {
	return provider.Register(reg, Definition(), connect, opts, execOpts...)
}

func list(ctx context.Context, client Client) ([]resource.Object[kafka.SubjectSpec], error) {
	subjects, err := client.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}

	objs := make([]resource.Object[kafka.SubjectSpec], 0, len(subjects))
	for _, s := range subjects {
		meta := resource.Meta{
			Name:        s.Name,
			Annotations: map[string]string{"schemaregistry.jikkou.io/version": fmt.Sprint(s.Version)},
		}
		objs = append(objs, resource.New(Type, meta, s.Spec))
	}
	return objs, nil
}

// equal compares a live subject with a desired one. A desired subject
// without a compatibility level leaves the live level unmanaged.
func equal(live, desired kafka.SubjectSpec) bool {
	if !sameSchema(live, desired) {
		return false
	}
	return desired.CompatibilityLevel == "" ||
		strings.EqualFold(live.CompatibilityLevel, desired.CompatibilityLevel)
}

func sameSchema(a, b kafka.SubjectSpec) bool {
	return a.NormalizedType() == b.NormalizedType() &&
		normalizeSchema(a.Schema) == normalizeSchema(b.Schema)
}

// normalizeSchema strips insignificant whitespace from JSON schemas.
func normalizeSchema(schema string) string {
	schema = strings.TrimSpace(schema)
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(schema)); err != nil {
		return schema
	}
	return buf.String()
}

func handlers(client Client, opts config.Options) reconcile.HandlerSet[kafka.SubjectSpec] {
	permanent := PermanentDelete.Get(opts)

	return reconcile.HandlerSet[kafka.SubjectSpec]{
		reconcile.ChangeAdd: reconcile.HandlerFunc[kafka.SubjectSpec](func(ctx context.Context, c reconcile.ResourceChange[kafka.SubjectSpec]) error {
			spec := *c.After
			if _, err := client.RegisterSchema(ctx, string(c.Key), spec); err != nil {
				return wrap("register schema", c.Key, err)
			}
			if spec.CompatibilityLevel != "" {
				return wrap("set compatibility", c.Key, client.SetCompatibility(ctx, string(c.Key), spec.CompatibilityLevel))
			}
			return nil
		}),
		reconcile.ChangeUpdate: reconcile.HandlerFunc[kafka.SubjectSpec](func(ctx context.Context, c reconcile.ResourceChange[kafka.SubjectSpec]) error {
			before, after := *c.Before, *c.After
			if !sameSchema(before, after) {
				if _, err := client.RegisterSchema(ctx, string(c.Key), after); err != nil {
					return wrap("register schema", c.Key, err)
				}
			}
			if after.CompatibilityLevel != "" && !strings.EqualFold(before.CompatibilityLevel, after.CompatibilityLevel) {
				return wrap("set compatibility", c.Key, client.SetCompatibility(ctx, string(c.Key), after.CompatibilityLevel))
			}
			return nil
		}),
		reconcile.ChangeDelete: reconcile.HandlerFunc[kafka.SubjectSpec](func(ctx context.Context, c reconcile.ResourceChange[kafka.SubjectSpec]) error {
			if err := client.DeleteSubject(ctx, string(c.Key), false); err != nil {
				return wrap("delete subject", c.Key, err)
			}
			if permanent {
				return wrap("delete subject permanently", c.Key, client.DeleteSubject(ctx, string(c.Key), true))
			}
			return nil
		}),
	}
}

func wrap(op string, key reconcile.Key, err error) error {
	if err == nil {
		return nil
	}
	return errs.Backend(op, string(key), err)
}

func describe(_ string, key reconcile.Key, c reconcile.ValueChange[kafka.SubjectSpec]) string {
	switch c.Type {
	case reconcile.ChangeAdd:
		desc := fmt.Sprintf("Register %s schema for subject '%s'", c.After.NormalizedType(), key)
		if c.After.CompatibilityLevel != "" {
			desc += fmt.Sprintf(" (compatibility=%s)", c.After.CompatibilityLevel)
		}
		return desc
	case reconcile.ChangeUpdate:
		var parts []string
		if !sameSchema(*c.Before, *c.After) {
			parts = append(parts, "register new schema version")
		}
		if c.After.CompatibilityLevel != "" && !strings.EqualFold(c.Before.CompatibilityLevel, c.After.CompatibilityLevel) {
			parts = append(parts, fmt.Sprintf("compatibility %s -> %s", orNone(c.Before.CompatibilityLevel), c.After.CompatibilityLevel))
		}
		return fmt.Sprintf("Update subject '%s': %s", key, strings.Join(parts, ", "))
	case reconcile.ChangeDelete:
		return fmt.Sprintf("Delete subject '%s'", key)
	default:
		return fmt.Sprintf("Subject '%s' is up to date", key)
	}
}

func orNone(level string) string {
	if level == "" {
		return "<unset>"
	}
	return level
}
