// Package provider holds the building blocks shared by resource providers:
// a generic controller that scopes a backend connection to each call.
package provider

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/reconcile"
	"github.com/dokzlo13/streamctl/internal/resource"
	"github.com/dokzlo13/streamctl/internal/selector"
)

// DeleteOrphans is honored by every provider: live resources absent from
// the desired set are deleted only when it is true.
var DeleteOrphans = config.Bool("delete-orphans", false).
	WithDescription("Delete live resources that are not part of the desired state")

// Connector opens a backend client. Each controller call opens its own
// client and closes it before returning.
type Connector[C io.Closer] func(ctx context.Context) (C, error)

// Definition describes a resource kind to the generic Controller.
type Definition[T any, C io.Closer] struct {
	// Name is the provider's section under "providers" in the config file.
	Name        string
	Description string

	Type  resource.Type
	Modes []reconcile.Mode

	Key      reconcile.KeyFunc[T]
	Equal    func(a, b T) bool
	Describe reconcile.DescribeFunc[T]

	// List fetches the live resources of this kind.
	List func(ctx context.Context, client C) ([]resource.Object[T], error)

	// Handlers builds the handler set bound to an open client.
	Handlers func(client C, opts config.Options) reconcile.HandlerSet[T]
}

// Controller implements reconcile.Controller on top of a Definition.
type Controller[T any, C io.Closer] struct {
	def      Definition[T, C]
	connect  Connector[C]
	execOpts []reconcile.ExecutorOption
	opts     config.Options
}

// NewController creates a controller for def.
func NewController[T any, C io.Closer](def Definition[T, C], connect Connector[C], execOpts ...reconcile.ExecutorOption) *Controller[T, C] {
	return &Controller[T, C]{
		def:      def,
		connect:  connect,
		execOpts: execOpts,
		opts:     config.Options{},
	}
}

// Definition returns the controller's definition.
func (c *Controller[T, C]) Definition() Definition[T, C] {
	return c.def
}

// Configure implements reconcile.Controller.
func (c *Controller[T, C]) Configure(opts config.Options) error {
	if c.connect == nil {
		return errs.Configf(c.def.Name, "no backend connector")
	}
	if c.def.List == nil || c.def.Handlers == nil {
		return errs.Configf(c.def.Name, "incomplete provider definition")
	}
	if opts == nil {
		opts = config.Options{}
	}
	c.opts = opts
	return nil
}

// ComputeReconciliationChanges implements reconcile.Controller.
func (c *Controller[T, C]) ComputeReconciliationChanges(ctx context.Context, resources []resource.Object[T], mode reconcile.Mode, rc *reconcile.Context) ([]reconcile.ResourceChange[T], error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect: %w", c.def.Name, err)
	}
	defer closeClient(c.def.Name, client)

	live, err := c.def.List(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list live resources: %w", c.def.Name, err)
	}

	var selectors selector.Aggregate
	opts := c.opts
	if rc != nil {
		selectors = rc.Selectors
		opts = opts.With(rc.Options)
	}

	expected := selector.Filter(selectors, resources)
	actual := inScope(selectors, live, expected, c.def.Key)

	computer := reconcile.NewChangeComputer(reconcile.ComputeOptions[T]{
		Key:           c.def.Key,
		Equal:         c.def.Equal,
		Describe:      c.def.Describe,
		DeleteOrphans: DeleteOrphans.Get(opts),
	})
	changes := computer.ComputeChanges(actual, expected)

	log.Debug().
		Str("provider", c.def.Name).
		Str("mode", string(mode)).
		Int("live", len(live)).
		Int("actual", len(actual)).
		Int("expected", len(expected)).
		Int("changes", len(changes)).
		Msg("Computed reconciliation changes")

	return changes, nil
}

// Execute implements reconcile.Controller. Under dry-run no connection is
// opened since no handler runs.
func (c *Controller[T, C]) Execute(ctx context.Context, changes []reconcile.ResourceChange[T], mode reconcile.Mode, rc *reconcile.Context) ([]reconcile.ChangeResult[T], error) {
	opts := c.opts
	if rc != nil {
		if rc.DryRun {
			return reconcile.NewExecutor(reconcile.HandlerSet[T]{}, c.execOpts...).Execute(ctx, changes, true), nil
		}
		opts = opts.With(rc.Options)
	}

	client, err := c.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect: %w", c.def.Name, err)
	}
	defer closeClient(c.def.Name, client)

	exec := reconcile.NewExecutor(c.def.Handlers(client, opts), c.execOpts...)
	results := exec.Execute(ctx, changes, false)

	log.Debug().
		Str("provider", c.def.Name).
		Str("mode", string(mode)).
		Int("changes", len(changes)).
		Int("results", len(results)).
		Msg("Executed changes")

	return results, nil
}

// inScope keeps the live resources a run may touch: those matching the
// selectors, plus those whose key belongs to a selected desired resource.
// Backends do not keep document metadata, so a live resource can only be
// tied to a label or annotation selector through its desired counterpart.
func inScope[T any](selectors selector.Aggregate, live, expected []resource.Object[T], key reconcile.KeyFunc[T]) []resource.Object[T] {
	if len(selectors) == 0 {
		return live
	}
	if key == nil {
		key = reconcile.NameKey[T]
	}
	wanted := make(map[reconcile.Key]struct{}, len(expected))
	for _, obj := range expected {
		wanted[key(obj)] = struct{}{}
	}
	out := make([]resource.Object[T], 0, len(live))
	for _, obj := range live {
		if _, ok := wanted[key(obj)]; ok || selectors.Matches(obj.Metadata) {
			out = append(out, obj)
		}
	}
	return out
}

func closeClient(name string, client io.Closer) {
	if err := client.Close(); err != nil {
		log.Warn().Err(err).Str("provider", name).Msg("Failed to close backend client")
	}
}
