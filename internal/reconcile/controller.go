package reconcile

import (
	"context"

	"github.com/google/uuid"

	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/resource"
	"github.com/dokzlo13/streamctl/internal/selector"
)

// Context bundles the inputs of one reconciliation invocation. It is
// created per call and discarded afterwards.
type Context struct {
	// RunID identifies the invocation in logs and history.
	RunID string

	// Selectors filter both desired and live resources.
	Selectors selector.Aggregate

	// Options override provider options for this invocation only.
	Options config.Options

	// DryRun computes and reports changes without mutating anything.
	DryRun bool

	// Include lists resource types to reconcile even when no desired
	// document of that type is given (e.g. to delete every orphan).
	Include []resource.Type
}

// NewContext creates a context with a fresh run ID.
func NewContext(selectors selector.Aggregate, opts config.Options, dryRun bool) *Context {
	if opts == nil {
		opts = config.Options{}
	}
	return &Context{
		RunID:     uuid.NewString(),
		Selectors: selectors,
		Options:   opts,
		DryRun:    dryRun,
	}
}

// Controller is implemented by every resource provider. It is the
// extension point that plugs a resource kind into the engine.
type Controller[T any] interface {
	// Configure resolves the controller's options. Invalid configuration
	// returns a ConfigError.
	Configure(opts config.Options) error

	// ComputeReconciliationChanges fetches live resources, filters both
	// sides with the context selectors and diffs them.
	ComputeReconciliationChanges(ctx context.Context, resources []resource.Object[T], mode Mode, rc *Context) ([]ResourceChange[T], error)

	// Execute applies changes that already passed the mode gate, honoring
	// rc.DryRun and the rc.Options overrides. The error is reserved for
	// failures affecting the whole batch, such as being unable to connect;
	// per-change failures are reported in the results.
	Execute(ctx context.Context, changes []ResourceChange[T], mode Mode, rc *Context) ([]ChangeResult[T], error)
}
