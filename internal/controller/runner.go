package controller

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/reconcile"
	"github.com/dokzlo13/streamctl/internal/resource"
)

// batch is the outcome of one controller's part of an invocation.
type batch struct {
	outcomes []reconcile.Outcome
	computed int
}

// typedRunner decodes documents for a controller and drives it through
// compute, gate and execute.
type typedRunner[T any] struct {
	ctrl reconcile.Controller[T]
}

func (t *typedRunner[T]) run(ctx context.Context, docs []resource.Document, mode reconcile.Mode, rc *reconcile.Context) (*batch, error) {
	objs, err := resource.DecodeAll[T](docs)
	if err != nil {
		return nil, errs.Config("decode", err)
	}

	changes, err := t.ctrl.ComputeReconciliationChanges(ctx, objs, mode, rc)
	if err != nil {
		return nil, err
	}

	gated := reconcile.Gate(mode, changes)
	if n := gated.Excluded(); n > 0 {
		log.Debug().Int("excluded", n).Str("mode", string(mode)).Msg("Changes excluded by mode")
	}

	executed, err := t.ctrl.Execute(ctx, gated.Permitted, mode, rc)
	if err != nil {
		return nil, err
	}

	results := gated.Merge(executed)
	return &batch{outcomes: reconcile.Outcomes(results), computed: len(changes)}, nil
}
