package controller

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/streamctl/internal/reconcile"
	"github.com/dokzlo13/streamctl/internal/resource"
)

// Reconcile runs one reconciliation invocation. Documents are grouped by
// type in order of first appearance and each group is handed to its
// controller. Every type is resolved before any backend call: an unknown
// kind or a mode the controller does not accept aborts with a ConfigError.
//
// Per-change failures do not fail the call; inspect Report.Failed. A
// controller-level error (e.g. the backend is unreachable) stops the
// invocation and is returned with the report collected so far.
func (r *Registry) Reconcile(ctx context.Context, docs []resource.Document, mode reconcile.Mode, rc *reconcile.Context) (*Report, error) {
	if rc == nil {
		rc = reconcile.NewContext(nil, nil, false)
	}

	types, groups := groupByType(docs, rc.Include)
	entries, err := r.resolve(types, mode)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     rc.RunID,
		Mode:      mode,
		DryRun:    rc.DryRun,
		StartedAt: time.Now().UTC(),
	}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	for i, e := range entries {
		if ctx.Err() != nil {
			report.Incomplete = true
			break
		}

		typ := types[i]
		b, err := e.runner.run(ctx, groups[typ], mode, rc)
		if err != nil {
			log.Error().Err(err).Str("type", typ.String()).Str("run_id", rc.RunID).Msg("Reconciliation failed")
			return report, err
		}

		report.Outcomes = append(report.Outcomes, b.outcomes...)
		if len(b.outcomes) < b.computed {
			report.Incomplete = true
		}

		log.Info().
			Str("type", typ.String()).
			Str("mode", string(mode)).
			Bool("dry_run", rc.DryRun).
			Str("run_id", rc.RunID).
			Int("desired", len(groups[typ])).
			Int("changes", b.computed).
			Msg("Reconciled resource type")
	}

	return report, nil
}

// groupByType groups documents by type, keeping first-appearance order.
// Types listed in include are appended when they have no documents.
func groupByType(docs []resource.Document, include []resource.Type) ([]resource.Type, map[resource.Type][]resource.Document) {
	var types []resource.Type
	groups := make(map[resource.Type][]resource.Document)

	for _, doc := range docs {
		typ := doc.Type()
		if _, seen := groups[typ]; !seen {
			types = append(types, typ)
		}
		groups[typ] = append(groups[typ], doc)
	}
	for _, typ := range include {
		if _, seen := groups[typ]; !seen {
			types = append(types, typ)
			groups[typ] = nil
		}
	}

	return types, groups
}
