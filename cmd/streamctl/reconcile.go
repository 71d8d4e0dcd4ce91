package main

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/reconcile"
	"github.com/dokzlo13/streamctl/internal/resource"
	"github.com/dokzlo13/streamctl/internal/selector"
)

type reconcileSpec struct {
	use      string
	short    string
	mode     reconcile.Mode
	forceDry bool
	// modeFlag exposes --mode, with mode as its default.
	modeFlag bool
}

var reconcileSpecs = map[string]reconcileSpec{
	"apply":     {use: "apply", short: "Create, update and delete resources to match the documents", mode: reconcile.ModeApplyAll},
	"create":    {use: "create", short: "Create missing resources only", mode: reconcile.ModeCreate},
	"update":    {use: "update", short: "Update existing resources only", mode: reconcile.ModeUpdate},
	"delete":    {use: "delete", short: "Delete orphaned resources only", mode: reconcile.ModeDelete},
	"diff":      {use: "diff", short: "Show the changes apply would make without making them", mode: reconcile.ModeApplyAll, forceDry: true},
	"reconcile": {use: "reconcile", short: "Reconcile resources under the mode given by --mode", mode: reconcile.ModeApplyAll, modeFlag: true},
}

type reconcileOptions struct {
	files         []string
	selectors     []string
	options       []string
	kinds         []string
	mode          string
	dryRun        bool
	deleteOrphans bool
}

func newReconcileCommand(g *globalOptions, spec reconcileSpec) *cobra.Command {
	opts := &reconcileOptions{}

	cmd := &cobra.Command{
		Use:   spec.use + " -f FILE... [flags]",
		Short: spec.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReconcile(cmd, g, opts, spec)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.files, "file", "f", nil, "Resource documents (files or directories)")
	cmd.Flags().StringArrayVarP(&opts.selectors, "selector", "l", nil, "Restrict to matching resources (label:, name:, annotation:, expr:); repeatable")
	cmd.Flags().StringArrayVar(&opts.options, "option", nil, "Provider option override as key=value; repeatable")
	cmd.Flags().StringSliceVar(&opts.kinds, "kind", nil, "Also reconcile these apiVersion/kind types when no document has them")
	cmd.Flags().BoolVar(&opts.deleteOrphans, "delete-orphans", false, "Delete live resources missing from the documents")
	if spec.modeFlag {
		cmd.Flags().StringVar(&opts.mode, "mode", string(spec.mode), "Reconciliation mode: create, update, delete or apply-all")
	}
	if !spec.forceDry {
		cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Compute and report changes without applying them")
	}
	return cmd
}

func runReconcile(cmd *cobra.Command, g *globalOptions, opts *reconcileOptions, spec reconcileSpec) error {
	application, cfg, err := g.open()
	if err != nil {
		return err
	}
	defer application.Close()

	out, err := g.writer(cfg)
	if err != nil {
		return err
	}

	mode := spec.mode
	if opts.mode != "" {
		mode, err = reconcile.ParseMode(opts.mode)
		if err != nil {
			return errs.Config("mode", err)
		}
	}

	rc, err := opts.context(spec.forceDry)
	if err != nil {
		return err
	}

	if len(opts.files) == 0 && len(rc.Include) == 0 {
		return errs.Configf(spec.use, "no documents given, use -f or --kind")
	}

	var docs []resource.Document
	if len(opts.files) > 0 {
		docs, err = resource.Load(opts.files...)
		if err != nil {
			return errs.Config("load documents", err)
		}
	}

	log.Info().
		Str("run_id", rc.RunID).
		Str("mode", string(mode)).
		Bool("dry_run", rc.DryRun).
		Int("documents", len(docs)).
		Str("selector", rc.Selectors.Name()).
		Msg("Starting reconciliation")

	rep, err := application.Reconcile(cmd.Context(), docs, mode, rc)
	if rep != nil {
		if werr := out.Report(rep); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	if rep.Failed() > 0 {
		return errChangesFailed
	}
	return nil
}

func (o *reconcileOptions) context(forceDry bool) (*reconcile.Context, error) {
	selectors, err := selector.ParseAll(o.selectors)
	if err != nil {
		return nil, err
	}

	overrides, err := parseOptions(o.options)
	if err != nil {
		return nil, err
	}
	if o.deleteOrphans {
		overrides["delete-orphans"] = true
	}

	rc := reconcile.NewContext(selectors, overrides, o.dryRun || forceDry)
	for _, k := range o.kinds {
		typ, err := parseType(k)
		if err != nil {
			return nil, err
		}
		rc.Include = append(rc.Include, typ)
	}
	return rc, nil
}

// parseOptions turns key=value pairs into provider options. A value of the
// form ${VAR:default} is read from the environment. Values stay strings;
// properties coerce them on read.
func parseOptions(pairs []string) (config.Options, error) {
	opts := config.Options{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errs.Configf("option", "expected key=value, got %q", pair)
		}
		opts[key] = config.ExpandEnvString(value)
	}
	return opts, nil
}

// parseType parses "apiVersion/kind", where apiVersion may itself contain
// a slash (group/version).
func parseType(s string) (resource.Type, error) {
	i := strings.LastIndex(s, "/")
	if i <= 0 || i == len(s)-1 {
		return resource.Type{}, errs.Configf("kind", "expected apiVersion/kind, got %q", s)
	}
	return resource.Type{APIVersion: s[:i], Kind: s[i+1:]}, nil
}
