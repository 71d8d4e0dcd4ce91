package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dokzlo13/streamctl/internal/app"
	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/report"
)

// Exit codes
const (
	ExitCodeSuccess = 0
	// ExitCodeError covers failed changes and runtime errors.
	ExitCodeError = 1
	// ExitCodeConfig is returned for invalid configuration, documents or flags.
	ExitCodeConfig = 2
)

// defaultConfigPath is loaded when --config is not given and the file exists.
const defaultConfigPath = "streamctl.yaml"

// errChangesFailed is returned after the report is printed when at least
// one change failed.
var errChangesFailed = errors.New("one or more changes failed")

type globalOptions struct {
	configPath string
	logLevel   string
	output     string

	stdout io.Writer
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	opts := &globalOptions{stdout: stdout}

	root := &cobra.Command{
		Use:   "streamctl",
		Short: "Reconcile Kafka topics, ACLs, quotas and schema subjects",
		Long: `streamctl compares declarative resource documents with the live state of a
cluster, computes the changes needed to converge and applies them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (default: ./"+defaultConfigPath+" if present)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table or yaml")

	root.AddCommand(
		newReconcileCommand(opts, reconcileSpecs["apply"]),
		newReconcileCommand(opts, reconcileSpecs["create"]),
		newReconcileCommand(opts, reconcileSpecs["update"]),
		newReconcileCommand(opts, reconcileSpecs["delete"]),
		newReconcileCommand(opts, reconcileSpecs["diff"]),
		newReconcileCommand(opts, reconcileSpecs["reconcile"]),
		newHistoryCommand(opts),
		newKindsCommand(opts),
		newSandboxCommand(opts),
	)

	return root
}

func execute(args []string) int {
	root := newRootCommand(os.Stdout)
	root.SetArgs(args)

	err := root.ExecuteContext(app.SignalContext())
	if err == nil {
		return ExitCodeSuccess
	}

	if !errors.Is(err, errChangesFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errs.IsConfigError(err):
		return ExitCodeConfig
	default:
		return ExitCodeError
	}
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, errs.Config("load config", err)
		}
		cfg = loaded
	}

	level := cfg.Log.GetLevel()
	if o.logLevel != "" {
		level = o.logLevel
	}
	setupLogging(level, cfg.Log.UseJSON, cfg.Log.Colors)

	if path != "" {
		log.Debug().Str("config", path).Msg("Configuration loaded")
	}
	return cfg, nil
}

func (o *globalOptions) open() (*app.App, *config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	application, err := app.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return application, cfg, nil
}

func (o *globalOptions) writer(cfg *config.Config) (*report.Writer, error) {
	format, err := report.ParseFormat(o.output)
	if err != nil {
		return nil, err
	}
	return report.NewWriter(o.stdout, format, cfg.Log.Colors), nil
}
