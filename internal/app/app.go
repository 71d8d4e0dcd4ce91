// Package app wires configuration, history and the controller registry
// into the operations exposed by the CLI.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/streamctl/internal/backend"
	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/controller"
	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/ledger"
	"github.com/dokzlo13/streamctl/internal/reconcile"
	"github.com/dokzlo13/streamctl/internal/resource"
)

// ErrHistoryDisabled is returned by history queries when history is off.
var ErrHistoryDisabled = errors.New("reconciliation history is disabled")

// App is the main application container.
type App struct {
	cfg      *config.Config
	services *Services
}

// New creates a new App instance with all services initialized.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		services: services,
	}, nil
}

// Reconcile runs one reconciliation invocation and records it in the
// history. A partial report is returned alongside any error.
func (a *App) Reconcile(ctx context.Context, docs []resource.Document, mode reconcile.Mode, rc *reconcile.Context) (*controller.Report, error) {
	if timeout := a.cfg.Reconciler.Timeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	report, err := a.services.Registry.Reconcile(ctx, docs, mode, rc)
	if report != nil {
		a.services.Record(report)
	}
	return report, err
}

// Kinds returns the registered controllers.
func (a *App) Kinds() []controller.Registration {
	return a.services.Registry.Registrations()
}

// History returns the most recent runs.
func (a *App) History(limit int) ([]*ledger.Run, error) {
	if a.services.Ledger == nil {
		return nil, ErrHistoryDisabled
	}
	return a.services.Ledger.Runs(limit)
}

// RunChanges returns the recorded changes of one run.
func (a *App) RunChanges(runID string) ([]*ledger.Change, error) {
	if a.services.Ledger == nil {
		return nil, ErrHistoryDisabled
	}
	if _, err := a.services.Ledger.Run(runID); err != nil {
		return nil, err
	}
	return a.services.Ledger.Changes(runID)
}

// ResetSandbox removes every resource from the sandbox backend.
func (a *App) ResetSandbox(ctx context.Context) error {
	if a.cfg.Backend.Type != "sandbox" {
		return errs.Configf("backend", "reset is only supported by the sandbox backend, not %q", a.cfg.Backend.Type)
	}
	sb, err := backend.Open(a.cfg.Backend.Path)
	if err != nil {
		return err
	}
	defer sb.Close()

	if err := sb.Reset(ctx); err != nil {
		return err
	}
	log.Info().Str("path", a.cfg.Backend.Path).Msg("Sandbox reset")
	return nil
}

// Close releases all resources.
func (a *App) Close() error {
	if a.services != nil {
		return a.services.Close()
	}
	return nil
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
