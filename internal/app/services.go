package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/streamctl/internal/backend"
	"github.com/dokzlo13/streamctl/internal/config"
	"github.com/dokzlo13/streamctl/internal/controller"
	"github.com/dokzlo13/streamctl/internal/db"
	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/ledger"
	"github.com/dokzlo13/streamctl/internal/provider/acl"
	"github.com/dokzlo13/streamctl/internal/provider/quota"
	"github.com/dokzlo13/streamctl/internal/provider/subject"
	"github.com/dokzlo13/streamctl/internal/provider/topic"
	"github.com/dokzlo13/streamctl/internal/reconcile"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// History (nil when disabled)
	DB     *db.DB
	Ledger *ledger.Ledger

	// Controllers for every supported resource type, frozen
	Registry *controller.Registry
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	if cfg.History.IsEnabled() {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
		s.pruneHistory()
	}

	registry, err := NewRegistry(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Registry = registry

	return s, nil
}

// NewRegistry registers the controllers of every provider against the
// configured backend and freezes the registry.
func NewRegistry(cfg *config.Config) (*controller.Registry, error) {
	if cfg.Backend.Type != "sandbox" {
		return nil, errs.Configf("backend", "unsupported backend type %q", cfg.Backend.Type)
	}
	path := cfg.Backend.Path

	execOpts := []reconcile.ExecutorOption{reconcile.WithWorkers(cfg.Reconciler.GetWorkers())}
	if cfg.Reconciler.RateLimitRPS > 0 {
		execOpts = append(execOpts, reconcile.WithRateLimit(cfg.Reconciler.RateLimitRPS))
	}

	reg := controller.NewRegistry()

	err := registerAll(
		func() error {
			return topic.Register(reg, backend.Connector[topic.Client](path), cfg.Provider(topic.Name), execOpts...)
		},
		func() error {
			return acl.Register(reg, backend.Connector[acl.Client](path), cfg.Provider(acl.Name), execOpts...)
		},
		func() error {
			return quota.Register(reg, backend.Connector[quota.Client](path), cfg.Provider(quota.Name), execOpts...)
		},
		func() error {
			return subject.Register(reg, backend.Connector[subject.Client](path), cfg.Provider(subject.Name), execOpts...)
		},
	)
	if err != nil {
		return nil, err
	}

	reg.Freeze()

	log.Debug().
		Str("backend", cfg.Backend.Type).
		Int("controllers", len(reg.Registrations())).
		Msg("Controller registry ready")

	return reg, nil
}

func registerAll(fns ...func() error) error {
	for _, fn := range fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// Record stores a report in the history when it is enabled. Failures are
// logged and never fail the invocation.
func (s *Services) Record(report *controller.Report) {
	if s.Ledger == nil {
		return
	}

	// The invocation context may already be canceled; history is still written.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Ledger.Record(ctx, report); err != nil {
		log.Warn().Err(err).Str("run_id", report.RunID).Msg("Failed to record reconciliation history")
	}
}

func (s *Services) pruneHistory() {
	days := s.cfg.History.RetentionDays
	if days <= 0 {
		return
	}

	deleted, err := s.Ledger.DeleteOlderThan(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to prune reconciliation history")
		return
	}
	if deleted > 0 {
		log.Info().Int64("runs", deleted).Int("retention_days", days).Msg("Pruned reconciliation history")
	}
}

// Close releases all resources.
func (s *Services) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

var (
	_ topic.Client   = (*backend.Sandbox)(nil)
	_ acl.Client     = (*backend.Sandbox)(nil)
	_ quota.Client   = (*backend.Sandbox)(nil)
	_ subject.Client = (*backend.Sandbox)(nil)
)
