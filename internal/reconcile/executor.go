package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Default executor configuration
const (
	DefaultWorkers = 4
)

type executorOptions struct {
	workers int
	limiter *rate.Limiter
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorOptions)

// WithWorkers bounds the number of concurrent handler invocations.
func WithWorkers(n int) ExecutorOption {
	return func(o *executorOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithRateLimit limits handler invocations to rps per second. Zero or
// negative disables limiting.
func WithRateLimit(rps float64) ExecutorOption {
	return func(o *executorOptions) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Executor drives handlers over a batch of changes.
type Executor[T any] struct {
	handlers HandlerSet[T]
	opts     executorOptions
}

// NewExecutor creates an executor dispatching to handlers.
func NewExecutor[T any](handlers HandlerSet[T], opts ...ExecutorOption) *Executor[T] {
	o := executorOptions{workers: DefaultWorkers}
	for _, opt := range opts {
		opt(&o)
	}
	return &Executor[T]{handlers: handlers, opts: o}
}

// Execute applies changes and returns one result per change, in input
// order. NONE changes resolve to OK without touching the backend. Under
// dryRun every mutating change is SKIPPED. A failing handler only fails its
// own change.
//
// Once ctx is done no further change is dispatched; already dispatched
// handlers are awaited. The returned slice then holds only the dispatched
// prefix and is shorter than changes.
func (e *Executor[T]) Execute(ctx context.Context, changes []ResourceChange[T], dryRun bool) []ChangeResult[T] {
	results := make([]ChangeResult[T], len(changes))

	var g errgroup.Group
	g.SetLimit(e.opts.workers)

	dispatched := 0
	for i, change := range changes {
		if ctx.Err() != nil {
			break
		}

		if dryRun && change.Type.IsMutating() {
			results[i] = skippedResult(change, SkipDryRun)
			dispatched++
			continue
		}

		if err := change.Validate(); err != nil {
			results[i] = failedResult(change, err)
			dispatched++
			continue
		}

		if !change.Type.IsMutating() {
			results[i] = okResult(change)
			dispatched++
			continue
		}

		if e.opts.limiter != nil {
			if err := e.opts.limiter.Wait(ctx); err != nil {
				break
			}
		}

		g.Go(func() error {
			results[i] = e.apply(ctx, change)
			return nil
		})
		dispatched++
	}

	// Handlers never return errors to the group, results carry them.
	_ = g.Wait()

	if dispatched < len(changes) {
		log.Warn().
			Int("dispatched", dispatched).
			Int("total", len(changes)).
			Err(ctx.Err()).
			Msg("Change execution interrupted, batch incomplete")
	}

	return results[:dispatched]
}

func (e *Executor[T]) apply(ctx context.Context, change ResourceChange[T]) (result ChangeResult[T]) {
	handler, found := e.handlers.For(change.Type)
	if !found {
		return failedResult(change, fmt.Errorf("%w %s", ErrNoHandler, change.Type))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("kind", change.Kind).
				Str("key", string(change.Key)).
				Msg("Change handler panicked")
			result = failedResult(change, fmt.Errorf("handler panicked: %v", r))
		}
	}()

	if err := handler.Apply(ctx, change); err != nil {
		log.Warn().
			Err(err).
			Str("kind", change.Kind).
			Str("key", string(change.Key)).
			Str("change", string(change.Type)).
			Msg("Change failed")
		return failedResult(change, err)
	}

	log.Info().
		Str("kind", change.Kind).
		Str("key", string(change.Key)).
		Str("change", string(change.Type)).
		Msg(change.Description)
	return changedResult(change)
}
