// Package executor runs the polling loop that drives claimed tasks
// through the content pipeline: generation, critique, title, enrichment,
// and the approval or publish transition. One task's failure never stops
// the loop.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"quill/internal/config"
	"quill/internal/enrichment"
	"quill/internal/generation"
	"quill/internal/llm"
	"quill/internal/logging"
	"quill/internal/publish"
	"quill/internal/services"
	"quill/internal/task"
	"quill/internal/taskstore"
)

// Deps bundles the collaborators the executor drives. Tests inject fakes
// or httptest-backed clients here.
type Deps struct {
	Store     *taskstore.Store
	Loop      *generation.Loop
	Titler    *generation.Titler
	Images    *enrichment.ImageClient
	SEO       *enrichment.SEOClient
	Publisher *publish.Client
}

// Executor owns the worker goroutines that poll the store for claimable
// work.
type Executor struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger

	heartbeat *heartbeatMonitor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// New builds an executor over explicit collaborators.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "executor"))
	return &Executor{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		heartbeat: newHeartbeatMonitor(
			deps.Store,
			logger,
			time.Duration(cfg.Executor.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Executor.HeartbeatTimeout)*time.Second,
		),
	}
}

// NewFromConfig wires the full collaborator set from configuration.
func NewFromConfig(cfg *config.Config, store *taskstore.Store, logger *slog.Logger) (*Executor, error) {
	router, err := llm.NewRouterFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	generator := generation.NewGenerator(router)
	critic := generation.NewCritic(router, cfg.Generation.FallbackScore, logger)
	loop := generation.NewLoop(generator, critic, cfg.Generation.QualityThreshold, cfg.Generation.MaxIterations, logger)
	deps := Deps{
		Store:     store,
		Loop:      loop,
		Titler:    generation.NewTitler(router),
		Images:    enrichment.NewImageClient(cfg.Images),
		SEO:       enrichment.NewSEOClient(cfg.SEO),
		Publisher: publish.New(cfg.Publish),
	}
	return New(cfg, deps, logger), nil
}

// Start launches the worker loops.
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("executor already running")
	}

	workers := e.cfg.Executor.Workers
	if workers < 1 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.runWorker(runCtx, i)
	}
	e.logger.Info("executor started", logging.Int("workers", workers))
	return nil
}

// Stop terminates the workers and waits for in-flight stages to observe
// cancellation.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.logger.Info("executor stopped")
}

// Running reports whether the worker loops are active.
func (e *Executor) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Executor) runWorker(ctx context.Context, worker int) {
	defer e.wg.Done()
	logger := e.logger.With(logging.Int("worker", worker))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := e.heartbeat.reclaim(ctx); err != nil {
			logger.Warn("stale task reclaim failed; stuck tasks may remain", logging.Error(err))
		}

		claimed, err := e.deps.Store.ClaimNextPending(ctx)
		if err != nil {
			e.handlePollError(ctx, logger, err)
			continue
		}
		if claimed != nil {
			if err := e.processTask(ctx, logger, claimed); err != nil && errors.Is(err, context.Canceled) {
				return
			}
			continue
		}

		approved, err := e.deps.Store.NextByStatus(ctx, task.StatusApproved)
		if err != nil {
			e.handlePollError(ctx, logger, err)
			continue
		}
		if approved != nil {
			if err := e.publishApproved(ctx, logger, approved); err != nil && errors.Is(err, context.Canceled) {
				return
			}
			continue
		}

		e.waitForWorkOrShutdown(ctx)
	}
}

// handlePollError covers infrastructure failure: log, back off, keep the
// loop alive. Storage being down is never a task-level error.
func (e *Executor) handlePollError(ctx context.Context, logger *slog.Logger, err error) {
	e.setLastError(err)
	logger.Error("failed to poll for claimable work", logging.Error(err))
	retry := time.Duration(e.cfg.Executor.ErrorRetryInterval) * time.Second
	if retry <= 0 {
		retry = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(retry):
	}
}

func (e *Executor) waitForWorkOrShutdown(ctx context.Context) {
	poll := time.Duration(e.cfg.Executor.PollInterval) * time.Second
	if poll <= 0 {
		poll = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(poll):
	}
}

func (e *Executor) setLastError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = err
}

// LastError returns the most recent infrastructure error observed by the
// poll loop, if any.
func (e *Executor) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Status summarizes the executor and queue for the API and CLI.
type Status struct {
	Running   bool
	Workers   int
	LastError string
	Queue     taskstore.HealthSummary
}

// Summary reports the current executor and queue state.
func (e *Executor) Summary(ctx context.Context) (Status, error) {
	e.mu.Lock()
	status := Status{Running: e.running, Workers: e.cfg.Executor.Workers}
	if e.lastErr != nil {
		status.LastError = e.lastErr.Error()
	}
	e.mu.Unlock()

	health, err := e.deps.Store.Health(ctx)
	if err != nil {
		return status, services.Wrap(services.ErrPersistence, "executor", "summary", "queue health", err)
	}
	status.Queue = health
	return status, nil
}
