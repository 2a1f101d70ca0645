package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"quill/internal/enrichment"
	"quill/internal/generation"
	"quill/internal/logging"
	"quill/internal/publish"
	"quill/internal/services"
	"quill/internal/task"
)

const (
	stageGenerating    = "generating content"
	stageTitling       = "generating title"
	stageImage         = "sourcing image"
	stageSEO           = "generating seo metadata"
	stagePublishing    = "publishing"
	stagePublishFailed = "publish failed"
)

// processTask drives one claimed task through the pipeline. Every failure
// is absorbed into the task record; only context cancellation propagates,
// so the worker loop can exit cleanly on shutdown.
func (e *Executor) processTask(ctx context.Context, logger *slog.Logger, t *task.Task) error {
	ctx = services.WithTaskID(ctx, t.ID)
	logger = logger.With(logging.String(logging.FieldTaskID, t.ID))
	logger.Info("task claimed", logging.String("topic", t.Topic))

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go e.heartbeat.run(hbCtx, &hbWG, t.ID)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	start := time.Now()
	if err := e.runPipeline(ctx, logger, t); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("task interrupted by shutdown")
			return err
		}
		if errors.Is(err, services.ErrConflict) {
			// An external actor (hold, cancel) took the task; it is no
			// longer ours to fail.
			logger.Info("task taken over externally, abandoning")
			return nil
		}
		logger.Error("task failed", logging.Error(err))
		e.markFailed(ctx, logger, t, err)
		return nil
	}
	logger.Info("task processed",
		logging.String("status", string(t.Status)),
		logging.Duration("duration", time.Since(start)))
	return nil
}

// runPipeline executes the stages in order, persisting after each one so
// a crash resumes at the last completed stage. Stages whose output is
// already present on the task are skipped on resume.
func (e *Executor) runPipeline(ctx context.Context, logger *slog.Logger, t *task.Task) error {
	if !t.HasContent() || t.Score() < 0 {
		if err := e.runGeneration(ctx, logger, t); err != nil {
			return err
		}
		if t.Status == task.StatusFailed {
			// Generation exhausted; the failure is already persisted.
			return nil
		}
	}

	if strings.TrimSpace(t.Title) == "" {
		if err := e.runTitle(ctx, logger, t); err != nil {
			return err
		}
	}
	if t.FeaturedImageRef == "" {
		if err := e.runImage(ctx, logger, t); err != nil {
			return err
		}
	}
	if t.SEO == nil {
		if err := e.runSEO(ctx, logger, t); err != nil {
			return err
		}
	}
	return e.finalize(ctx, logger, t)
}

func (e *Executor) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(e.cfg.Executor.StageTimeoutSeconds) * time.Second
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (e *Executor) runGeneration(ctx context.Context, logger *slog.Logger, t *task.Task) error {
	t.SetStage(stageGenerating)
	if err := e.persist(ctx, logger, t); err != nil {
		return err
	}

	stageCtx, cancel := e.stageContext(services.WithStage(ctx, stageGenerating))
	defer cancel()
	outcome, err := e.deps.Loop.Run(stageCtx, generation.GenerateParams{
		Type:         t.Type,
		Topic:        t.Topic,
		Style:        t.Style,
		Tone:         t.Tone,
		TargetLength: t.TargetLength,
	})
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		return fmt.Errorf("content generation: %w", err)
	}

	t.IterationCount = len(outcome.Iterations)
	t.Content = outcome.Best.Draft.Content
	t.WordCount = len(strings.Fields(t.Content))
	t.SetScore(outcome.Score())

	if outcome.Degraded {
		// Every iteration fell through to the stub: no real provider
		// produced content, so the task fails rather than completing
		// with placeholder text.
		t.SetFailed("content generation exhausted: all providers failed on every iteration")
		logger.Warn("generation degraded on every iteration",
			logging.Int(logging.FieldIteration, t.IterationCount))
		return e.persist(ctx, logger, t)
	}
	logger.Info("content generated",
		logging.Int(logging.FieldScore, t.Score()),
		logging.Int(logging.FieldIteration, t.IterationCount),
		logging.String(logging.FieldProvider, outcome.Best.Draft.Provider))
	return e.persist(ctx, logger, t)
}

func (e *Executor) runTitle(ctx context.Context, logger *slog.Logger, t *task.Task) error {
	t.SetStage(stageTitling)
	stageCtx, cancel := e.stageContext(services.WithStage(ctx, stageTitling))
	defer cancel()

	title, err := e.deps.Titler.Title(stageCtx, t.Topic, t.Content)
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		// Title generation is not worth failing a task over.
		logger.Warn("title generation failed, using topic", logging.Error(err))
		title = strings.TrimSpace(t.Topic)
	}
	t.Title = title
	return e.persist(ctx, logger, t)
}

func (e *Executor) runImage(ctx context.Context, logger *slog.Logger, t *task.Task) error {
	t.SetStage(stageImage)
	stageCtx, cancel := e.stageContext(services.WithStage(ctx, stageImage))
	defer cancel()

	ref, err := e.deps.Images.FindImage(stageCtx, t.Topic, t.Tags)
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		if errors.Is(err, enrichment.ErrDisabled) {
			logger.Debug("image sourcing disabled")
		} else {
			logger.Warn("image sourcing failed, continuing without image", logging.Error(err))
		}
		return e.persist(ctx, logger, t)
	}
	t.FeaturedImageRef = ref
	return e.persist(ctx, logger, t)
}

func (e *Executor) runSEO(ctx context.Context, logger *slog.Logger, t *task.Task) error {
	t.SetStage(stageSEO)
	stageCtx, cancel := e.stageContext(services.WithStage(ctx, stageSEO))
	defer cancel()

	meta, err := e.deps.SEO.Metadata(stageCtx, t.Title, t.Content, t.Tags)
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		logger.Warn("seo service failed, using derived metadata", logging.Error(err))
	}
	t.SEO = meta
	return e.persist(ctx, logger, t)
}

// finalize applies the post-generation transition: approval gate,
// auto-publish, or plain completion. Auto-publish routes through the
// approval states so every edge stays legal and the task history stays
// truthful.
func (e *Executor) finalize(ctx context.Context, logger *slog.Logger, t *task.Task) error {
	switch {
	case t.RequiresApproval:
		if err := t.Transition(task.StatusAwaitingApproval); err != nil {
			return err
		}
		t.SetStage("awaiting approval")
		t.LastHeartbeat = nil
		logger.Info("task awaiting approval")
		return e.persist(ctx, logger, t)

	case t.AutoPublish && e.deps.Publisher.Enabled():
		if err := t.Transition(task.StatusAwaitingApproval); err != nil {
			return err
		}
		if err := t.Transition(task.StatusApproved); err != nil {
			return err
		}
		t.SetStage(stagePublishing)
		if err := e.persist(ctx, logger, t); err != nil {
			return err
		}
		return e.publishTask(ctx, logger, t)

	default:
		if err := t.Transition(task.StatusCompleted); err != nil {
			return err
		}
		t.SetStage("completed")
		t.LastHeartbeat = nil
		logger.Info("task completed", logging.Int(logging.FieldScore, t.Score()))
		return e.persist(ctx, logger, t)
	}
}

// publishApproved handles tasks a human (or auto-approval) moved to
// approved. Exclusivity against sibling workers comes from the store's
// optimistic update: the loser of the stage write backs off.
func (e *Executor) publishApproved(ctx context.Context, logger *slog.Logger, t *task.Task) error {
	ctx = services.WithTaskID(ctx, t.ID)
	logger = logger.With(logging.String(logging.FieldTaskID, t.ID))

	if t.Stage == stagePublishFailed {
		// Already attempted recently; wait out the retry interval rather
		// than hammering a broken target.
		e.waitForWorkOrShutdown(ctx)
		if ctx.Err() != nil {
			return context.Canceled
		}
	}
	t.SetStage(stagePublishing)
	updated, err := e.deps.Store.Update(ctx, t, t.UpdatedAt)
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			logger.Debug("another worker owns this task")
			return nil
		}
		e.setLastError(err)
		logger.Error("failed to claim approved task", logging.Error(err))
		return nil
	}
	return e.publishTask(ctx, logger, updated)
}

// publishTask pushes the article to the CMS and applies the published
// transition. Publish failure blocks the transition but preserves the
// content: the task stays approved with the error recorded.
func (e *Executor) publishTask(ctx context.Context, logger *slog.Logger, t *task.Task) error {
	stageCtx, cancel := e.stageContext(services.WithStage(ctx, stagePublishing))
	defer cancel()

	ref, err := e.deps.Publisher.Publish(stageCtx, t)
	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		if errors.Is(err, publish.ErrDisabled) {
			// No target will ever accept this task; fail it outright.
			logger.Error("publish target disabled, failing task")
			e.markFailed(ctx, logger, t, fmt.Errorf("publish: %w", err))
			return nil
		}
		logger.Warn("publish failed, will retry", logging.Error(err))
		t.ErrorMessage = err.Error()
		t.SetStage(stagePublishFailed)
		return e.persist(ctx, logger, t)
	}

	t.PublishTargetRef = ref
	if err := t.Transition(task.StatusPublished); err != nil {
		return err
	}
	t.SetStage("published")
	t.ErrorMessage = ""
	t.LastHeartbeat = nil
	logger.Info("task published", logging.String("target", ref))
	return e.persist(ctx, logger, t)
}

// markFailed transitions the task to failed and persists the message.
// Best effort: a storage failure here leaves the reclaimer to recover.
func (e *Executor) markFailed(ctx context.Context, logger *slog.Logger, t *task.Task, cause error) {
	t.SetFailed(cause.Error())
	if err := e.persist(ctx, logger, t); err != nil {
		logger.Error("failed to persist task failure", logging.Error(err))
	}
}

// persist writes the task guarded by its last-seen timestamp. Losing the
// race means another writer owns the task now; abandon quietly.
func (e *Executor) persist(ctx context.Context, logger *slog.Logger, t *task.Task) error {
	if _, err := e.deps.Store.Update(ctx, t, t.UpdatedAt); err != nil {
		if errors.Is(err, services.ErrConflict) {
			logger.Warn("lost task ownership mid-pipeline", logging.String(logging.FieldStage, t.Stage))
			return fmt.Errorf("persist %s: %w", t.Stage, err)
		}
		e.setLastError(err)
		return fmt.Errorf("persist %s: %w", t.Stage, err)
	}
	return nil
}
